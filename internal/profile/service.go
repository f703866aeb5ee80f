package profile

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"html/template"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dragon-bridge-community/community-api/internal/lookup"
	"github.com/dragon-bridge-community/community-api/internal/profile/entity"
)

// CompanyFinder looks up the company profile of a user.
type CompanyFinder interface {
	FindCompany(ctx context.Context, userID uuid.UUID) (*entity.Profile, error)
}

// Author is the render model for a post's author line.
type Author struct {
	Name    string       `json:"name"`
	Label   string       `json:"label"`
	Href    string       `json:"href,omitempty"`
	Company bool         `json:"company"`
	Badge   bool         `json:"badge"`
	State   lookup.State `json:"state"`
}

// Plain renders name as text.
func Plain(name string, st lookup.State) Author {
	return Author{Name: name, Label: name, State: st}
}

// Pending is what a caller shows while a lookup is still running.
func Pending(name string) Author {
	return Plain(name, lookup.Loading)
}

var authorTmpl = template.Must(template.New("author").Parse(
	`{{if .Href}}<a href="{{.Href}}" class="company-author">{{.Label}}</a>` +
		`{{if .Badge}} <span class="badge">Company</span>{{end}}{{else}}{{.Label}}{{end}}`))

// HTML renders the author as a company link or escaped plain text.
func (a Author) HTML() template.HTML {
	var buf bytes.Buffer
	if err := authorTmpl.Execute(&buf, a); err != nil {
		return template.HTML(template.HTMLEscapeString(a.Name))
	}
	return template.HTML(buf.String())
}

// Resolver links authors to their company page when they post as a company.
type Resolver struct {
	finder CompanyFinder
	logger *zap.SugaredLogger
}

func NewResolver(finder CompanyFinder, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{finder: finder, logger: logger}
}

// Resolve never fails: every lookup problem degrades to plain text.
func (r *Resolver) Resolve(ctx context.Context, authorName, userID string, showBadge bool) Author {
	if userID == "" {
		return Plain(authorName, lookup.Absent)
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		r.logger.Debugw("author user id is not a uuid", "user_id", userID)
		return Plain(authorName, lookup.Absent)
	}

	p, err := r.finder.FindCompany(ctx, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Plain(authorName, lookup.Absent)
	case err != nil:
		r.logger.Warnw("company profile lookup failed", "user_id", id, "err", err)
		return Plain(authorName, lookup.Errored)
	case p == nil:
		return Plain(authorName, lookup.Absent)
	}
	return Author{
		Name:    authorName,
		Label:   p.DisplayName(authorName),
		Href:    "/company/" + id.String(),
		Company: true,
		Badge:   showBadge,
		State:   lookup.Resolved,
	}
}
