package profile

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dragon-bridge-community/community-api/internal/lookup"
	"github.com/dragon-bridge-community/community-api/internal/profile/entity"
)

type fakeFinder struct {
	profile *entity.Profile
	err     error
	calls   int
}

func (f *fakeFinder) FindCompany(ctx context.Context, userID uuid.UUID) (*entity.Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

func strPtr(s string) *string { return &s }

func newTestResolver(f *fakeFinder) *Resolver {
	return NewResolver(f, zap.NewNop().Sugar())
}

func TestResolveWithoutUserID(t *testing.T) {
	f := &fakeFinder{}
	for _, name := range []string{"Mei", "", "<b>x</b>"} {
		a := newTestResolver(f).Resolve(context.Background(), name, "", true)
		assert.Equal(t, name, a.Label)
		assert.False(t, a.Badge)
		assert.Empty(t, a.Href)
		assert.Equal(t, lookup.Absent, a.State)
	}
	assert.Zero(t, f.calls, "no query without a user id")
}

func TestResolveCompanyWithName(t *testing.T) {
	id := uuid.New()
	f := &fakeFinder{profile: &entity.Profile{UserID: id, AccountType: entity.AccountCompany, CompanyName: strPtr("Acme")}}

	a := newTestResolver(f).Resolve(context.Background(), "Wei Zhang", id.String(), true)
	assert.Equal(t, "Acme", a.Label)
	assert.True(t, a.Company)
	assert.True(t, a.Badge)
	assert.Equal(t, "/company/"+id.String(), a.Href)
	assert.Equal(t, lookup.Resolved, a.State)
	assert.Equal(t,
		`<a href="/company/`+id.String()+`" class="company-author">Acme</a> <span class="badge">Company</span>`,
		string(a.HTML()))
}

func TestResolveCompanyWithoutName(t *testing.T) {
	id := uuid.New()
	for _, name := range []*string{nil, strPtr("")} {
		f := &fakeFinder{profile: &entity.Profile{UserID: id, AccountType: entity.AccountCompany, CompanyName: name}}
		a := newTestResolver(f).Resolve(context.Background(), "Wei Zhang", id.String(), false)
		assert.Equal(t, "Wei Zhang", a.Label)
		assert.True(t, a.Company)
		assert.False(t, a.Badge)
	}
}

func TestResolveDegradesToPlainText(t *testing.T) {
	id := uuid.New().String()
	cases := map[string]struct {
		finder *fakeFinder
		userID string
		state  lookup.State
	}{
		"no rows":     {&fakeFinder{err: sql.ErrNoRows}, id, lookup.Absent},
		"query error": {&fakeFinder{err: errors.New("timeout")}, id, lookup.Errored},
		"nil profile": {&fakeFinder{}, id, lookup.Absent},
		"bad uuid":    {&fakeFinder{}, "user-42", lookup.Absent},
	}
	for name, tc := range cases {
		a := newTestResolver(tc.finder).Resolve(context.Background(), "Lin", tc.userID, true)
		assert.Equal(t, "Lin", a.Label, name)
		assert.False(t, a.Badge, name)
		assert.Empty(t, a.Href, name)
		assert.Equal(t, tc.state, a.State, name)
		assert.Equal(t, "Lin", string(a.HTML()), name)
	}
}

func TestPendingAndEscaping(t *testing.T) {
	p := Pending("<script>")
	assert.Equal(t, lookup.Loading, p.State)
	assert.Equal(t, "&lt;script&gt;", string(p.HTML()))
}

func TestHandlerResolve(t *testing.T) {
	id := uuid.New()
	f := &fakeFinder{profile: &entity.Profile{UserID: id, AccountType: entity.AccountCompany, CompanyName: strPtr("Acme")}}
	h := NewHandler(newTestResolver(f), zap.NewNop().Sugar())

	rr := httptest.NewRecorder()
	h.Resolve(rr, httptest.NewRequest(http.MethodGet, "/api/authors/resolve?name=Wei&user_id="+id.String(), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t,
		`{"name":"Wei","label":"Acme","href":"/company/`+id.String()+`","company":true,"badge":true,"state":"resolved"}`,
		rr.Body.String())

	rr = httptest.NewRecorder()
	h.Resolve(rr, httptest.NewRequest(http.MethodGet, "/api/authors/resolve?name=Wei&format=html", nil))
	assert.Equal(t, "Wei", rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")

	rr = httptest.NewRecorder()
	h.Resolve(rr, httptest.NewRequest(http.MethodGet, "/api/authors/resolve", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
