// Package ban tells the client whether the signed-in user is banned.
//
// The answer is a UI hint. It fails open when the predicate cannot be
// evaluated, so it must never gate access; enforcement belongs to the
// database policies.
package ban

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dragon-bridge-community/community-api/internal/auth"
	"github.com/dragon-bridge-community/community-api/internal/ban/entity"
	"github.com/dragon-bridge-community/community-api/internal/lookup"
)

// Store is what the checker needs from the database.
type Store interface {
	IsUserBanned(ctx context.Context, userID uuid.UUID) (bool, error)
	ActiveBan(ctx context.Context, userID uuid.UUID) (*entity.Ban, error)
}

// Status is the checker's answer.
type Status struct {
	IsBanned bool            `json:"isBanned"`
	BanInfo  *entity.BanInfo `json:"banInfo"`
	State    lookup.State    `json:"-"`
}

type Checker struct {
	store  Store
	logger *zap.SugaredLogger
}

func NewChecker(store Store, logger *zap.SugaredLogger) *Checker {
	return &Checker{store: store, logger: logger}
}

// Check evaluates the ban predicate for u. A nil user is never banned and
// causes no query.
func (c *Checker) Check(ctx context.Context, u *auth.User) Status {
	if u == nil {
		return Status{State: lookup.Absent}
	}
	banned, err := c.store.IsUserBanned(ctx, u.ID)
	if err != nil {
		c.logger.Warnw("ban predicate failed, assuming not banned", "user_id", u.ID, "err", err)
		return Status{State: lookup.Errored}
	}
	if !banned {
		return Status{State: lookup.Absent}
	}
	b, err := c.store.ActiveBan(ctx, u.ID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		c.logger.Infow("user banned but no active ban row", "user_id", u.ID)
		return Status{IsBanned: true, State: lookup.Resolved}
	case err != nil:
		c.logger.Warnw("ban details lookup failed", "user_id", u.ID, "err", err)
		return Status{IsBanned: true, State: lookup.Resolved}
	}
	return Status{IsBanned: true, BanInfo: b.Info(), State: lookup.Resolved}
}
