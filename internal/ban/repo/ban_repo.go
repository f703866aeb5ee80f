package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dragon-bridge-community/community-api/internal/ban/entity"
)

// BanRepo reads ban state. The predicate lives in the database so the same
// rule serves row-level security and this check.
type BanRepo struct {
	db *sqlx.DB
}

func NewBanRepo(db *sqlx.DB) *BanRepo { return &BanRepo{db: db} }

// IsUserBanned calls the is_user_banned(uuid) predicate.
func (r *BanRepo) IsUserBanned(ctx context.Context, userID uuid.UUID) (bool, error) {
	var banned bool
	if err := r.db.GetContext(ctx, &banned, `SELECT public.is_user_banned($1)`, userID); err != nil {
		return false, err
	}
	return banned, nil
}

// ActiveBan returns the newest active ban of userID, or sql.ErrNoRows.
func (r *BanRepo) ActiveBan(ctx context.Context, userID uuid.UUID) (*entity.Ban, error) {
	const q = `SELECT user_id, reason, ban_type, expires_at, is_active, created_at
		FROM user_bans WHERE user_id=$1 AND is_active=true
		ORDER BY created_at DESC LIMIT 1`
	var b entity.Ban
	if err := r.db.GetContext(ctx, &b, q, userID); err != nil {
		return nil, err
	}
	return &b, nil
}
