package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dragon-bridge-community/community-api/internal/profile/entity"
)

// ProfileRepo reads the `profiles` table.
type ProfileRepo struct {
	db *sqlx.DB
}

func NewProfileRepo(db *sqlx.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// FindCompany returns the company profile of userID, or sql.ErrNoRows when
// the user has none.
func (r *ProfileRepo) FindCompany(ctx context.Context, userID uuid.UUID) (*entity.Profile, error) {
	const q = `SELECT user_id, account_type, company_name
		FROM profiles WHERE user_id=$1 AND account_type=$2 LIMIT 1`
	var p entity.Profile
	if err := r.db.GetContext(ctx, &p, q, userID, entity.AccountCompany); err != nil {
		return nil, err
	}
	return &p, nil
}
