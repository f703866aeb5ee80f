package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// CountRepo counts recently created rows of the tracked tables.
type CountRepo struct {
	db *sqlx.DB
}

func NewCountRepo(db *sqlx.DB) *CountRepo { return &CountRepo{db: db} }

// CountSince returns the number of rows in table with created_at >= cutoff.
// table is an identifier, not user input; it is quoted all the same.
func (r *CountRepo) CountSince(ctx context.Context, table string, cutoff time.Time) (int, error) {
	q := `SELECT COUNT(*) FROM ` + pq.QuoteIdentifier(table) + ` WHERE created_at >= $1`
	var n int
	if err := r.db.GetContext(ctx, &n, q, cutoff); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
