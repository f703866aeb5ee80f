package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/dragon-bridge-community/community-api/internal/setting/entity"
)

// Repo is the repository implementation for settings backed by PostgreSQL.
type Repo struct {
	db *sqlx.DB
}

// NewRepo constructs a new Repo with an existing connection.
func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// GetByKey returns the setting stored under key or sql.ErrNoRows.
// setting_value is read as text so jsonb and text columns behave the same.
func (r *Repo) GetByKey(ctx context.Context, key string) (*entity.Setting, error) {
	const q = `SELECT setting_key, setting_value::text AS setting_value FROM site_settings WHERE setting_key = $1 LIMIT 1`
	var s entity.Setting
	if err := r.db.GetContext(ctx, &s, q, key); err != nil {
		return nil, err
	}
	return &s, nil
}

// EnsureTable ensures the site_settings table exists.
// Fields:
// - setting_key text PRIMARY KEY
// - setting_value jsonb
// - updated_at timestamptz
func (r *Repo) EnsureTable(ctx context.Context) error {
	// Check if table exists using to_regclass (Postgres). If it exists, skip creation.
	var tblName sql.NullString
	if err := r.db.QueryRowContext(ctx, "SELECT to_regclass('public.site_settings')").Scan(&tblName); err != nil {
		return err
	}
	if tblName.Valid {
		return nil
	}
	const createTable = `CREATE TABLE site_settings (
		setting_key text PRIMARY KEY,
		setting_value jsonb NOT NULL DEFAULT 'null'::jsonb,
		updated_at timestamptz NOT NULL DEFAULT now()
	)`
	_, err := r.db.ExecContext(ctx, createTable)
	return err
}
