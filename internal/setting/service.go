package setting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dragon-bridge-community/community-api/internal/setting/entity"
)

// MapsAPIKeySetting is the key the maps API key is stored under.
const MapsAPIKeySetting = "google_maps_api_key"

// sentinel errors for common failure modes
var (
	ErrQuery         = errors.New("setting query failed")
	ErrNotConfigured = errors.New("setting not configured")
)

// Reader fetches one setting row.
type Reader interface {
	GetByKey(ctx context.Context, key string) (*entity.Setting, error)
}

// Service encapsulates business logic for settings and depends on a reader.
type Service struct {
	repo Reader
}

// NewService constructs a Service with the provided repository.
func NewService(r Reader) *Service {
	return &Service{repo: r}
}

// StringValue returns the decoded string stored under key. A missing row
// or an empty value is ErrNotConfigured; a failed query wraps ErrQuery;
// an undecodable value is returned as a plain decode error.
func (s *Service) StringValue(ctx context.Context, key string) (string, error) {
	st, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotConfigured
		}
		return "", fmt.Errorf("%w: %w", ErrQuery, err)
	}
	if st == nil {
		return "", ErrNotConfigured
	}
	v, err := st.DecodeString()
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", ErrNotConfigured
	}
	return v, nil
}

// MapsAPIKey returns the configured maps API key.
func (s *Service) MapsAPIKey(ctx context.Context) (string, error) {
	return s.StringValue(ctx, MapsAPIKeySetting)
}
