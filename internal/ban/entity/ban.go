package entity

import (
	"time"

	"github.com/google/uuid"
)

// Ban is a row of `user_bans`. Bans are issued and lifted elsewhere.
type Ban struct {
	UserID    uuid.UUID  `db:"user_id"`
	Reason    *string    `db:"reason"`
	BanType   string     `db:"ban_type"`
	ExpiresAt *time.Time `db:"expires_at"`
	IsActive  bool       `db:"is_active"`
	CreatedAt time.Time  `db:"created_at"`
}

// BanInfo is the part of a ban shown to the banned user. A ban issued
// without a reason has a nil Reason.
type BanInfo struct {
	Reason    *string    `json:"reason"`
	BanType   string     `json:"ban_type"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (b *Ban) Info() *BanInfo {
	if b == nil {
		return nil
	}
	return &BanInfo{Reason: b.Reason, BanType: b.BanType, ExpiresAt: b.ExpiresAt, CreatedAt: b.CreatedAt}
}

// Permanent reports whether the ban has no expiry.
func (i *BanInfo) Permanent() bool {
	return i != nil && i.ExpiresAt == nil
}
