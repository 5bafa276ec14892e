// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// RefreshToken is a ledger row. The opaque token itself is never stored,
// only its SHA-256 hex digest.
type RefreshToken struct {
	ID             string     `db:"id"`
	UserID         string     `db:"user_id"`
	TokenHash      string     `db:"token_hash"`
	ExpiresAt      time.Time  `db:"expires_at"`
	CreatedAt      time.Time  `db:"created_at"`
	RevokedAt      *time.Time `db:"revoked_at"`
	ReplacedByHash *string    `db:"replaced_by_hash"`
	UserAgent      string     `db:"user_agent"`
	IPAddress      string     `db:"ip_address"`
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsActive reports revoked_at IS NULL AND expires_at > now.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}

// WasRotated reports whether the token was spent on a refresh, as opposed
// to revoked by logout or left to expire.
func (t *RefreshToken) WasRotated() bool {
	return t.ReplacedByHash != nil
}

// RevokedToken is a revocation registry entry for an access token jti.
type RevokedToken struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey"`
	JTI       string    `gorm:"column:jti;size:64;not null;uniqueIndex:revoked_tokens_jti_key"`
	UserID    string    `gorm:"column:user_id;type:uuid;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	RevokedAt time.Time `gorm:"column:revoked_at;not null"`
}

func (RevokedToken) TableName() string {
	return "revoked_tokens"
}
