// AngelaMos | 2026
// revocation.go

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RevocationStore records access tokens that were explicitly logged out
// before their natural expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, token RevokedToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type gormRevocationStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormRevocationStore(db *gorm.DB) RevocationStore {
	return &gormRevocationStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Revoke inserts the jti once. A second revoke of the same jti, for
// example from a double logout, is a no-op.
func (s *gormRevocationStore) Revoke(
	ctx context.Context,
	token RevokedToken,
) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.RevokedAt.IsZero() {
		token.RevokedAt = s.now()
	}
	token.ExpiresAt = token.ExpiresAt.UTC()

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "jti"}},
			DoNothing: true,
		}).
		Create(&token).Error
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}

	return nil
}

func (s *gormRevocationStore) IsRevoked(
	ctx context.Context,
	jti string,
) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&RevokedToken{}).
		Where("jti = ?", jti).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}

	return count > 0, nil
}

// DeleteExpired drops entries whose access token has expired on its own;
// signature validation rejects those regardless.
func (s *gormRevocationStore) DeleteExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now()).
		Delete(&RevokedToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete expired revocations: %w", result.Error)
	}

	return result.RowsAffected, nil
}
