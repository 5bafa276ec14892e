// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/templates/notes-api/internal/core"
)

// Repository is the refresh token ledger. Every method takes the SHA-256
// hash of the opaque token, never the token itself.
type Repository interface {
	Create(ctx context.Context, token *RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string, replacedByHash *string) error
	Rotate(ctx context.Context, presentedHash string, next *RefreshToken) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	GetActiveSessionsForUser(
		ctx context.Context,
		userID string,
	) ([]RefreshToken, error)
	DeleteExpired(ctx context.Context, retention time.Duration) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const refreshTokenColumns = `
	id, user_id, token_hash, expires_at, created_at,
	revoked_at, replaced_by_hash, user_agent, ip_address`

func (r *repository) Create(ctx context.Context, token *RefreshToken) error {
	return insertRefreshToken(ctx, r.db, token)
}

func insertRefreshToken(
	ctx context.Context,
	db core.DBTX,
	token *RefreshToken,
) error {
	query := `
		INSERT INTO refresh_tokens (
			id, user_id, token_hash, expires_at, user_agent, ip_address
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		RETURNING created_at`

	err := db.GetContext(ctx, &token.CreatedAt, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.UserAgent,
		token.IPAddress,
	)
	if err != nil {
		if _, dup := core.UniqueViolation(err); dup {
			return fmt.Errorf("create refresh token: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create refresh token: %w", err)
	}

	return nil
}

func (r *repository) FindByHash(
	ctx context.Context,
	tokenHash string,
) (*RefreshToken, error) {
	query := `SELECT` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1`

	var token RefreshToken
	err := r.db.GetContext(ctx, &token, query, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &token, nil
}

// Revoke is idempotent: revoking an already revoked token changes nothing
// and is not an error.
func (r *repository) Revoke(
	ctx context.Context,
	tokenHash string,
	replacedByHash *string,
) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW(),
			replaced_by_hash = COALESCE($2, replaced_by_hash)
		WHERE token_hash = $1 AND revoked_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, tokenHash, replacedByHash); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	return nil
}

// Rotate revokes the presented token and stores its replacement in one
// transaction. The revoke is conditional on the token still being active,
// so when two callers race on the same token exactly one of them wins;
// the other gets core.ErrNotFound and nothing is written.
func (r *repository) Rotate(
	ctx context.Context,
	presentedHash string,
	next *RefreshToken,
) error {
	return core.RunInTx(ctx, r.db, func(tx core.DBTX) error {
		query := `
			UPDATE refresh_tokens
			SET revoked_at = NOW(), replaced_by_hash = $2
			WHERE token_hash = $1
				AND revoked_at IS NULL
				AND expires_at > NOW()`

		result, err := tx.ExecContext(ctx, query, presentedHash, next.TokenHash)
		if err != nil {
			return fmt.Errorf("rotate refresh token: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rotate refresh token: %w", err)
		}

		if rows == 0 {
			return fmt.Errorf("rotate refresh token: %w", core.ErrNotFound)
		}

		return insertRefreshToken(ctx, tx, next)
	})
}

func (r *repository) RevokeAllForUser(
	ctx context.Context,
	userID string,
) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke all user tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke all user tokens: %w", err)
	}

	return rows, nil
}

func (r *repository) GetActiveSessionsForUser(
	ctx context.Context,
	userID string,
) ([]RefreshToken, error) {
	query := `SELECT` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE user_id = $1
			AND revoked_at IS NULL
			AND expires_at > NOW()
		ORDER BY created_at DESC`

	var tokens []RefreshToken
	err := r.db.SelectContext(ctx, &tokens, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get active sessions: %w", err)
	}

	return tokens, nil
}

// DeleteExpired removes tokens that expired, or were revoked, more than
// retention ago. Active tokens never match either branch.
func (r *repository) DeleteExpired(
	ctx context.Context,
	retention time.Duration,
) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1
			OR (revoked_at IS NOT NULL AND revoked_at < $1)`

	cutoff := time.Now().Add(-retention)

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	return rows, nil
}
