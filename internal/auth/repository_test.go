// AngelaMos | 2026
// repository_test.go

package auth

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/notes-api/internal/core"
)

func newMockRepository(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})

	return NewRepository(sqlx.NewDb(db, "pgx")), mock
}

// exactSQL matches the whole statement after whitespace is collapsed, so
// an extra predicate or branch fails the expectation.
func exactSQL(sql string) string {
	return "^" + regexp.QuoteMeta(sql) + "$"
}

var refreshTokenRow = []string{
	"id", "user_id", "token_hash", "expires_at", "created_at",
	"revoked_at", "replaced_by_hash", "user_agent", "ip_address",
}

type timeWithin struct {
	earliest time.Time
	latest   func() time.Time
}

func (m timeWithin) Match(v driver.Value) bool {
	ts, ok := v.(time.Time)
	return ok && !ts.Before(m.earliest) && !ts.After(m.latest())
}

func nextToken() *RefreshToken {
	return &RefreshToken{
		ID:        "22222222-2222-2222-2222-222222222222",
		UserID:    "11111111-1111-1111-1111-111111111111",
		TokenHash: "next-hash",
		ExpiresAt: time.Now().Add(time.Hour),
		UserAgent: "ua",
		IPAddress: "10.0.0.1",
	}
}

const rotateSQL = `UPDATE refresh_tokens SET revoked_at = NOW(), replaced_by_hash = $2 ` +
	`WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()`

const insertSQL = `INSERT INTO refresh_tokens ( id, user_id, token_hash, expires_at, ` +
	`user_agent, ip_address ) VALUES ( $1, $2, $3, $4, $5, $6 ) RETURNING created_at`

func TestRepository_RotateWinner(t *testing.T) {
	repo, mock := newMockRepository(t)
	next := nextToken()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(exactSQL(rotateSQL)).
		WithArgs("old-hash", "next-hash").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(exactSQL(insertSQL)).
		WithArgs(next.ID, next.UserID, next.TokenHash, sqlmock.AnyArg(), "ua", "10.0.0.1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectCommit()

	if err := repo.Rotate(context.Background(), "old-hash", next); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if !next.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", next.CreatedAt, created)
	}
}

func TestRepository_RotateLoserWritesNothing(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(exactSQL(rotateSQL)).
		WithArgs("old-hash", "next-hash").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Rotate(context.Background(), "old-hash", nextToken())
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRepository_RotateInsertFailureRollsBack(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(exactSQL(rotateSQL)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(exactSQL(insertSQL)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "refresh_tokens_token_hash_key"})
	mock.ExpectRollback()

	err := repo.Rotate(context.Background(), "old-hash", nextToken())
	if !errors.Is(err, core.ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestRepository_CreateDuplicate(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(exactSQL(insertSQL)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), nextToken())
	if !errors.Is(err, core.ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestRepository_FindByHash(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()
	query := exactSQL(`SELECT id, user_id, token_hash, expires_at, created_at, ` +
		`revoked_at, replaced_by_hash, user_agent, ip_address ` +
		`FROM refresh_tokens WHERE token_hash = $1`)

	mock.ExpectQuery(query).
		WithArgs("known").
		WillReturnRows(sqlmock.NewRows(refreshTokenRow).AddRow(
			"id-1", "user-1", "known", now.Add(time.Hour), now,
			nil, nil, "ua", "10.0.0.1",
		))
	mock.ExpectQuery(query).
		WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows(refreshTokenRow))

	token, err := repo.FindByHash(context.Background(), "known")
	if err != nil {
		t.Fatalf("FindByHash: %v", err)
	}
	if token.UserID != "user-1" || token.RevokedAt != nil || !token.IsActive(now) {
		t.Errorf("token = %+v", token)
	}

	if _, err := repo.FindByHash(context.Background(), "unknown"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown hash err = %v, want ErrNotFound", err)
	}
}

func TestRepository_RevokeOnlyTouchesActive(t *testing.T) {
	repo, mock := newMockRepository(t)
	query := exactSQL(`UPDATE refresh_tokens SET revoked_at = NOW(), ` +
		`replaced_by_hash = COALESCE($2, replaced_by_hash) ` +
		`WHERE token_hash = $1 AND revoked_at IS NULL`)

	mock.ExpectExec(query).WithArgs("h", nil).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("h", nil).WillReturnResult(sqlmock.NewResult(0, 0))

	for range 2 {
		if err := repo.Revoke(context.Background(), "h", nil); err != nil {
			t.Fatalf("Revoke: %v", err)
		}
	}
}

func TestRepository_RevokeAllForUser(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(exactSQL(`UPDATE refresh_tokens SET revoked_at = NOW() ` +
		`WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()`)).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAllForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}
	if n != 3 {
		t.Errorf("revoked = %d, want 3", n)
	}
}

func TestRepository_ActiveSessions(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()

	mock.ExpectQuery(exactSQL(`SELECT id, user_id, token_hash, expires_at, created_at, ` +
		`revoked_at, replaced_by_hash, user_agent, ip_address ` +
		`FROM refresh_tokens WHERE user_id = $1 AND revoked_at IS NULL ` +
		`AND expires_at > NOW() ORDER BY created_at DESC`)).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(refreshTokenRow).
			AddRow("a", "user-1", "ha", now.Add(time.Hour), now, nil, nil, "ua", "ip").
			AddRow("b", "user-1", "hb", now.Add(time.Hour), now, nil, nil, "ua", "ip"))

	sessions, err := repo.GetActiveSessionsForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetActiveSessionsForUser: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("sessions = %d, want 2", len(sessions))
	}
}

// The purge statement has exactly two branches, both bounded by a cutoff
// at least retention in the past. An active row has expires_at in the
// future and revoked_at NULL, so neither branch can select it.
func TestRepository_DeleteExpiredNeverMatchesActive(t *testing.T) {
	repo, mock := newMockRepository(t)
	retention := 24 * time.Hour
	earliest := time.Now().Add(-retention)

	mock.ExpectExec(exactSQL(`DELETE FROM refresh_tokens ` +
		`WHERE expires_at < $1 OR (revoked_at IS NOT NULL AND revoked_at < $1)`)).
		WithArgs(timeWithin{
			earliest: earliest,
			latest:   func() time.Time { return time.Now().Add(-retention) },
		}).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteExpired(context.Background(), retention)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 4 {
		t.Errorf("deleted = %d, want 4", n)
	}
}
