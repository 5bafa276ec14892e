// AngelaMos | 2026
// fakes_test.go

package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/notes-api/internal/config"
	"github.com/carterperez-dev/templates/notes-api/internal/core"
)

const testSecret = "test-secret-that-is-at-least-32-bytes-long"

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:             testSecret,
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 7 * 24 * time.Hour,
		Issuer:             "notes-api",
		Audience:           "notes-api-clients",
	}
}

func newTestJWTManager(t *testing.T) *JWTManager {
	t.Helper()

	m, err := NewJWTManager(testJWTConfig())
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	return m
}

// memoryLedger mirrors the conditional UPDATE of the SQL ledger: a rotate
// only succeeds while the presented token is still active.
type memoryLedger struct {
	mu             sync.Mutex
	tokens         map[string]*RefreshToken
	duplicateFails int
	now            func() time.Time
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		tokens: make(map[string]*RefreshToken),
		now:    time.Now,
	}
}

func (l *memoryLedger) insert(token *RefreshToken) error {
	if l.duplicateFails > 0 {
		l.duplicateFails--
		return core.ErrDuplicateKey
	}
	if _, ok := l.tokens[token.TokenHash]; ok {
		return core.ErrDuplicateKey
	}

	stored := *token
	stored.CreatedAt = l.now()
	l.tokens[token.TokenHash] = &stored
	token.CreatedAt = stored.CreatedAt
	return nil
}

func (l *memoryLedger) Create(_ context.Context, token *RefreshToken) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.insert(token)
}

func (l *memoryLedger) FindByHash(
	_ context.Context,
	tokenHash string,
) (*RefreshToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	token, ok := l.tokens[tokenHash]
	if !ok {
		return nil, core.ErrNotFound
	}
	found := *token
	return &found, nil
}

func (l *memoryLedger) Revoke(
	_ context.Context,
	tokenHash string,
	replacedByHash *string,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	token, ok := l.tokens[tokenHash]
	if !ok || token.IsRevoked() {
		return nil
	}
	now := l.now()
	token.RevokedAt = &now
	if replacedByHash != nil {
		token.ReplacedByHash = replacedByHash
	}
	return nil
}

func (l *memoryLedger) Rotate(
	_ context.Context,
	presentedHash string,
	next *RefreshToken,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	token, ok := l.tokens[presentedHash]
	if !ok || !token.IsActive(l.now()) {
		return core.ErrNotFound
	}

	if err := l.insert(next); err != nil {
		return err
	}

	now := l.now()
	replacedBy := next.TokenHash
	token.RevokedAt = &now
	token.ReplacedByHash = &replacedBy
	return nil
}

func (l *memoryLedger) RevokeAllForUser(
	_ context.Context,
	userID string,
) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var count int64
	now := l.now()
	for _, token := range l.tokens {
		if token.UserID == userID && token.IsActive(now) {
			revokedAt := now
			token.RevokedAt = &revokedAt
			count++
		}
	}
	return count, nil
}

func (l *memoryLedger) GetActiveSessionsForUser(
	_ context.Context,
	userID string,
) ([]RefreshToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var tokens []RefreshToken
	for _, token := range l.tokens {
		if token.UserID == userID && token.IsActive(l.now()) {
			tokens = append(tokens, *token)
		}
	}
	return tokens, nil
}

func (l *memoryLedger) DeleteExpired(
	_ context.Context,
	retention time.Duration,
) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-retention)
	var count int64
	for hash, token := range l.tokens {
		if token.ExpiresAt.Before(cutoff) ||
			(token.RevokedAt != nil && token.RevokedAt.Before(cutoff)) {
			delete(l.tokens, hash)
			count++
		}
	}
	return count, nil
}

func (l *memoryLedger) get(token string) *RefreshToken {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, ok := l.tokens[core.HashToken(token)]
	if !ok {
		return nil
	}
	found := *stored
	return &found
}

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*UserInfo
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[string]*UserInfo)}
}

func (u *memoryUsers) find(match func(*UserInfo) bool) (*UserInfo, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, user := range u.users {
		if match(user) {
			found := *user
			return &found, nil
		}
	}
	return nil, core.ErrNotFound
}

func (u *memoryUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	return u.find(func(user *UserInfo) bool {
		return user.Email == strings.ToLower(email)
	})
}

func (u *memoryUsers) GetByUsername(
	_ context.Context,
	username string,
) (*UserInfo, error) {
	return u.find(func(user *UserInfo) bool {
		return strings.EqualFold(user.Username, username)
	})
}

func (u *memoryUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	return u.find(func(user *UserInfo) bool { return user.ID == id })
}

func (u *memoryUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := u.GetByEmail(ctx, email)
	return err == nil, nil
}

func (u *memoryUsers) ExistsByUsername(
	ctx context.Context,
	username string,
) (bool, error) {
	_, err := u.GetByUsername(ctx, username)
	return err == nil, nil
}

func (u *memoryUsers) Create(
	_ context.Context,
	email, username, passwordHash string,
) (*UserInfo, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := time.Now()
	user := &UserInfo{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	u.users[user.ID] = user

	created := *user
	return &created, nil
}

func (u *memoryUsers) UpdatePassword(
	_ context.Context,
	userID, passwordHash string,
) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.users[userID]
	if !ok {
		return core.ErrNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (u *memoryUsers) add(user *UserInfo) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.users[user.ID] = user
}

type memoryRevocations struct {
	mu      sync.Mutex
	entries map[string]RevokedToken
	err     error
}

func newMemoryRevocations() *memoryRevocations {
	return &memoryRevocations{entries: make(map[string]RevokedToken)}
}

func (r *memoryRevocations) Revoke(_ context.Context, token RevokedToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	if _, ok := r.entries[token.JTI]; !ok {
		r.entries[token.JTI] = token
	}
	return nil
}

func (r *memoryRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return false, r.err
	}
	_, ok := r.entries[jti]
	return ok, nil
}

func (r *memoryRevocations) DeleteExpired(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return 0, r.err
	}

	var count int64
	now := time.Now()
	for jti, entry := range r.entries {
		if !entry.ExpiresAt.After(now) {
			delete(r.entries, jti)
			count++
		}
	}
	return count, nil
}

var errStoreDown = errors.New("store unavailable")

type testEnv struct {
	svc         *Service
	ledger      *memoryLedger
	users       *memoryUsers
	revocations *memoryRevocations
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		ledger:      newMemoryLedger(),
		users:       newMemoryUsers(),
		revocations: newMemoryRevocations(),
	}
	env.svc = NewService(
		env.ledger,
		env.revocations,
		newTestJWTManager(t),
		env.users,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		24*time.Hour,
	)
	return env
}

func (e *testEnv) register(t *testing.T, email, username, password string) *AuthResponse {
	t.Helper()

	resp, err := e.svc.Register(context.Background(), RegisterRequest{
		Email:    email,
		Username: username,
		Password: password,
	}, "test-agent", "127.0.0.1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return resp
}
