// AngelaMos | 2026
// service_test.go

package user

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/notes-api/internal/auth"
	"github.com/carterperez-dev/templates/notes-api/internal/core"
	"github.com/carterperez-dev/templates/notes-api/internal/middleware"
)

type memoryRepository struct {
	mu    sync.Mutex
	users map[string]User
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{users: make(map[string]User)}
}

func (m *memoryRepository) conflict(u *User) error {
	for _, existing := range m.users {
		if existing.ID == u.ID {
			continue
		}
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
		if strings.EqualFold(existing.Username, u.Username) {
			return ErrUsernameTaken
		}
	}
	return nil
}

func (m *memoryRepository) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.conflict(u); err != nil {
		return err
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memoryRepository) find(match func(User) bool) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memoryRepository) GetByID(_ context.Context, id string) (*User, error) {
	return m.find(func(u User) bool { return u.ID == id })
}

func (m *memoryRepository) GetByEmail(_ context.Context, email string) (*User, error) {
	return m.find(func(u User) bool { return u.Email == email })
}

func (m *memoryRepository) GetByUsername(_ context.Context, username string) (*User, error) {
	return m.find(func(u User) bool { return strings.EqualFold(u.Username, username) })
}

func (m *memoryRepository) Update(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.ID]; !ok {
		return core.ErrNotFound
	}
	if err := m.conflict(u); err != nil {
		return err
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memoryRepository) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return core.ErrNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

func (m *memoryRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *memoryRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

func TestService_CreateNormalizes(t *testing.T) {
	svc := NewService(newMemoryRepository())
	ctx := context.Background()

	info, err := svc.Create(ctx, "  A@X.com ", " alice ", "hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if info.Email != "a@x.com" || info.Username != "alice" {
		t.Errorf("stored %q/%q", info.Email, info.Username)
	}

	found, err := svc.GetByEmail(ctx, "A@x.COM")
	if err != nil || found.ID != info.ID {
		t.Errorf("lookup by mixed-case email = %v, %v", found, err)
	}

	found, err = svc.GetByUsername(ctx, "ALICE")
	if err != nil || found.ID != info.ID {
		t.Errorf("lookup by upper-case username = %v, %v", found, err)
	}
}

func TestService_CreateConflicts(t *testing.T) {
	svc := NewService(newMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Create(ctx, "a@x.com", "alice", "hash"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Create(ctx, "a@x.com", "other", "hash"); !errors.Is(err, auth.ErrEmailExists) {
		t.Errorf("email conflict err = %v", err)
	}
	if _, err := svc.Create(ctx, "b@x.com", "Alice", "hash"); !errors.Is(err, auth.ErrUsernameExists) {
		t.Errorf("username conflict err = %v", err)
	}
}

func TestService_UpdateMe(t *testing.T) {
	svc := NewService(newMemoryRepository())
	ctx := context.Background()

	alice, err := svc.Create(ctx, "a@x.com", "alice", "hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, "b@x.com", "bob", "hash"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	renamed := "alicia"
	u, err := svc.UpdateMe(ctx, alice.ID, UpdateUserRequest{Username: &renamed})
	if err != nil {
		t.Fatalf("UpdateMe: %v", err)
	}
	if u.Username != "alicia" {
		t.Errorf("username = %q", u.Username)
	}

	taken := "BOB"
	if _, err := svc.UpdateMe(ctx, alice.ID, UpdateUserRequest{Username: &taken}); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("taken username err = %v", err)
	}

	if _, err := svc.UpdateMe(ctx, "", UpdateUserRequest{}); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("anonymous err = %v", err)
	}
}

func TestHandler_Me(t *testing.T) {
	svc := NewService(newMemoryRepository())
	alice, err := svc.Create(context.Background(), "a@x.com", "alice", "hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	asAlice := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), alice.ID)))
		})
	}

	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, asAlice)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/me", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	var resp UserResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Email != "a@x.com" {
		t.Errorf("email = %q", resp.Email)
	}
	if strings.Contains(rec.Body.String(), "hash") {
		t.Error("password hash must never be serialized")
	}

	body := bytes.NewBufferString(`{"username":"no spaces allowed"}`)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/users/me", body))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid username status = %d, want 400", rec.Code)
	}
}
