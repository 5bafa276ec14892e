// AngelaMos | 2026
// auth_test.go

package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carterperez-dev/templates/notes-api/internal/core"
)

type stubVerifier struct {
	claims *AccessTokenClaims
	err    error
}

func (s stubVerifier) VerifyAccessToken(
	context.Context,
	string,
) (*AccessTokenClaims, error) {
	return s.claims, s.err
}

type stubRevocations struct {
	revoked bool
	err     error
	checked []string
}

func (s *stubRevocations) IsAccessTokenRevoked(
	_ context.Context,
	jti string,
) (bool, error) {
	s.checked = append(s.checked, jti)
	return s.revoked, s.err
}

func validClaims() *AccessTokenClaims {
	now := time.Now()
	return &AccessTokenClaims{
		UserID:    "user-1",
		JTI:       "jti-1",
		IssuedAt:  now,
		ExpiresAt: now.Add(15 * time.Minute),
	}
}

func serveAuthenticated(
	verifier TokenVerifier,
	revocations RevocationChecker,
	authHeader string,
) (*httptest.ResponseRecorder, string) {
	var seenUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	rec := httptest.NewRecorder()
	Authenticator(verifier, revocations)(next).ServeHTTP(rec, req)
	return rec, seenUser
}

func TestAuthenticator_Allows(t *testing.T) {
	revocations := &stubRevocations{}

	rec, user := serveAuthenticated(
		stubVerifier{claims: validClaims()},
		revocations,
		"Bearer token",
	)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if user != "user-1" {
		t.Errorf("user id = %q, want user-1", user)
	}
	if len(revocations.checked) != 1 || revocations.checked[0] != "jti-1" {
		t.Errorf("checked jtis = %v", revocations.checked)
	}
}

func TestAuthenticator_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		verifier    stubVerifier
		revocations *stubRevocations
		wantStatus  int
	}{
		{
			name:        "missing header",
			verifier:    stubVerifier{claims: validClaims()},
			revocations: &stubRevocations{},
			wantStatus:  http.StatusUnauthorized,
		},
		{
			name:        "wrong scheme",
			header:      "Basic abc",
			verifier:    stubVerifier{claims: validClaims()},
			revocations: &stubRevocations{},
			wantStatus:  http.StatusUnauthorized,
		},
		{
			name:        "expired",
			header:      "Bearer token",
			verifier:    stubVerifier{err: fmt.Errorf("verify: %w", core.ErrTokenExpired)},
			revocations: &stubRevocations{},
			wantStatus:  http.StatusUnauthorized,
		},
		{
			name:        "revoked",
			header:      "Bearer token",
			verifier:    stubVerifier{claims: validClaims()},
			revocations: &stubRevocations{revoked: true},
			wantStatus:  http.StatusUnauthorized,
		},
		{
			name:        "registry down",
			header:      "Bearer token",
			verifier:    stubVerifier{claims: validClaims()},
			revocations: &stubRevocations{err: errors.New("down")},
			wantStatus:  http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, user := serveAuthenticated(tt.verifier, tt.revocations, tt.header)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if user != "" {
				t.Error("handler should not run")
			}
		})
	}
}

func TestAuthenticator_NilRevocations(t *testing.T) {
	rec, _ := serveAuthenticated(stubVerifier{claims: validClaims()}, nil, "Bearer token")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer  abc ", "abc"},
		{"Token abc", ""},
		{"Bearer", ""},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := ExtractToken(req); got != tt.want {
			t.Errorf("ExtractToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
