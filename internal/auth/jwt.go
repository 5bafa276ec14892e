// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/templates/notes-api/internal/config"
	"github.com/carterperez-dev/templates/notes-api/internal/core"
	"github.com/carterperez-dev/templates/notes-api/internal/middleware"
)

const accessTokenType = "access"

// JWTManager signs access tokens with a shared HS256 secret. The
// algorithm is pinned on both sign and verify so a token cannot pick its
// own.
type JWTManager struct {
	key    jwk.Key
	config config.JWTConfig
	now    func() time.Time
}

func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is empty")
	}

	key, err := jwk.Import([]byte(cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("import signing key: %w", err)
	}

	if setErr := key.Set(jwk.AlgorithmKey, jwa.HS256()); setErr != nil {
		return nil, fmt.Errorf("set algorithm: %w", setErr)
	}

	// kid is derived from the secret so every instance sharing it agrees
	sum := sha256.Sum256([]byte(cfg.Secret))
	if setErr := key.Set(jwk.KeyIDKey, hex.EncodeToString(sum[:4])); setErr != nil {
		return nil, fmt.Errorf("set key id: %w", setErr)
	}

	return &JWTManager{
		key:    key,
		config: cfg,
		now:    time.Now,
	}, nil
}

func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.config.AccessTokenExpire
}

func (m *JWTManager) RefreshTokenTTL() time.Duration {
	return m.config.RefreshTokenExpire
}

func (m *JWTManager) CreateAccessToken(userID string) (string, error) {
	now := m.now()

	token, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(userID).
		IssuedAt(now).
		Expiration(now.Add(m.config.AccessTokenExpire)).
		NotBefore(now).
		Claim("type", accessTokenType).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), m.key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return string(signed), nil
}

func (m *JWTManager) VerifyAccessToken(
	ctx context.Context,
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), m.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithClock(jwt.ClockFunc(m.now)),
	)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get("type", &tokenType); err != nil ||
		tokenType != accessTokenType {
		return nil, fmt.Errorf(
			"verify token: invalid token type: %w",
			core.ErrTokenInvalid,
		)
	}

	return claimsFromToken(token)
}

// ParseUnverifiedClaims reads the claims of a token without checking its
// signature or expiry. Only logout uses it, to find the jti to revoke.
func (m *JWTManager) ParseUnverifiedClaims(
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.ParseInsecure([]byte(tokenString))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", core.ErrTokenInvalid)
	}

	return claimsFromToken(token)
}

func claimsFromToken(token jwt.Token) (*middleware.AccessTokenClaims, error) {
	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"read claims: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	jti, ok := token.JwtID()
	if !ok || jti == "" {
		return nil, fmt.Errorf(
			"read claims: missing jti: %w",
			core.ErrTokenInvalid,
		)
	}

	expiresAt, ok := token.Expiration()
	if !ok || expiresAt.IsZero() {
		return nil, fmt.Errorf(
			"read claims: missing exp: %w",
			core.ErrTokenInvalid,
		)
	}

	issuedAt, _ := token.IssuedAt()

	return &middleware.AccessTokenClaims{
		UserID:    subject,
		JTI:       jti,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

func isTokenExpiredError(err error) bool {
	return errors.Is(err, jwt.TokenExpiredError())
}

func (m *JWTManager) GetKeyID() string {
	var kid string
	//nolint:errcheck // key ID always set during NewJWTManager init
	_ = m.key.Get(jwk.KeyIDKey, &kid)
	return kid
}

type RefreshTokenData struct {
	Token     string
	Hash      string
	ExpiresAt time.Time
}

func (m *JWTManager) CreateRefreshToken() (*RefreshTokenData, error) {
	token, err := core.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	return &RefreshTokenData{
		Token:     token,
		Hash:      core.HashToken(token),
		ExpiresAt: m.now().Add(m.config.RefreshTokenExpire),
	}, nil
}
