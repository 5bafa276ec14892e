// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/notes-api/internal/core"
	"github.com/carterperez-dev/templates/notes-api/internal/middleware"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrEmailExists         = errors.New("email already exists")
	ErrUsernameExists      = errors.New("username already exists")
)

const maxRefreshTokenAttempts = 3

type UserInfo struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserProvider is the credential store as seen from the session service.
type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByUsername(ctx context.Context, username string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(
		ctx context.Context,
		email, username, passwordHash string,
	) (*UserInfo, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

type Service struct {
	repo         Repository
	revocations  RevocationStore
	jwt          *JWTManager
	userProvider UserProvider
	logger       *slog.Logger
	retention    time.Duration
	now          func() time.Time
}

func NewService(
	repo Repository,
	revocations RevocationStore,
	jwt *JWTManager,
	userProvider UserProvider,
	logger *slog.Logger,
	retention time.Duration,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		repo:         repo,
		revocations:  revocations,
		jwt:          jwt,
		userProvider: userProvider,
		logger:       logger,
		retention:    retention,
		now:          time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)

	exists, err := s.userProvider.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrEmailExists
	}

	exists, err = s.userProvider.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, ErrUsernameExists
	}

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// the existence checks above can still lose a race; the store's
	// unique constraints map to the same errors
	user, err := s.userProvider.Create(ctx, email, username, passwordHash)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)

	return s.issueSession(ctx, user, userAgent, ipAddress)
}

// Login accepts an email address or a username as the identifier. An
// identifier containing "@" is looked up by email, anything else by
// username, case-insensitively in both cases.
func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	ctx, span := core.StartSpan(ctx, "auth.login")
	defer span.End()

	identifier := strings.TrimSpace(req.Identifier)

	var (
		user *UserInfo
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.userProvider.GetByEmail(ctx, normalizeEmail(identifier))
	} else {
		user, err = s.userProvider.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // unknown accounts pay the same verification cost
			_, _ = core.CheckPassword(req.Password, "")
			return nil, ErrInvalidCredentials
		}
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("get user: %w", err)
	}

	check, err := core.CheckPassword(req.Password, user.PasswordHash)
	if err != nil {
		s.logger.WarnContext(ctx, "password verification failed",
			"user_id", user.ID,
			"error", err,
		)
		return nil, ErrInvalidCredentials
	}

	if !check.Valid {
		return nil, ErrInvalidCredentials
	}

	if check.Rehash != "" {
		if err := s.userProvider.UpdatePassword(ctx, user.ID, check.Rehash); err != nil {
			s.logger.WarnContext(ctx, "password rehash failed",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	return s.issueSession(ctx, user, userAgent, ipAddress)
}

// Refresh redeems a refresh token exactly once. Absent, expired, revoked
// and already rotated tokens all fail the same way.
func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	ctx, span := core.StartSpan(ctx, "auth.refresh")
	defer span.End()

	tokenHash := core.HashToken(refreshToken)

	storedToken, err := s.repo.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("find token: %w", err)
	}

	if !storedToken.IsActive(s.now()) {
		if storedToken.WasRotated() {
			s.logger.WarnContext(ctx, "rotated refresh token presented again",
				"user_id", storedToken.UserID,
				"token_id", storedToken.ID,
				"ip", ipAddress,
			)
			core.AddSpanEvent(ctx, "auth.refresh_token_reuse",
				attribute.String("user.id", storedToken.UserID),
			)
		}
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userProvider.GetByID(ctx, storedToken.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	accessToken, err := s.jwt.CreateAccessToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshData, err := s.storeRefreshToken(ctx, user.ID, userAgent, ipAddress,
		func(next *RefreshToken) error {
			return s.repo.Rotate(ctx, tokenHash, next)
		},
	)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	return s.buildResponse(user, accessToken, refreshData.Token), nil
}

// Logout revokes the refresh token and the presented access token. A
// refresh token that is already inactive or belongs to someone else is
// skipped, and an access token whose claims cannot be read is only logged.
// The only error returned is a failed write to the revocation registry.
func (s *Service) Logout(
	ctx context.Context,
	userID, refreshToken, accessToken string,
) error {
	ctx, span := core.StartSpan(ctx, "auth.logout",
		attribute.String("user.id", userID),
	)
	defer span.End()

	if refreshToken != "" {
		s.revokeRefreshToken(ctx, userID, refreshToken)
	}

	if accessToken == "" {
		return nil
	}

	claims, err := s.jwt.ParseUnverifiedClaims(accessToken)
	if err != nil {
		s.logger.WarnContext(ctx, "logout with unreadable access token",
			"user_id", userID,
			"error", err,
		)
		return nil
	}

	err = s.revocations.Revoke(ctx, RevokedToken{
		ID:        uuid.New().String(),
		JTI:       claims.JTI,
		UserID:    claims.UserID,
		ExpiresAt: claims.ExpiresAt,
		RevokedAt: s.now(),
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return fmt.Errorf("revoke access token: %w", err)
	}

	return nil
}

func (s *Service) revokeRefreshToken(
	ctx context.Context,
	userID, refreshToken string,
) {
	tokenHash := core.HashToken(refreshToken)

	storedToken, err := s.repo.FindByHash(ctx, tokenHash)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			s.logger.WarnContext(ctx, "logout refresh lookup failed",
				"user_id", userID,
				"error", err,
			)
		}
		return
	}

	if storedToken.UserID != userID {
		s.logger.WarnContext(ctx, "logout with another user's refresh token",
			"user_id", userID,
			"token_id", storedToken.ID,
		)
		return
	}

	if !storedToken.IsActive(s.now()) {
		return
	}

	if err := s.repo.Revoke(ctx, tokenHash, nil); err != nil {
		s.logger.WarnContext(ctx, "logout refresh revoke failed",
			"user_id", userID,
			"error", err,
		)
	}
}

func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	revoked, err := s.repo.RevokeAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "all sessions revoked",
		"user_id", userID,
		"count", revoked,
	)

	return nil
}

// IsAccessTokenRevoked is consulted by the request pipeline after an access
// token's signature has been verified.
func (s *Service) IsAccessTokenRevoked(
	ctx context.Context,
	jti string,
) (bool, error) {
	revoked, err := s.revocations.IsRevoked(ctx, jti)
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}

	return revoked, nil
}

func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	return s.jwt.VerifyAccessToken(ctx, token)
}

func (s *Service) GetActiveSessions(
	ctx context.Context,
	userID string,
) ([]SessionInfo, error) {
	tokens, err := s.repo.GetActiveSessionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, SessionInfo{
			ID:        t.ID,
			UserAgent: t.UserAgent,
			IPAddress: t.IPAddress,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
		})
	}

	return sessions, nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

func (s *Service) PurgeExpiredRefreshTokens(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteExpired(ctx, s.retention)
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return deleted, nil
}

func (s *Service) PurgeExpiredRevocations(ctx context.Context) (int64, error) {
	deleted, err := s.revocations.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge revocations: %w", err)
	}
	return deleted, nil
}

func (s *Service) issueSession(
	ctx context.Context,
	user *UserInfo,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	accessToken, err := s.jwt.CreateAccessToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshData, err := s.storeRefreshToken(ctx, user.ID, userAgent, ipAddress,
		func(next *RefreshToken) error {
			return s.repo.Create(ctx, next)
		},
	)
	if err != nil {
		return nil, err
	}

	return s.buildResponse(user, accessToken, refreshData.Token), nil
}

// storeRefreshToken mints a refresh token and hands it to persist,
// minting a fresh one if the hash collides with an existing row.
func (s *Service) storeRefreshToken(
	ctx context.Context,
	userID, userAgent, ipAddress string,
	persist func(next *RefreshToken) error,
) (*RefreshTokenData, error) {
	var lastErr error

	for attempt := 0; attempt < maxRefreshTokenAttempts; attempt++ {
		refreshData, err := s.jwt.CreateRefreshToken()
		if err != nil {
			return nil, fmt.Errorf("create refresh token: %w", err)
		}

		err = persist(&RefreshToken{
			ID:        uuid.New().String(),
			UserID:    userID,
			TokenHash: refreshData.Hash,
			ExpiresAt: refreshData.ExpiresAt,
			UserAgent: userAgent,
			IPAddress: ipAddress,
		})
		if err == nil {
			return refreshData, nil
		}
		if !errors.Is(err, core.ErrDuplicateKey) {
			return nil, fmt.Errorf("store refresh token: %w", err)
		}

		lastErr = err
		s.logger.WarnContext(ctx, "refresh token collision, regenerating",
			"user_id", userID,
			"attempt", attempt+1,
		)
	}

	return nil, fmt.Errorf("store refresh token: %w", lastErr)
}

func (s *Service) buildResponse(
	user *UserInfo,
	accessToken, refreshToken string,
) *AuthResponse {
	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.jwt.AccessTokenTTL() / time.Second),
		User:         toUserResponse(user),
	}
}

func toUserResponse(user *UserInfo) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
