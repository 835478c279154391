package service

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/medistock/medistock-backend/internal/auth/identity"
	"github.com/medistock/medistock-backend/internal/auth/jwt"
	"github.com/medistock/medistock-backend/internal/auth/repository"
	userdomain "github.com/medistock/medistock-backend/internal/user/domain"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/logger"
	"github.com/medistock/medistock-backend/pkg/tenant"
)

// SessionStore is satisfied by *repository.SessionRepository.
type SessionStore interface {
	CreateWithID(ctx context.Context, id, userID, tenantID, refreshToken string, expiresAt time.Time, userAgent, ipAddress string) (*repository.Session, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (*repository.Session, error)
	Rotate(ctx context.Context, id string, newRefreshToken string) error
	RevokeByRefreshToken(ctx context.Context, refreshToken string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	CleanExpired(ctx context.Context) (int64, error)
}

// ProfileLookup loads the profile of a user in the tenant in context.
type ProfileLookup interface {
	GetByID(ctx context.Context, uid string) (*userdomain.User, error)
}

// AuthService handles authentication logic
type AuthService struct {
	provider   identity.Provider
	sessions   SessionStore
	profiles   ProfileLookup
	jwtManager *jwt.Manager
	logger     *logger.Logger
	now        func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(provider identity.Provider, sessions SessionStore, profiles ProfileLookup, jwtManager *jwt.Manager, log *logger.Logger) *AuthService {
	return &AuthService{
		provider:   provider,
		sessions:   sessions,
		profiles:   profiles,
		jwtManager: jwtManager,
		logger:     log,
		now:        time.Now,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
	User         *UserInfo `json:"user"`
}

// UserInfo represents user information
type UserInfo struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	TenantSlug  string   `json:"tenant_slug"`
}

// Login authenticates a user and returns tokens
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, userAgent, ipAddress string) (*LoginResponse, error) {
	ident, err := s.provider.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, identity.ToAppError(err)
	}

	tenantCtx := tenant.WithTenantContext(ctx, ident.TenantID, ident.TenantSlug)
	profile, err := s.profiles.GetByID(tenantCtx, ident.UID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			// A login without a profile has no role and cannot use the API.
			s.logger.Warn().Str("user_id", ident.UID).Msg("login for identity without profile")
			return nil, errors.InvalidCredentials()
		}
		return nil, err
	}

	user := userInfo(profile, ident.TenantSlug)
	sessionID := uuid.New().String()

	tokens, err := s.jwtManager.GenerateTokenPair(tokenInfo(user, ident.TenantID), sessionID)
	if err != nil {
		return nil, errors.Internal("failed to generate tokens")
	}

	expiresAt := s.now().Add(s.jwtManager.GetRefreshExpiry())
	if _, err := s.sessions.CreateWithID(ctx, sessionID, ident.UID, ident.TenantID, tokens.RefreshToken, expiresAt, userAgent, ipAddress); err != nil {
		s.logger.Error().Err(err).Msg("failed to create session")
		return nil, errors.Internal("failed to create session")
	}

	s.logger.Info().Str("user_id", ident.UID).Str("tenant_id", ident.TenantID).Msg("user logged in")

	return &LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		TokenType:    tokens.TokenType,
		User:         user,
	}, nil
}

// Logout invalidates a session
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.RevokeByRefreshToken(ctx, refreshToken); err != nil {
		s.logger.Warn().Err(err).Msg("failed to revoke session")
	}
	return nil
}

// Refresh issues a new token pair for a live session and rotates its refresh
// token. The role is re-read from the profile.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.TokenRevoked()
		}
		return nil, err
	}
	if session.ID != claims.SessionID || session.UserID != claims.UserID {
		return nil, errors.TokenInvalid()
	}

	tenantCtx := tenant.WithTenantContext(ctx, session.TenantID, claims.TenantSlug)
	profile, err := s.profiles.GetByID(tenantCtx, session.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.TokenRevoked()
		}
		return nil, err
	}

	user := userInfo(profile, claims.TenantSlug)
	tokens, err := s.jwtManager.GenerateTokenPair(tokenInfo(user, session.TenantID), session.ID)
	if err != nil {
		return nil, errors.Internal("failed to generate tokens")
	}

	if err := s.sessions.Rotate(ctx, session.ID, tokens.RefreshToken); err != nil {
		s.logger.Error().Err(err).Str("session_id", session.ID).Msg("failed to rotate session")
		return nil, errors.Internal("failed to rotate session")
	}
	return tokens, nil
}

// RevokeUserSessions ends every session of a user.
func (s *AuthService) RevokeUserSessions(ctx context.Context, userID string) error {
	return s.sessions.RevokeAllForUser(ctx, userID)
}

// CleanupSessions removes expired and revoked sessions.
func (s *AuthService) CleanupSessions(ctx context.Context) {
	n, err := s.sessions.CleanExpired(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("session cleanup failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int64("removed", n).Msg("cleaned up sessions")
	}
}

func userInfo(profile *userdomain.User, tenantSlug string) *UserInfo {
	return &UserInfo{
		ID:          profile.UID,
		Email:       profile.Email,
		Name:        profile.FullName,
		Role:        profile.Role,
		Permissions: profile.Permissions(),
		TenantSlug:  tenantSlug,
	}
}

func tokenInfo(user *UserInfo, tenantID string) *jwt.UserInfo {
	return &jwt.UserInfo{
		ID:         user.ID,
		Email:      user.Email,
		Name:       user.Name,
		Role:       user.Role,
		TenantID:   tenantID,
		TenantSlug: user.TenantSlug,
	}
}
