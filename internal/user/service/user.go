package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/medistock/medistock-backend/internal/auth/identity"
	"github.com/medistock/medistock-backend/internal/user/domain"
	"github.com/medistock/medistock-backend/internal/user/events"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/httputil"
	"github.com/medistock/medistock-backend/pkg/i18n"
	"github.com/medistock/medistock-backend/pkg/logger"
	"github.com/medistock/medistock-backend/pkg/tenant"
)

// ProfileStore is satisfied by *repository.UserRepository.
type ProfileStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, uid string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	AdminEmails(ctx context.Context) ([]string, error)
	UpdateRole(ctx context.Context, uid, role string) (string, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, uid string) error
	CountAdmins(ctx context.Context) (int, error)
}

// SessionRevoker ends every refresh session of a user.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) error
}

// UserService handles user business logic
type UserService struct {
	profiles  ProfileStore
	provider  identity.Provider
	sessions  SessionRevoker
	publisher *events.UserEventPublisher
	logger    *logger.Logger
}

// NewUserService creates a new user service. sessions and publisher may be nil.
func NewUserService(
	profiles ProfileStore,
	provider identity.Provider,
	sessions SessionRevoker,
	publisher *events.UserEventPublisher,
	log *logger.Logger,
) *UserService {
	return &UserService{
		profiles:  profiles,
		provider:  provider,
		sessions:  sessions,
		publisher: publisher,
		logger:    log,
	}
}

// CreateUserRequest represents a create user request
type CreateUserRequest struct {
	FullName string  `json:"full_name" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Phone    *string `json:"phone,omitempty"`
	Role     string  `json:"role" validate:"required,oneof=Admin Staff"`
}

// UpdateProfileRequest represents a profile update
type UpdateProfileRequest struct {
	FullName string  `json:"full_name" validate:"required"`
	Phone    *string `json:"phone,omitempty"`
}

// UpdateRoleRequest represents a role change
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=Admin Staff"`
}

// CreateResult is returned after a user was provisioned.
type CreateResult struct {
	Message string       `json:"message"`
	User    *domain.User `json:"user"`
}

func (r *CreateUserRequest) normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Phone != nil && strings.TrimSpace(*r.Phone) == "" {
		r.Phone = nil
	}
}

// Create provisions a login identity and the matching profile in the tenant
// in context. A failed profile insert removes the identity again.
func (s *UserService) Create(ctx context.Context, req *CreateUserRequest) (*CreateResult, error) {
	req.normalize()
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	uid, err := s.provider.CreateIdentity(ctx, identity.NewIdentity{
		TenantID:    tenantID,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.FullName,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("email", req.Email).Msg("identity provisioning failed")
		return nil, identity.ToAppError(err)
	}

	user := &domain.User{
		UID:      uid,
		Email:    req.Email,
		Role:     req.Role,
		Phone:    req.Phone,
		FullName: req.FullName,
	}
	if err := s.profiles.Create(ctx, user); err != nil {
		if delErr := s.provider.DeleteIdentity(ctx, uid); delErr != nil {
			s.logger.Error().Err(delErr).Str("user_id", uid).Msg("failed to roll back identity")
		}
		return nil, err
	}

	s.logger.Info().Str("user_id", uid).Str("role", user.Role).Msg("user created")
	s.publisher.PublishUserCreated(ctx, user)

	return &CreateResult{
		Message: i18n.TFromContext(ctx, "errors.user.created", map[string]string{"email": user.Email}),
		User:    user,
	}, nil
}

// Get returns one profile
func (s *UserService) Get(ctx context.Context, uid string) (*domain.User, error) {
	return s.profiles.GetByID(ctx, uid)
}

// List returns every profile of the tenant
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.profiles.List(ctx)
}

// AdminEmails returns one entry per admin profile. It feeds the expiration
// notifier.
func (s *UserService) AdminEmails(ctx context.Context) ([]string, error) {
	return s.profiles.AdminEmails(ctx)
}

// UpdateProfile changes name and phone of a profile and keeps the identity's
// display name in step.
func (s *UserService) UpdateProfile(ctx context.Context, uid string, req *UpdateProfileRequest) (*domain.User, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.profiles.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	user.FullName = req.FullName
	user.Phone = req.Phone
	if user.Phone != nil && strings.TrimSpace(*user.Phone) == "" {
		user.Phone = nil
	}

	if err := s.profiles.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	if err := s.provider.UpdateDisplayName(ctx, uid, user.FullName); err != nil {
		return nil, identity.ToAppError(err)
	}
	return user, nil
}

// UpdateRole changes the role of a user. Existing tokens and sessions are
// revoked so the new permissions apply on the next login. The last admin
// cannot be demoted.
func (s *UserService) UpdateRole(ctx context.Context, uid string, req *UpdateRoleRequest) (*domain.User, error) {
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.profiles.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if user.Role == req.Role {
		return user, nil
	}
	if user.IsAdmin() {
		if err := s.requireOtherAdmin(ctx); err != nil {
			return nil, err
		}
	}

	oldRole, err := s.profiles.UpdateRole(ctx, uid, req.Role)
	if err != nil {
		return nil, err
	}
	user.Role = req.Role

	s.revokeAccess(ctx, uid)
	s.publisher.PublishUserRoleChanged(ctx, user.TenantID, uid, oldRole, req.Role)
	return user, nil
}

// Delete removes the profile and the login identity of a user.
func (s *UserService) Delete(ctx context.Context, uid string) error {
	user, err := s.profiles.GetByID(ctx, uid)
	if err != nil {
		return err
	}
	if user.IsAdmin() {
		if err := s.requireOtherAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.profiles.Delete(ctx, uid); err != nil {
		return err
	}
	s.revokeAccess(ctx, uid)
	if err := s.provider.DeleteIdentity(ctx, uid); err != nil {
		return identity.ToAppError(err)
	}

	s.publisher.PublishUserDeleted(ctx, user)
	return nil
}

func (s *UserService) requireOtherAdmin(ctx context.Context) error {
	n, err := s.profiles.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if n <= 1 {
		return errors.NewWithKey("LAST_ADMIN", "errors.user.last_admin", http.StatusConflict)
	}
	return nil
}

func (s *UserService) revokeAccess(ctx context.Context, uid string) {
	if err := s.provider.RevokeTokens(ctx, uid); err != nil {
		s.logger.Error().Err(err).Str("user_id", uid).Msg("failed to revoke tokens")
	}
	if s.sessions == nil {
		return
	}
	if err := s.sessions.RevokeAllForUser(ctx, uid); err != nil {
		s.logger.Error().Err(err).Str("user_id", uid).Msg("failed to revoke sessions")
	}
}

