package identity

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/medistock/medistock-backend/internal/auth/jwt"
	"github.com/medistock/medistock-backend/internal/auth/repository"
	"github.com/medistock/medistock-backend/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password the provider accepts.
const MinPasswordLength = 6

// IdentityStore is satisfied by *repository.IdentityRepository.
type IdentityStore interface {
	Create(ctx context.Context, identity *repository.Identity) error
	GetByEmail(ctx context.Context, email string) (*repository.Identity, error)
	GetByID(ctx context.Context, uid string) (*repository.Identity, error)
	UpdateDisplayName(ctx context.Context, uid, name string) error
	RevokeTokens(ctx context.Context, uid string) error
	Delete(ctx context.Context, uid string) error
}

// LocalProvider keeps identities in PostgreSQL with bcrypt password hashes
// and verifies the access tokens issued by the JWT manager.
type LocalProvider struct {
	store    IdentityStore
	tokens   *jwt.Manager
	validate *validator.Validate
	cost     int
}

// NewLocalProvider creates a provider over store.
func NewLocalProvider(store IdentityStore, tokens *jwt.Manager) *LocalProvider {
	return &LocalProvider{
		store:    store,
		tokens:   tokens,
		validate: validator.New(),
		cost:     bcrypt.DefaultCost,
	}
}

// CreateIdentity provisions a login and returns its uid.
func (p *LocalProvider) CreateIdentity(ctx context.Context, in NewIdentity) (string, error) {
	email := strings.TrimSpace(in.Email)
	if err := p.validate.Var(email, "required,email"); err != nil {
		return "", providerError(CodeInvalidEmail, nil)
	}
	if len(in.Password) < MinPasswordLength {
		return "", providerError(CodeInvalidPassword, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), p.cost)
	if err != nil {
		return "", providerError(CodeInternal, err)
	}

	identity := &repository.Identity{
		TenantID:     in.TenantID,
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		DisplayName:  in.DisplayName,
	}
	if err := p.store.Create(ctx, identity); err != nil {
		if errors.Is(err, errors.ErrConflict) {
			return "", providerError(CodeEmailExists, err)
		}
		return "", providerError(CodeInternal, err)
	}
	return identity.UID, nil
}

// Authenticate checks an email and password pair.
func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (*repository.Identity, error) {
	identity, err := p.store.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.InvalidCredentials()
		}
		return nil, providerError(CodeInternal, err)
	}
	if identity.Disabled {
		return nil, errors.InvalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return nil, errors.InvalidCredentials()
	}
	return identity, nil
}

// VerifyToken validates an access token and checks that its identity still
// exists and has not revoked tokens issued before now.
func (p *LocalProvider) VerifyToken(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := p.tokens.ValidateAccessToken(token)
	if err != nil {
		if errors.Is(err, errors.ErrTokenExpired) {
			return nil, providerError(CodeTokenExpired, err)
		}
		return nil, err
	}

	identity, err := p.store.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, providerError(CodeTokenRevoked, nil)
		}
		return nil, providerError(CodeInternal, err)
	}
	if identity.Disabled || identity.TenantID != claims.TenantID {
		return nil, providerError(CodeTokenRevoked, nil)
	}
	// IssuedAt has second precision.
	if claims.IssuedAt != nil && claims.IssuedAt.Time.Before(identity.TokensValidAfter.Truncate(time.Second)) {
		return nil, providerError(CodeTokenRevoked, nil)
	}
	return claims, nil
}

// UpdateDisplayName renames an identity.
func (p *LocalProvider) UpdateDisplayName(ctx context.Context, uid, name string) error {
	if err := p.store.UpdateDisplayName(ctx, uid, name); err != nil {
		return providerError(CodeInternal, err)
	}
	return nil
}

// RevokeTokens invalidates every access token issued so far for uid.
func (p *LocalProvider) RevokeTokens(ctx context.Context, uid string) error {
	if err := p.store.RevokeTokens(ctx, uid); err != nil {
		return providerError(CodeInternal, err)
	}
	return nil
}

// DeleteIdentity removes a login. Its sessions go with it.
func (p *LocalProvider) DeleteIdentity(ctx context.Context, uid string) error {
	if err := p.store.Delete(ctx, uid); err != nil {
		return providerError(CodeInternal, err)
	}
	return nil
}
