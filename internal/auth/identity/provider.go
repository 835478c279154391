// Package identity provisions and verifies login identities. Failures carry
// a provider code which ToAppError maps to the messages shown to callers.
package identity

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/medistock/medistock-backend/internal/auth/jwt"
	"github.com/medistock/medistock-backend/internal/auth/repository"
	"github.com/medistock/medistock-backend/pkg/errors"
)

// Provider error codes.
const (
	CodeEmailExists     = "email-already-exists"
	CodeInvalidEmail    = "invalid-email"
	CodeInvalidPassword = "invalid-password"
	CodeTokenExpired    = "id-token-expired"
	CodeTokenRevoked    = "id-token-revoked"
	CodeInternal        = "internal-error"
)

// Error is a provider failure identified by Code.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity: %s: %v", e.Code, e.Err)
	}
	return "identity: " + e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func providerError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

// Code returns the provider code of err, or "" if err is not a provider error.
func Code(err error) string {
	var pe *Error
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// NewIdentity is the data needed to provision a login.
type NewIdentity struct {
	TenantID    string
	Email       string
	Password    string
	DisplayName string
}

// Provider manages login identities.
type Provider interface {
	CreateIdentity(ctx context.Context, in NewIdentity) (uid string, err error)
	Authenticate(ctx context.Context, email, password string) (*repository.Identity, error)
	VerifyToken(ctx context.Context, token string) (*jwt.Claims, error)
	UpdateDisplayName(ctx context.Context, uid, name string) error
	RevokeTokens(ctx context.Context, uid string) error
	DeleteIdentity(ctx context.Context, uid string) error
}

// ToAppError maps a provider error to the response shown to the caller.
// Errors without a provider code are returned unchanged.
func ToAppError(err error) error {
	switch Code(err) {
	case CodeEmailExists:
		return errors.NewWithKey("EMAIL_EXISTS", "errors.user.email_exists", http.StatusConflict)
	case CodeInvalidEmail:
		return errors.NewWithKey("INVALID_EMAIL", "errors.user.invalid_email", http.StatusBadRequest)
	case CodeInvalidPassword:
		return errors.NewWithKey("INVALID_PASSWORD", "errors.user.invalid_password", http.StatusBadRequest)
	case CodeTokenExpired:
		return errors.TokenExpired()
	case CodeTokenRevoked:
		return errors.TokenRevoked()
	case CodeInternal:
		appErr := errors.NewWithKey("IDENTITY_PROVIDER_ERROR", "errors.user.provider_internal", http.StatusInternalServerError)
		appErr.Err = err
		return appErr
	default:
		return err
	}
}
