// Package middleware authenticates API requests and enforces role permissions.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/medistock/medistock-backend/internal/auth/identity"
	"github.com/medistock/medistock-backend/internal/auth/jwt"
	"github.com/medistock/medistock-backend/pkg/actor"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/httputil"
	"github.com/medistock/medistock-backend/pkg/logger"
	"github.com/medistock/medistock-backend/pkg/permissions"
	"github.com/medistock/medistock-backend/pkg/tenant"
)

// TokenVerifier is satisfied by identity.Provider.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*jwt.Claims, error)
}

// Authenticator turns a bearer token into user, tenant and actor context.
type Authenticator struct {
	verifier TokenVerifier
	logger   *logger.Logger
}

// NewAuthenticator creates the authentication middleware
func NewAuthenticator(verifier TokenVerifier, log *logger.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, logger: log}
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// Authenticate validates the bearer token of every request
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			httputil.ErrorLocalized(w, r, errors.Unauthorized("missing authorization header"))
			return
		}

		claims, err := a.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			a.logger.Debug().Err(err).Msg("token verification failed")
			httputil.ErrorLocalized(w, r, identity.ToAppError(err))
			return
		}
		if claims.TenantID == "" {
			httputil.ErrorLocalized(w, r, errors.TokenInvalid())
			return
		}

		ctx := httputil.WithUserContext(r.Context(), claims.UserID, claims.Email, claims.Role)
		ctx = tenant.WithTenantContext(ctx, claims.TenantID, claims.TenantSlug)
		ctx = actor.WithActor(ctx, &actor.Actor{
			ID:       claims.UserID,
			Name:     claims.Name,
			Email:    claims.Email,
			TenantID: claims.TenantID,
			Role:     claims.Role,
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission rejects requests whose role lacks perm. It must run
// after Authenticate.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if httputil.GetUserID(r.Context()) == "" {
				httputil.ErrorLocalized(w, r, errors.Unauthorized("not authenticated"))
				return
			}
			if !permissions.RoleHas(httputil.GetUserRole(r.Context()), perm) {
				httputil.ErrorLocalized(w, r, errors.Forbidden("missing permission "+perm))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
