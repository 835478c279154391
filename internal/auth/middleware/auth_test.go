package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medistock/medistock-backend/internal/auth/identity"
	"github.com/medistock/medistock-backend/internal/auth/jwt"
	"github.com/medistock/medistock-backend/internal/auth/middleware"
	"github.com/medistock/medistock-backend/pkg/actor"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/httputil"
	"github.com/medistock/medistock-backend/pkg/logger"
	"github.com/medistock/medistock-backend/pkg/permissions"
	"github.com/medistock/medistock-backend/pkg/tenant"
	"github.com/medistock/medistock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
)

type stubVerifier struct {
	claims *jwt.Claims
	err    error
}

func (s stubVerifier) VerifyToken(ctx context.Context, token string) (*jwt.Claims, error) {
	return s.claims, s.err
}

var staffClaims = &jwt.Claims{
	UserID: "u1", Email: "staff@example.com", Name: "Sam Staff",
	Role: permissions.RoleStaff, TenantID: testutil.TestTenantID, TenantSlug: "station",
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		verifier   stubVerifier
		wantStatus int
		wantCode   string
	}{
		{"missing header", "", stubVerifier{claims: staffClaims}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "Basic abc", stubVerifier{claims: staffClaims}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"expired", "Bearer t", stubVerifier{err: &identity.Error{Code: identity.CodeTokenExpired}}, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"revoked", "Bearer t", stubVerifier{err: &identity.Error{Code: identity.CodeTokenRevoked}}, http.StatusUnauthorized, "TOKEN_REVOKED"},
		{"invalid", "Bearer t", stubVerifier{err: errors.TokenInvalid()}, http.StatusUnauthorized, "TOKEN_INVALID"},
		{"no tenant", "Bearer t", stubVerifier{claims: &jwt.Claims{UserID: "u1"}}, http.StatusUnauthorized, "TOKEN_INVALID"},
		{"valid", "Bearer t", stubVerifier{claims: staffClaims}, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen context.Context
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r.Context()
				w.WriteHeader(http.StatusOK)
			})
			h := middleware.NewAuthenticator(tt.verifier, logger.New("test", "test")).Authenticate(next)

			req := testutil.NewHTTPRequest(http.MethodGet, "/api/v1/items", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := testutil.ExecuteRequest(h, req)

			testutil.AssertStatus(t, rr, tt.wantStatus)
			if tt.wantCode != "" {
				var body httputil.Response
				testutil.ParseJSONBody(t, rr, &body)
				assert.Equal(t, tt.wantCode, body.Error.Code)
				return
			}

			assert.Equal(t, "u1", httputil.GetUserID(seen))
			assert.Equal(t, testutil.TestTenantID, tenant.MustTenantID(seen))
			assert.Equal(t, "Sam Staff", actor.FromContext(seen).DisplayName())
		})
	}
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		perm       string
		wantStatus int
	}{
		{"staff reads inventory", permissions.RoleStaff, permissions.InventoryRead, http.StatusOK},
		{"staff manages users", permissions.RoleStaff, permissions.UsersWrite, http.StatusForbidden},
		{"staff edits settings", permissions.RoleStaff, permissions.SettingsWrite, http.StatusForbidden},
		{"admin edits settings", permissions.RoleAdmin, permissions.SettingsWrite, http.StatusOK},
		{"unknown role", "Guest", permissions.InventoryRead, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := middleware.RequirePermission(tt.perm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(httputil.WithUserContext(req.Context(), "u1", "u@example.com", tt.role))
			rr := testutil.ExecuteRequest(h, req)

			testutil.AssertStatus(t, rr, tt.wantStatus)
		})
	}

	t.Run("unauthenticated", func(t *testing.T) {
		h := middleware.RequirePermission(permissions.InventoryRead)(http.NotFoundHandler())
		rr := testutil.ExecuteRequest(h, httptest.NewRequest(http.MethodGet, "/", nil))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})
}
