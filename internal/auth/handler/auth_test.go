package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/medistock/medistock-backend/internal/auth/jwt"
	"github.com/medistock/medistock-backend/internal/auth/service"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/logger"
	"github.com/medistock/medistock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
)

type stubAuth struct {
	loginErr      error
	loggedOut     []string
	refreshCalled bool
}

func (s *stubAuth) Login(_ context.Context, req *service.LoginRequest, _, _ string) (*service.LoginResponse, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &service.LoginResponse{
		AccessToken: "access",
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(time.Minute),
		User:        &service.UserInfo{ID: "u1", Email: req.Email, Role: "Staff"},
	}, nil
}

func (s *stubAuth) Logout(_ context.Context, token string) error {
	s.loggedOut = append(s.loggedOut, token)
	return nil
}

func (s *stubAuth) Refresh(context.Context, string) (*jwt.TokenPair, error) {
	s.refreshCalled = true
	return &jwt.TokenPair{AccessToken: "new", TokenType: "Bearer"}, nil
}

func newTestHandler(svc *stubAuth) *AuthHandler {
	return NewAuthHandler(svc, logger.New("auth-handler-test", "test"))
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		loginErr   error
		wantStatus int
		wantBody   string
	}{
		{"ok", map[string]string{"email": "sam@example.com", "password": "secret1"}, nil, http.StatusOK, `"access_token":"access"`},
		{"missing password", map[string]string{"email": "sam@example.com"}, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad credentials", map[string]string{"email": "sam@example.com", "password": "nope"}, errors.InvalidCredentials(), http.StatusUnauthorized, "Invalid email or password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&stubAuth{loginErr: tt.loginErr})

			rr := testutil.ExecuteRequest(http.HandlerFunc(h.Login), testutil.NewHTTPRequest(http.MethodPost, "/api/v1/auth/login", tt.body))

			testutil.AssertStatus(t, rr, tt.wantStatus)
			testutil.AssertBodyContains(t, rr, tt.wantBody)
		})
	}
}

func TestLogout_FallsBackToBearer(t *testing.T) {
	svc := &stubAuth{}
	h := newTestHandler(svc)
	req := testutil.WithBearer(testutil.NewHTTPRequest(http.MethodPost, "/api/v1/auth/logout", nil), "refresh-123")

	rr := testutil.ExecuteRequest(http.HandlerFunc(h.Logout), req)

	testutil.AssertStatus(t, rr, http.StatusNoContent)
	assert.Equal(t, []string{"refresh-123"}, svc.loggedOut)
}

func TestRefresh_RequiresToken(t *testing.T) {
	svc := &stubAuth{}
	h := newTestHandler(svc)

	rr := testutil.ExecuteRequest(http.HandlerFunc(h.Refresh), testutil.NewHTTPRequest(http.MethodPost, "/api/v1/auth/refresh", map[string]string{}))

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	assert.False(t, svc.refreshCalled)
}
