package identity_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medistock/medistock-backend/internal/auth/identity"
	"github.com/medistock/medistock-backend/internal/auth/jwt"
	"github.com/medistock/medistock-backend/internal/auth/repository"
	"github.com/medistock/medistock-backend/pkg/config"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenantID = "11111111-1111-1111-1111-111111111111"

type memoryStore struct {
	mu    sync.Mutex
	byID  map[string]*repository.Identity
	fails error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byID: map[string]*repository.Identity{}}
}

func (s *memoryStore) Create(ctx context.Context, in *repository.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails != nil {
		return s.fails
	}
	for _, existing := range s.byID {
		if existing.Email == in.Email {
			return errors.Conflict("this email is already in use by another account")
		}
	}
	in.UID = uuid.NewString()
	in.CreatedAt = time.Now()
	cp := *in
	s.byID[in.UID] = &cp
	return nil
}

func (s *memoryStore) GetByEmail(ctx context.Context, email string) (*repository.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.byID {
		if strings.EqualFold(i.Email, email) {
			cp := *i
			return &cp, nil
		}
	}
	return nil, errors.NotFoundWithKey("user")
}

func (s *memoryStore) GetByID(ctx context.Context, uid string) (*repository.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.byID[uid]; ok {
		cp := *i
		return &cp, nil
	}
	return nil, errors.NotFoundWithKey("user")
}

func (s *memoryStore) UpdateDisplayName(ctx context.Context, uid, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.byID[uid]; ok {
		i.DisplayName = name
	}
	return nil
}

func (s *memoryStore) RevokeTokens(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.byID[uid]; ok {
		i.TokensValidAfter = time.Now().Add(time.Hour)
	}
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, uid)
	return nil
}

func newProvider(store *memoryStore, accessExpiry time.Duration) (*identity.LocalProvider, *jwt.Manager) {
	manager := jwt.NewManager(&config.JWTConfig{
		Secret:        "test-secret",
		AccessExpiry:  accessExpiry,
		RefreshExpiry: time.Hour,
		Issuer:        "medistock-test",
	})
	return identity.NewLocalProvider(store, manager), manager
}

func issue(t *testing.T, m *jwt.Manager, uid string) string {
	t.Helper()
	pair, err := m.GenerateTokenPair(&jwt.UserInfo{ID: uid, Email: "a@example.com", Role: "Admin", TenantID: tenantID}, "s1")
	require.NoError(t, err)
	return pair.AccessToken
}

func TestCreateIdentity_Codes(t *testing.T) {
	tests := []struct {
		name     string
		in       identity.NewIdentity
		wantCode string
	}{
		{"malformed email", identity.NewIdentity{Email: "not-an-email", Password: "secret1"}, identity.CodeInvalidEmail},
		{"empty email", identity.NewIdentity{Email: " ", Password: "secret1"}, identity.CodeInvalidEmail},
		{"short password", identity.NewIdentity{Email: "a@example.com", Password: "12345"}, identity.CodeInvalidPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newProvider(newMemoryStore(), time.Minute)
			_, err := p.CreateIdentity(context.Background(), tt.in)
			assert.Equal(t, tt.wantCode, identity.Code(err))
		})
	}
}

func TestCreateIdentity_DuplicateEmail(t *testing.T) {
	p, _ := newProvider(newMemoryStore(), time.Minute)
	ctx := context.Background()

	_, err := p.CreateIdentity(ctx, identity.NewIdentity{TenantID: tenantID, Email: "Admin@Example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = p.CreateIdentity(ctx, identity.NewIdentity{TenantID: tenantID, Email: "admin@example.com", Password: "secret2"})
	assert.Equal(t, identity.CodeEmailExists, identity.Code(err))
}

func TestCreateIdentity_StoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.fails = assert.AnError
	p, _ := newProvider(store, time.Minute)

	_, err := p.CreateIdentity(context.Background(), identity.NewIdentity{Email: "a@example.com", Password: "secret1"})
	assert.Equal(t, identity.CodeInternal, identity.Code(err))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAuthenticate(t *testing.T) {
	p, _ := newProvider(newMemoryStore(), time.Minute)
	ctx := context.Background()

	uid, err := p.CreateIdentity(ctx, identity.NewIdentity{TenantID: tenantID, Email: "staff@example.com", Password: "secret1", DisplayName: "Sam"})
	require.NoError(t, err)

	got, err := p.Authenticate(ctx, " STAFF@example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, uid, got.UID)

	_, err = p.Authenticate(ctx, "staff@example.com", "wrong")
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))

	_, err = p.Authenticate(ctx, "nobody@example.com", "secret1")
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))
}

func TestVerifyToken(t *testing.T) {
	store := newMemoryStore()
	p, manager := newProvider(store, time.Minute)
	ctx := context.Background()

	uid, err := p.CreateIdentity(ctx, identity.NewIdentity{TenantID: tenantID, Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		claims, err := p.VerifyToken(ctx, issue(t, manager, uid))
		require.NoError(t, err)
		assert.Equal(t, uid, claims.UserID)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := p.VerifyToken(ctx, "garbage")
		assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
	})

	t.Run("expired", func(t *testing.T) {
		expiring, m := newProvider(store, -time.Minute)
		_, err := expiring.VerifyToken(ctx, issue(t, m, uid))
		assert.Equal(t, identity.CodeTokenExpired, identity.Code(err))
	})

	t.Run("revoked", func(t *testing.T) {
		token := issue(t, manager, uid)
		require.NoError(t, p.RevokeTokens(ctx, uid))
		_, err := p.VerifyToken(ctx, token)
		assert.Equal(t, identity.CodeTokenRevoked, identity.Code(err))
	})

	t.Run("deleted identity", func(t *testing.T) {
		token := issue(t, manager, uid)
		require.NoError(t, p.DeleteIdentity(ctx, uid))
		_, err := p.VerifyToken(ctx, token)
		assert.Equal(t, identity.CodeTokenRevoked, identity.Code(err))
	})
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		code       string
		wantStatus int
		wantMsg    string
	}{
		{identity.CodeEmailExists, http.StatusConflict, "This email is already in use by another account."},
		{identity.CodeInvalidEmail, http.StatusBadRequest, "The email address provided is not valid."},
		{identity.CodeInvalidPassword, http.StatusBadRequest, "The password must be a string with at least six characters."},
		{identity.CodeTokenExpired, http.StatusUnauthorized, ""},
		{identity.CodeTokenRevoked, http.StatusUnauthorized, ""},
		{identity.CodeInternal, http.StatusInternalServerError, "An internal error occurred with the identity provider. Please check the server configuration."},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := identity.ToAppError(&identity.Error{Code: tt.code})

			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantStatus, appErr.StatusCode)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, appErr.Message)
			}
		})
	}

	assert.Equal(t, assert.AnError, identity.ToAppError(assert.AnError))
}
