package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/medistock/medistock-backend/pkg/database"
)

// Session represents a refresh session of a user
type Session struct {
	ID               string     `db:"id"`
	UserID           string     `db:"user_id"`
	TenantID         string     `db:"tenant_id"`
	RefreshTokenHash string     `db:"refresh_token_hash"`
	UserAgent        *string    `db:"user_agent"`
	IPAddress        *string    `db:"ip_address"`
	ExpiresAt        time.Time  `db:"expires_at"`
	CreatedAt        time.Time  `db:"created_at"`
	LastUsedAt       time.Time  `db:"last_used_at"`
	RevokedAt        *time.Time `db:"revoked_at"`
}

// SessionRepository handles session persistence
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateWithID creates a new session with a specific ID
func (r *SessionRepository) CreateWithID(ctx context.Context, id, userID, tenantID, refreshToken string, expiresAt time.Time, userAgent, ipAddress string) (*Session, error) {
	now := time.Now()
	session := &Session{
		ID:               id,
		UserID:           userID,
		TenantID:         tenantID,
		RefreshTokenHash: hashToken(refreshToken),
		UserAgent:        &userAgent,
		IPAddress:        &ipAddress,
		ExpiresAt:        expiresAt,
		CreatedAt:        now,
		LastUsedAt:       now,
	}

	query := `
		INSERT INTO public.sessions (id, user_id, tenant_id, refresh_token_hash, user_agent, ip_address, expires_at, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.TenantID,
		session.RefreshTokenHash,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
		session.CreatedAt,
		session.LastUsedAt,
	)
	if err != nil {
		return nil, err
	}

	return session, nil
}

// GetByRefreshToken gets an active session by refresh token
func (r *SessionRepository) GetByRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	var session Session
	query := `
		SELECT id, user_id, tenant_id, refresh_token_hash, user_agent, ip_address, expires_at, created_at, last_used_at, revoked_at
		FROM public.sessions
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`

	if err := r.db.GetContext(ctx, &session, query, hashToken(refreshToken)); err != nil {
		return nil, err
	}

	return &session, nil
}

// Rotate replaces the refresh token of a session (used during token refresh)
func (r *SessionRepository) Rotate(ctx context.Context, id string, newRefreshToken string) error {
	query := `UPDATE public.sessions SET refresh_token_hash = $1, last_used_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, hashToken(newRefreshToken), id)
	return err
}

// RevokeByRefreshToken revokes a session by refresh token
func (r *SessionRepository) RevokeByRefreshToken(ctx context.Context, refreshToken string) error {
	query := `UPDATE public.sessions SET revoked_at = NOW() WHERE refresh_token_hash = $1`
	_, err := r.db.ExecContext(ctx, query, hashToken(refreshToken))
	return err
}

// RevokeAllForUser revokes all sessions for a user
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	query := `UPDATE public.sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

// CleanExpired removes expired and revoked sessions
func (r *SessionRepository) CleanExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM public.sessions WHERE expires_at < NOW() OR revoked_at IS NOT NULL`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
