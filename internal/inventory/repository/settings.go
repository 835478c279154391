package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/pkg/actor"
	"github.com/medistock/medistock-backend/pkg/database"
	"github.com/medistock/medistock-backend/pkg/tenant"
)

const emailSettingsKey = "email"

// SettingsRepository stores per-tenant settings documents as JSONB.
type SettingsRepository struct {
	db *database.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetEmailSettings returns the stored e-mail settings. An unset template
// yields a zero value, not an error.
func (r *SettingsRepository) GetEmailSettings(ctx context.Context) (domain.EmailSettings, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return domain.EmailSettings{}, err
	}

	var row struct {
		Value     []byte    `db:"value"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	err = r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &row,
			`SELECT value, updated_at FROM settings WHERE tenant_id = $1 AND key = $2`, tenantID, emailSettingsKey)
	})
	if err == sql.ErrNoRows {
		return domain.EmailSettings{}, nil
	}
	if err != nil {
		return domain.EmailSettings{}, err
	}

	var settings domain.EmailSettings
	if err := json.Unmarshal(row.Value, &settings); err != nil {
		return domain.EmailSettings{}, err
	}
	settings.UpdatedAt = row.UpdatedAt
	return settings, nil
}

// GetEmailTemplate returns the stored template or "" if none is set.
func (r *SettingsRepository) GetEmailTemplate(ctx context.Context) (string, error) {
	settings, err := r.GetEmailSettings(ctx)
	if err != nil {
		return "", err
	}
	return settings.Template, nil
}

// SetEmailTemplate upserts the e-mail settings row.
func (r *SettingsRepository) SetEmailTemplate(ctx context.Context, template string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	value, err := json.Marshal(domain.EmailSettings{Template: template})
	if err != nil {
		return err
	}
	a := actor.FromContextOrSystem(ctx)

	return r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (tenant_id, key, value, updated_at, updated_by_id, updated_by_name)
			VALUES ($1, $2, $3, NOW(), $4, $5)
			ON CONFLICT (tenant_id, key) DO UPDATE SET
				value = EXCLUDED.value,
				updated_at = EXCLUDED.updated_at,
				updated_by_id = EXCLUDED.updated_by_id,
				updated_by_name = EXCLUDED.updated_by_name
		`, tenantID, emailSettingsKey, value, a.ID, a.DisplayName())
		return err
	})
}
