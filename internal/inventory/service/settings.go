package service

import (
	"context"
	"strings"
	"time"

	"github.com/medistock/medistock-backend/internal/inventory/events"
	"github.com/medistock/medistock-backend/internal/inventory/mailer"
	"github.com/medistock/medistock-backend/internal/inventory/repository"
	"github.com/medistock/medistock-backend/pkg/cache"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/logger"
	"github.com/medistock/medistock-backend/pkg/tenant"
)

const maxTemplateLength = 100_000

// SettingsService serves the tenant's e-mail template through a read-through cache
type SettingsService struct {
	settingsRepo *repository.SettingsRepository
	cache        cache.Cache
	ttl          time.Duration
	publisher    *events.InventoryEventPublisher
	logger       *logger.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(
	settingsRepo *repository.SettingsRepository,
	c cache.Cache,
	ttl time.Duration,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *SettingsService {
	return &SettingsService{
		settingsRepo: settingsRepo,
		cache:        c,
		ttl:          ttl,
		publisher:    publisher,
		logger:       log,
	}
}

// EmailSettingsView is what the settings screen shows.
type EmailSettingsView struct {
	Template       string `json:"template"`
	IsDefault      bool   `json:"is_default"`
	Placeholder    string `json:"placeholder"`
	HasPlaceholder bool   `json:"has_placeholder"`
}

// EmailSettingsInput replaces the stored template. An empty template
// restores the built-in default.
type EmailSettingsInput struct {
	Template string `json:"template"`
}

func emailTemplateKey(tenantID string) string {
	return "settings:email:" + tenantID
}

// EmailTemplate returns the stored template of the tenant in context, or ""
// when none is stored.
func (s *SettingsService) EmailTemplate(ctx context.Context) (string, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return "", err
	}

	raw, err := cache.GetOrSet(ctx, s.cache, emailTemplateKey(tenantID), s.ttl, func(ctx context.Context) ([]byte, error) {
		tmpl, err := s.settingsRepo.GetEmailTemplate(ctx)
		return []byte(tmpl), err
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// EmailSettings returns the effective template.
func (s *SettingsService) EmailSettings(ctx context.Context) (*EmailSettingsView, error) {
	stored, err := s.EmailTemplate(ctx)
	if err != nil {
		return nil, err
	}
	return newEmailSettingsView(stored), nil
}

// UpdateEmailTemplate stores the template and drops every cached copy.
func (s *SettingsService) UpdateEmailTemplate(ctx context.Context, in EmailSettingsInput) (*EmailSettingsView, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}
	if len(in.Template) > maxTemplateLength {
		return nil, errors.Validation(map[string]string{"template": "Template is too long"})
	}

	template := in.Template
	if strings.TrimSpace(template) == "" {
		template = ""
	}
	if err := s.settingsRepo.SetEmailTemplate(ctx, template); err != nil {
		return nil, err
	}

	s.Invalidate(ctx, tenantID)
	s.publisher.PublishSettingsChanged(ctx, tenantID)

	s.logger.Info().Str("tenant_id", tenantID).Bool("default", template == "").Msg("email template updated")
	return newEmailSettingsView(template), nil
}

// Invalidate drops the cached template of a tenant. It is also called when
// another instance reports a settings change.
func (s *SettingsService) Invalidate(ctx context.Context, tenantID string) {
	if err := s.cache.Delete(ctx, emailTemplateKey(tenantID)); err != nil {
		s.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("failed to invalidate cached email template")
	}
}

func newEmailSettingsView(stored string) *EmailSettingsView {
	view := &EmailSettingsView{Template: stored, Placeholder: mailer.Placeholder}
	if strings.TrimSpace(stored) == "" {
		view.Template = mailer.DefaultTemplate
		view.IsDefault = true
	}
	view.HasPlaceholder = strings.Contains(view.Template, mailer.Placeholder)
	return view
}
