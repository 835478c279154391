package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/internal/inventory/events"
	"github.com/medistock/medistock-backend/internal/inventory/mailer"
	"github.com/medistock/medistock-backend/pkg/database"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/i18n"
	"github.com/medistock/medistock-backend/pkg/logger"
	"github.com/medistock/medistock-backend/pkg/messaging"
	"github.com/medistock/medistock-backend/pkg/tenant"
)

// AdminDirectory returns one entry per admin profile of the tenant in
// context. Admins without an address yield an empty string.
type AdminDirectory interface {
	AdminEmails(ctx context.Context) ([]string, error)
}

// ItemSource loads every item of the tenant in context.
type ItemSource interface {
	ListAll(ctx context.Context) ([]domain.Item, error)
}

// TemplateSource returns the stored e-mail template, or "" for the default.
type TemplateSource interface {
	EmailTemplate(ctx context.Context) (string, error)
}

// NotifyOutcome is how a notifier run ended for one tenant.
type NotifyOutcome string

const (
	OutcomeSent            NotifyOutcome = "sent"
	OutcomeNoAdmins        NotifyOutcome = "no_admins"
	OutcomeNoAdminEmails   NotifyOutcome = "no_admin_emails"
	OutcomeNoExpiringItems NotifyOutcome = "no_expiring_items"
	OutcomeFailed          NotifyOutcome = "failed"
)

// NotifyResult reports one tenant's run.
type NotifyResult struct {
	TenantID   string        `json:"tenant_id"`
	Outcome    NotifyOutcome `json:"outcome"`
	Message    string        `json:"message"`
	Batches    int           `json:"batches"`
	Recipients int           `json:"recipients"`
	Error      string        `json:"error,omitempty"`
}

// Notifier e-mails the admins of a tenant about batches expiring within the
// horizon.
type Notifier struct {
	admins    AdminDirectory
	items     ItemSource
	templates TemplateSource
	sender    mailer.Sender
	publisher *events.InventoryEventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewNotifier creates a new notifier. publisher may be nil.
func NewNotifier(
	admins AdminDirectory,
	items ItemSource,
	templates TemplateSource,
	sender mailer.Sender,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *Notifier {
	return &Notifier{
		admins:    admins,
		items:     items,
		templates: templates,
		sender:    sender,
		publisher: publisher,
		logger:    log.WithComponent("expiry-notifier"),
		now:       time.Now,
	}
}

// Run checks the tenant in context. Having nobody to notify or nothing to
// report is a successful no-op. Missing SMTP settings and delivery failures
// are returned as errors.
func (n *Notifier) Run(ctx context.Context) (*NotifyResult, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}
	result := &NotifyResult{TenantID: tenantID}

	entries, err := n.admins.AdminEmails(ctx)
	if err != nil {
		return nil, fmt.Errorf("load admins: %w", err)
	}
	if len(entries) == 0 {
		return n.finish(ctx, result, OutcomeNoAdmins), nil
	}

	recipients := make([]string, 0, len(entries))
	for _, e := range entries {
		if e = strings.TrimSpace(e); e != "" {
			recipients = append(recipients, e)
		}
	}
	if len(recipients) == 0 {
		return n.finish(ctx, result, OutcomeNoAdminEmails), nil
	}
	result.Recipients = len(recipients)

	items, err := n.items.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	batches := domain.ExpiringBatches(items, n.now())
	if len(batches) == 0 {
		return n.finish(ctx, result, OutcomeNoExpiringItems), nil
	}
	result.Batches = len(batches)

	template, err := n.templates.EmailTemplate(ctx)
	if err != nil {
		return nil, fmt.Errorf("load email template: %w", err)
	}

	msg := mailer.Message{
		To:      recipients,
		Subject: i18n.T("notifier.subject"),
		HTML:    mailer.Render(template, batches),
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		if stderrors.Is(err, mailer.ErrNotConfigured) {
			appErr := errors.NewWithKey("SMTP_NOT_CONFIGURED", "errors.notifier.smtp_missing", http.StatusInternalServerError)
			appErr.Err = err
			return nil, appErr
		}
		n.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to send expiration email")
		return nil, errors.Wrap(err, "EMAIL_SEND_FAILED", "Failed to send email via SMTP.", http.StatusInternalServerError)
	}

	n.logger.Info().
		Str("tenant_id", tenantID).
		Int("recipients", len(recipients)).
		Int("batches", len(batches)).
		Msg("expiration alert sent")

	return n.finish(ctx, result, OutcomeSent), nil
}

func (n *Notifier) finish(ctx context.Context, result *NotifyResult, outcome NotifyOutcome) *NotifyResult {
	result.Outcome = outcome
	result.Message = i18n.T("notifier." + string(outcome))

	if outcome != OutcomeSent {
		n.logger.Info().Str("tenant_id", result.TenantID).Str("outcome", string(outcome)).Msg(result.Message)
	}
	n.publisher.PublishExpiryNotified(ctx, messaging.ExpiryNotifiedEvent{
		TenantID:   result.TenantID,
		Outcome:    string(outcome),
		Batches:    result.Batches,
		Recipients: result.Recipients,
	})
	return result
}

// ExpiryJob runs the notifier for every active tenant.
type ExpiryJob struct {
	notifier    *Notifier
	listTenants func(ctx context.Context) ([]string, error)
	logger      *logger.Logger
}

// NewExpiryJob creates a job over the active tenants in public.tenants
func NewExpiryJob(notifier *Notifier, db *database.DB, log *logger.Logger) *ExpiryJob {
	return &ExpiryJob{
		notifier:    notifier,
		listTenants: activeTenantLister(db),
		logger:      log,
	}
}

// RunAll runs every tenant even when some fail. Failed tenants appear in
// the results with OutcomeFailed and their errors are joined.
func (j *ExpiryJob) RunAll(ctx context.Context) ([]NotifyResult, error) {
	start := time.Now()

	tenantIDs, err := j.listTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}

	results := make([]NotifyResult, 0, len(tenantIDs))
	var errs []error
	for _, tenantID := range tenantIDs {
		tenantCtx := tenant.WithTenantID(ctx, tenantID)

		result, err := j.notifier.Run(tenantCtx)
		if err != nil {
			j.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("expiration check failed for tenant")
			errs = append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
			results = append(results, NotifyResult{TenantID: tenantID, Outcome: OutcomeFailed, Error: err.Error()})
			continue
		}
		results = append(results, *result)
	}

	j.logger.Info().
		Dur("duration", time.Since(start)).
		Int("tenant_count", len(tenantIDs)).
		Int("failed", len(errs)).
		Msg("expiration check cycle completed")

	return results, stderrors.Join(errs...)
}

// activeTenantLister queries public.tenants, which has no RLS, so no tenant
// context is needed.
func activeTenantLister(db *database.DB) func(ctx context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		var tenantIDs []string
		query := `SELECT id FROM public.tenants WHERE is_active = TRUE ORDER BY created_at, id`
		if err := db.DB.SelectContext(ctx, &tenantIDs, query); err != nil {
			return nil, err
		}
		return tenantIDs, nil
	}
}
