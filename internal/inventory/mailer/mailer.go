// Package mailer renders the expiration alert and delivers it over SMTP.
package mailer

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/pkg/config"
	"github.com/wneessen/go-mail"
)

// Placeholder is replaced with the rendered list of expiring batches.
const Placeholder = "{{{itemsListHtml}}}"

// DefaultTemplate is used when a tenant has not stored its own.
const DefaultTemplate = `<h1>MediStock Expiration Alert</h1>
<p>The following items in your inventory are expiring within the next 6 weeks:</p>
<ul>
  {{{itemsListHtml}}}
</ul>
<p>Please review your stock and take appropriate action.</p>
<p>This is an automated notification from your MediStock system.</p>`

// ErrNotConfigured is returned when the SMTP settings are incomplete.
var ErrNotConfigured = fmt.Errorf("smtp configuration is incomplete")

// Message is a single HTML e-mail.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// RenderItemsList renders one <li> per batch. Names are HTML-escaped.
func RenderItemsList(batches []domain.ExpiringBatch) string {
	var b strings.Builder
	for _, eb := range batches {
		fmt.Fprintf(&b, "<li><b>%s</b> (Quantity: %d) - Expires on %s</li>",
			html.EscapeString(eb.ItemName), eb.Quantity, eb.ExpirationDate.Format(domain.DateLayout))
	}
	return b.String()
}

// Render substitutes the first placeholder in template with the batch list.
// An empty template falls back to DefaultTemplate.
func Render(template string, batches []domain.ExpiringBatch) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	return strings.Replace(template, Placeholder, RenderItemsList(batches), 1)
}

// SMTPSender sends through an authenticated SMTP server. Port 465 uses
// implicit TLS; every other port upgrades with STARTTLS when offered.
type SMTPSender struct {
	cfg     config.SMTPConfig
	timeout time.Duration
}

// NewSMTPSender creates a sender for cfg. Completeness is checked on Send so a
// misconfigured server still starts and reports the problem per run.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, timeout: 30 * time.Second}
}

// Send delivers msg to every recipient in one transaction.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if !s.cfg.Complete() {
		return ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	m, err := s.newMessage(msg)
	if err != nil {
		return err
	}
	client, err := s.newClient()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send via %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	return nil
}

func (s *SMTPSender) newMessage(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(s.cfg.FromName, s.cfg.User); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.cfg.User, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}

func (s *SMTPSender) newClient() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.User),
		mail.WithPassword(s.cfg.Password),
		mail.WithTimeout(s.timeout),
	}
	if s.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return client, nil
}
