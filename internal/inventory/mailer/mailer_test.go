package mailer

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batch(name string, qty int, exp string) domain.ExpiringBatch {
	t, _ := time.Parse(domain.DateLayout, exp)
	return domain.ExpiringBatch{ItemID: name, ItemName: name, Quantity: qty, ExpirationDate: t}
}

func TestRenderItemsList(t *testing.T) {
	got := RenderItemsList([]domain.ExpiringBatch{
		batch("Saline 0.9%", 3, "2024-03-10"),
		batch("<script>", 1, "2024-04-01"),
	})

	assert.Equal(t,
		"<li><b>Saline 0.9%</b> (Quantity: 3) - Expires on 2024-03-10</li>"+
			"<li><b>&lt;script&gt;</b> (Quantity: 1) - Expires on 2024-04-01</li>",
		got)
}

func TestRender_ReplacesFirstPlaceholderOnly(t *testing.T) {
	tpl := "<ul>{{{itemsListHtml}}}</ul><p>{{{itemsListHtml}}}</p>"
	got := Render(tpl, []domain.ExpiringBatch{batch("Gauze", 2, "2024-03-05")})

	assert.Equal(t, "<ul><li><b>Gauze</b> (Quantity: 2) - Expires on 2024-03-05</li></ul><p>{{{itemsListHtml}}}</p>", got)
}

func TestRender_DefaultTemplate(t *testing.T) {
	got := Render("   ", []domain.ExpiringBatch{batch("Gauze", 2, "2024-03-05")})

	assert.True(t, strings.HasPrefix(got, "<h1>MediStock Expiration Alert</h1>"))
	assert.Contains(t, got, "<li><b>Gauze</b>")
	assert.NotContains(t, got, Placeholder)
}

func TestRender_TemplateWithoutPlaceholder(t *testing.T) {
	got := Render("<p>static</p>", []domain.ExpiringBatch{batch("Gauze", 2, "2024-03-05")})
	assert.Equal(t, "<p>static</p>", got)
}

func TestSMTPSender_NotConfigured(t *testing.T) {
	s := NewSMTPSender(config.SMTPConfig{Host: "smtp.example.org", Port: 587})
	err := s.Send(context.Background(), Message{To: []string{"a@example.org"}})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSMTPSender_NewMessage(t *testing.T) {
	s := NewSMTPSender(config.SMTPConfig{User: "alerts@example.org", FromName: "MediStock Alert"})
	m, err := s.newMessage(Message{
		To:      []string{"admin1@example.org", "admin2@example.org"},
		Subject: "MediStock Inventory - Expiration Alert",
		HTML:    "<p>hi</p>",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	text := buf.String()
	assert.Contains(t, text, `From: "MediStock Alert" <alerts@example.org>`)
	assert.Contains(t, text, "<admin1@example.org>")
	assert.Contains(t, text, "<admin2@example.org>")
	assert.Contains(t, text, "Subject: MediStock Inventory - Expiration Alert")
	assert.Contains(t, text, "text/html")
	assert.Contains(t, text, "<p>hi</p>")
}

func TestSMTPSender_NewMessage_InvalidRecipient(t *testing.T) {
	s := NewSMTPSender(config.SMTPConfig{User: "a@example.org"})
	_, err := s.newMessage(Message{To: []string{"not an address"}})
	assert.Error(t, err)
}

func TestSMTPSender_NewClient(t *testing.T) {
	for _, port := range []int{465, 587} {
		s := NewSMTPSender(config.SMTPConfig{Host: "smtp.example.org", Port: port, User: "a@example.org", Password: "secret"})
		_, err := s.newClient()
		assert.NoError(t, err, "port %d", port)
	}
}

func TestSMTPSender_SendFailureKeepsProviderDetail(t *testing.T) {
	// Nothing listens on port 1 of the loopback address.
	s := NewSMTPSender(config.SMTPConfig{Host: "127.0.0.1", Port: 1, User: "a@example.org", Password: "secret"})
	s.timeout = time.Second

	err := s.Send(context.Background(), Message{To: []string{"b@example.org"}, Subject: "x", HTML: "<p>x</p>"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotConfigured)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
