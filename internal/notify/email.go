// Package notify delivers queue alerts over SMTP. Delivery is best-effort:
// a failed send is logged, never propagated, and never blocks a queue
// operation.
package notify

import (
	"fmt"
	"log/slog"
	"time"

	gomail "gopkg.in/mail.v2"

	"github.com/sievefin/tradesift/internal/model"
)

// EmailConfig holds SMTP configuration for alert delivery.
type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
	ToEmail    string
	Enabled    bool
}

// EmailNotifier implements service.Notifier over SMTP. Sends run in their
// own goroutine so queue operations never wait on the mail server.
type EmailNotifier struct {
	cfg EmailConfig
}

// NewEmailNotifier creates a notifier with the given SMTP configuration.
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	return &EmailNotifier{cfg: cfg}
}

// UrgentAdmission alerts on a newly admitted urgent-priority item.
func (n *EmailNotifier) UrgentAdmission(item *model.ReviewQueueItem) {
	subject := fmt.Sprintf("[tradesift] urgent review: %s %s", item.Transaction.Kind, item.Transaction.Symbol)
	body := fmt.Sprintf(
		"An urgent review item was admitted.\n\nItem: %s\nSymbol: %s\nKind: %s\nRisk score: %.2f\nConfidence: %.2f\nSummary: %s\n",
		item.ID,
		item.Transaction.Symbol,
		item.Transaction.Kind,
		item.RiskScore,
		item.Detection.Confidence,
		item.Detection.Summary,
	)
	go n.send(subject, body)
}

// Escalated alerts on an auto-escalated item.
func (n *EmailNotifier) Escalated(item *model.ReviewQueueItem) {
	subject := fmt.Sprintf("[tradesift] escalated to level %d: %s", item.EscalationLevel, item.Transaction.Symbol)
	body := fmt.Sprintf(
		"A review item was escalated.\n\nItem: %s\nEscalation level: %d\nQueued at: %s\nRisk score: %.2f\nNotes: %s\n",
		item.ID,
		item.EscalationLevel,
		item.QueuedAt.Format(time.RFC3339),
		item.RiskScore,
		item.Review.Notes,
	)
	go n.send(subject, body)
}

func (n *EmailNotifier) send(subject, body string) {
	if !n.cfg.Enabled {
		return
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", n.cfg.ToEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	dialer := gomail.NewDialer(n.cfg.SMTPServer, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	dialer.Timeout = 10 * time.Second

	if err := dialer.DialAndSend(m); err != nil {
		slog.Error("Failed to send alert email",
			"to", n.cfg.ToEmail,
			"subject", subject,
			"error", err)
		return
	}
	slog.Debug("Alert email sent", "subject", subject)
}
