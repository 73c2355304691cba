package mailer

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/oaps-analytics/zendesk-reporting/internal/config"
	apperrors "github.com/oaps-analytics/zendesk-reporting/pkg/util"
)

// Mailer sends the export notification to the configured recipient list
// over SMTP with STARTTLS.
type Mailer struct {
	cfg    config.EmailConfig
	logger *zap.Logger

	// send is swapped by tests to avoid a live SMTP session.
	send func(ctx context.Context, msg *mail.Msg) error
}

// NewMailer constructs the mailer.
func NewMailer(cfg config.EmailConfig, logger *zap.Logger) *Mailer {
	m := &Mailer{cfg: cfg, logger: logger}
	m.send = m.smtpSend
	return m
}

// SendExportLink emails the SharePoint link for a fresh export. Failures
// are upstream("email") errors; the delivery log append is best-effort.
func (m *Mailer) SendExportLink(ctx context.Context, sharepointURL, filename string) error {
	if m.cfg.User == "" || m.cfg.Pass == "" || len(m.cfg.Recipients) == 0 {
		m.logger.Error("email configuration or recipients missing")
		return apperrors.NewUpstream("email", "Email configuration invalid or recipients missing", nil)
	}

	now := time.Now()
	dated := fmt.Sprintf("%d.%d.%02d", int(now.Month()), now.Day(), now.Year()%100)
	subject := fmt.Sprintf("Bi-Weekly Ticket Report [%s]", dated)

	link := sharepointURL
	if link == "" {
		link = "[SharePoint link not available]"
	}
	body := fmt.Sprintf(`Hey Team,

The latest Zendesk ticket report is ready as of %s:
%s

Please review older tickets prior to the bi-weekly meeting. Leave notations if further follow-up is required.

Thanks,
Olivier
`, dated, link)

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.User); err != nil {
		return apperrors.NewUpstream("email", "Email delivery failed", err)
	}
	if err := msg.To(m.cfg.Recipients...); err != nil {
		return apperrors.NewUpstream("email", "Email delivery failed", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	err := m.send(ctx, msg)
	m.appendDeliveryLog(subject, sharepointURL, err == nil)
	if err != nil {
		m.logger.Error("email send failed", zap.Error(err))
		return apperrors.NewUpstream("email", "Email delivery failed", err)
	}

	m.logger.Info("email sent", zap.Strings("recipients", m.cfg.Recipients))
	return nil
}

func (m *Mailer) smtpSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(m.cfg.Server,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(m.cfg.User),
		mail.WithPassword(m.cfg.Pass),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// appendDeliveryLog records each send attempt in a CSV file. Its own
// failure never surfaces.
func (m *Mailer) appendDeliveryLog(subject, sharepointURL string, ok bool) {
	if m.cfg.LogPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.cfg.LogPath), 0o755); err != nil {
		m.logger.Warn("failed to create email log dir", zap.Error(err))
		return
	}
	f, err := os.OpenFile(m.cfg.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		m.logger.Warn("failed to open email log", zap.Error(err))
		return
	}
	defer f.Close()

	outcome := "Failed"
	if ok {
		outcome = "Success"
	}
	link := sharepointURL
	if link == "" {
		link = "N/A"
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{
		time.Now().Format("2006-01-02 15:04:05"),
		subject,
		strings.Join(m.cfg.Recipients, "; "),
		outcome,
		link,
	})
	w.Flush()
}
