package queue

import (
	"context"
	"fmt"
	"regexp"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, plain, html string) error
}

type SendGridMailer struct {
	apiKey   string
	from     string
	fromName string
}

func NewSendGridMailer(apiKey, from, fromName string) *SendGridMailer {
	return &SendGridMailer{apiKey: apiKey, from: from, fromName: fromName}
}

func (m *SendGridMailer) Send(ctx context.Context, to, subject, plain, html string) error {
	message := mail.NewSingleEmail(mail.NewEmail(m.fromName, m.from), subject, mail.NewEmail("", to), plain, html)
	client := sendgrid.NewSendClient(m.apiKey)

	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email via SendGrid: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("SendGrid returned error status: %d", response.StatusCode)
	}
	return nil
}

// LogMailer writes mail to the log instead of sending it. Used when no
// SendGrid key is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Mail bodies carry recovery and confirmation tokens; they never reach the
// log.
var tokenParam = regexp.MustCompile(`token=[^&\s"]+`)

func redactTokens(s string) string {
	return tokenParam.ReplaceAllString(s, "token=REDACTED")
}

func (m *LogMailer) Send(ctx context.Context, to, subject, plain, html string) error {
	m.logger.Info("mail not sent, no provider configured",
		zap.String("to", to),
		zap.String("subject", subject))
	m.logger.Debug("unsent mail body", zap.String("body", redactTokens(plain)))
	return nil
}
