package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/FACorreiaa/go-kanban-tracker/config"
)

// Notifier delivers verification codes and account mail out-of-band.
// Delivery is best-effort: callers must not fail their own operation when a
// Send returns an error.
type Notifier interface {
	SendVerificationCode(ctx context.Context, to, name, code, purpose string) error
	SendWelcome(ctx context.Context, to, name string) error
}

// SMTPNotifier sends mail over implicit TLS (port 465 style).
type SMTPNotifier struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

func NewSMTPNotifier(cfg config.SMTPConfig, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, logger: logger}
}

func (n *SMTPNotifier) SendVerificationCode(ctx context.Context, to, name, code, purpose string) error {
	if name == "" {
		name = to
	}
	var subject, purposeText string
	if purpose == "email" {
		subject = "Your Verification Code - Kanban Board"
		purposeText = "email verification"
	} else {
		subject = "Your Security Code - Kanban Board"
		purposeText = "account verification"
	}
	body := fmt.Sprintf(`Hello %s,

Please use this code for %s: %s

This code will expire in 10 minutes.

Kanban Board Manager`, name, purposeText, code)

	return n.send(ctx, to, subject, body)
}

func (n *SMTPNotifier) SendWelcome(ctx context.Context, to, name string) error {
	if name == "" {
		name = to
	}
	body := fmt.Sprintf(`Hello %s,

Welcome to Kanban Board Manager! We're excited to have you on board.

Getting Started:
- Create your first task
- Organize tasks by status and priority
- Track progress and stay organized

Kanban Board Manager`, name)

	return n.send(ctx, to, "Welcome to Kanban Board Manager!", body)
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, body string) error {
	from := n.cfg.FromAddress
	if from == "" {
		from = n.cfg.Username
	}
	msg := []byte(
		fmt.Sprintf("From: %s\r\n", from) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)

	serverAddr := n.cfg.Host + ":" + n.cfg.Port

	// Implicit TLS for port 465
	tlsConfig := &tls.Config{ServerName: n.cfg.Host}

	dialer := tls.Dialer{Config: tlsConfig}
	conn, err := dialer.DialContext(ctx, "tcp", serverAddr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Quit()

	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}

	n.logger.InfoContext(ctx, "Mail sent", slog.String("to", to), slog.String("subject", subject))
	return nil
}

// LogNotifier is used where no SMTP credentials are configured (development)
// and for the SMS channel, which has no gateway wired.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendVerificationCode(ctx context.Context, to, name, code, purpose string) error {
	n.logger.InfoContext(ctx, "Verification code issued (delivery skipped)",
		slog.String("to", to),
		slog.String("purpose", purpose),
	)
	return nil
}

func (n *LogNotifier) SendWelcome(ctx context.Context, to, name string) error {
	n.logger.InfoContext(ctx, "Welcome mail skipped", slog.String("to", to))
	return nil
}
