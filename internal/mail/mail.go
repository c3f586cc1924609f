// Package mail delivers OTP codes and report attachments.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"fintrack/internal/log"
)

// Attachment is an in-memory file sent with a message.
type Attachment struct {
	Name    string
	Content []byte
}

// Message is a single outgoing HTML email.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds the SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPSender sends through an SMTP relay, opportunistically upgrading to TLS.
type SMTPSender struct {
	cfg    Config
	logger *log.Logger
}

func NewSMTPSender(cfg Config, logger *log.Logger) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp sender address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPSender{cfg: cfg, logger: logger.WithComponent(log.ComponentMail)}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := buildMessage(s.cfg.From, msg)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(s.cfg.Timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	start := time.Now()
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		s.logger.ErrorContext(ctx, "Email delivery failed",
			"to", msg.To,
			"subject", msg.Subject,
			log.FieldError, err)
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	s.logger.InfoContext(ctx, "Email sent",
		"to", msg.To,
		"subject", msg.Subject,
		"attachments", len(msg.Attachments),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func buildMessage(from string, msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	for _, a := range msg.Attachments {
		if err := m.AttachReader(a.Name, bytes.NewReader(a.Content)); err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Name, err)
		}
	}
	return m, nil
}

// LogSender writes messages to the log instead of delivering them. Used when
// SMTP is not configured.
type LogSender struct {
	logger *log.Logger
}

func NewLogSender(logger *log.Logger) *LogSender {
	return &LogSender{logger: logger.WithComponent(log.ComponentMail)}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Name)
	}
	s.logger.WarnContext(ctx, "SMTP not configured, email not delivered",
		"to", msg.To,
		"subject", msg.Subject,
		"attachments", names)
	return nil
}
