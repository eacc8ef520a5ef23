// Package mailer sends notification e-mails over SMTP.
package mailer

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/pkg/config"
)

// Message is a single outbound e-mail.
type Message struct {
	To      []string
	Subject string
	Body    string
	HTML    bool
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer when mail is enabled, otherwise a mailer that only logs.
func New(cfg config.MailConfig, logger *zap.Logger) (Mailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return &Noop{logger: logger}, nil
	}
	return NewSMTP(cfg, logger)
}

// SMTP sends through a go-mail client.
type SMTP struct {
	client   *mail.Client
	from     string
	fromName string
	logger   *zap.Logger
}

// NewSMTP configures a go-mail client for the given server.
func NewSMTP(cfg config.MailConfig, logger *zap.Logger) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	opts := []mail.Option{mail.WithPort(port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("init smtp client: %w", err)
	}
	return &SMTP{client: client, from: cfg.From, fromName: cfg.FromName, logger: logger}, nil
}

// Send dials the server and delivers msg.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := buildMessage(s.fromName, s.from, msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	s.logger.Debug("mail sent", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

func buildMessage(fromName, from string, msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("mail requires at least one recipient")
	}
	m := mail.NewMsg()
	if err := m.FromFormat(fromName, from); err != nil {
		return nil, fmt.Errorf("set from address: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("set to address: %w", err)
	}
	m.Subject(msg.Subject)
	if msg.HTML {
		m.SetBodyString(mail.TypeTextHTML, msg.Body)
	} else {
		m.SetBodyString(mail.TypeTextPlain, msg.Body)
	}
	return m, nil
}

// Noop discards messages.
type Noop struct {
	logger *zap.Logger
}

// Send logs the message at debug level.
func (n *Noop) Send(_ context.Context, msg Message) error {
	n.logger.Debug("mail disabled, dropping message", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
