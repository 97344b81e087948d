package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

var ErrNoRecipients = errors.New("mail has no recipients")

type Message struct {
	Subject string   `json:"subject"`
	From    string   `json:"from"`
	To      []string `json:"to"`
	Body    string   `json:"body"`
}

// Sender delivers a plain-text message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPSender delivers through an SMTP relay with gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	host   string
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		host:   cfg.Host,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	if s.host == "" {
		log.WithField("to", strings.Join(msg.To, ",")).Warn("mail server not configured, skip message")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	log.WithFields(log.Fields{"to": strings.Join(msg.To, ","), "subject": msg.Subject}).Info("email sent")
	return nil
}

// Envelope is the queued form of a Message. Attempts counts failed sends.
type Envelope struct {
	ID       string  `json:"id"`
	Message  Message `json:"message"`
	Attempts int     `json:"attempts"`
}
