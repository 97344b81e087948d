package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ctf_zone/internal/common"
	"ctf_zone/internal/platform/mail"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// MailService puts outbound mail on a Redis list for the mail worker.
// Request handlers never wait on SMTP.
type MailService struct {
	rdb       *redis.Client
	queueName string
	sender    string
}

func NewMailService(rdb *redis.Client, queueName, defaultSender string) *MailService {
	return &MailService{rdb: rdb, queueName: queueName, sender: defaultSender}
}

func (s *MailService) QueueName() string {
	return s.queueName
}

func (s *MailService) Enqueue(ctx context.Context, subject, to, body string) error {
	if to == "" {
		return mail.ErrNoRecipients
	}
	env := mail.Envelope{
		ID: uuid.NewString(),
		Message: mail.Message{
			Subject: subject,
			From:    s.sender,
			To:      []string{to},
			Body:    body,
		},
	}
	return s.Push(ctx, env)
}

// Push appends an envelope to the outbox. The worker also uses it to
// requeue a failed message.
func (s *MailService) Push(ctx context.Context, env mail.Envelope) error {
	if s.rdb == nil {
		return errors.New("mail outbox not configured")
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return common.Errorf("failed to marshal mail envelope: %w", err)
	}
	if err := s.rdb.LPush(ctx, s.queueName, payload).Err(); err != nil {
		return fmt.Errorf("failed to push mail %s to queue %s: %w", env.ID, s.queueName, err)
	}
	log.WithFields(log.Fields{"mail_id": env.ID, "attempts": env.Attempts, "subject": env.Message.Subject}).Debug("mail queued")
	return nil
}
