package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ctf_zone/internal/app/service"
	"ctf_zone/internal/platform/mail"
	"ctf_zone/internal/platform/metrics"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const defaultPollTimeout = 5 * time.Second

// MailWorker drains the mail outbox and hands each message to the sender.
// A failed send goes back on the queue until maxAttempts is reached.
type MailWorker struct {
	rdb         *redis.Client
	outbox      *service.MailService
	sender      mail.Sender
	maxAttempts int
	metrics     *metrics.Metrics
	pollTimeout time.Duration
}

func NewMailWorker(rdb *redis.Client, outbox *service.MailService, sender mail.Sender, maxAttempts int, m *metrics.Metrics) *MailWorker {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &MailWorker{
		rdb:         rdb,
		outbox:      outbox,
		sender:      sender,
		maxAttempts: maxAttempts,
		metrics:     m,
		pollTimeout: defaultPollTimeout,
	}
}

// Start blocks until ctx is cancelled.
func (w *MailWorker) Start(ctx context.Context) error {
	log.WithField("queue", w.outbox.QueueName()).Info("mail worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info("mail worker stopping")
			return nil
		default:
		}

		if _, err := w.next(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.WithError(err).WithField("queue", w.outbox.QueueName()).Error("failed to pop from mail queue")
			sleep(ctx, 5*time.Second)
		}
	}
}

// next handles at most one queued message. It reports whether one was found.
func (w *MailWorker) next(ctx context.Context) (bool, error) {
	res, err := w.rdb.BRPop(ctx, w.pollTimeout, w.outbox.QueueName()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	// res is [queueName, value]
	if len(res) < 2 || res[1] == "" {
		log.Warn("mail queue returned an empty entry")
		return false, nil
	}

	var env mail.Envelope
	if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
		log.WithError(err).Error("dropping undecodable mail envelope")
		w.metrics.Mail("dropped")
		return true, nil
	}
	w.deliver(ctx, env)
	return true, nil
}

func (w *MailWorker) deliver(ctx context.Context, env mail.Envelope) {
	entry := log.WithFields(log.Fields{"mail_id": env.ID, "subject": env.Message.Subject})

	err := w.sender.Send(ctx, env.Message)
	if err == nil {
		w.metrics.Mail("sent")
		return
	}

	env.Attempts++
	if errors.Is(err, mail.ErrNoRecipients) || env.Attempts >= w.maxAttempts {
		entry.WithError(err).WithField("attempts", env.Attempts).Error("giving up on mail")
		w.metrics.Mail("dropped")
		return
	}

	entry.WithError(err).WithField("attempts", env.Attempts).Warn("mail send failed, requeueing")
	if pushErr := w.outbox.Push(ctx, env); pushErr != nil {
		entry.WithError(pushErr).Error("failed to requeue mail")
		w.metrics.Mail("dropped")
		return
	}
	w.metrics.Mail("retry")
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
