package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"recordstack/internal/external"
)

// SQSReceiver abstracts the SQS consumer operations used by the worker.
type SQSReceiver interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Mailer delivers one rendered email. Implemented by external.SESMailer.
type Mailer interface {
	Send(ctx context.Context, mail external.Mail) error
}

const (
	receiveBatchSize    = 10
	receiveWaitSeconds  = 20 // long polling
	visibilityExtension = 60
)

// EmailWorker drains the email queue: receive, render, send, delete.
// Messages that fail to send stay on the queue; SQS redelivers them after
// the visibility timeout and the dead-letter policy caps retries.
type EmailWorker struct {
	client       SQSReceiver
	mailer       Mailer
	queueURL     string
	dashboardURL string
	logger       *slog.Logger
}

func NewEmailWorker(client SQSReceiver, mailer Mailer, queueURL, dashboardURL string, logger *slog.Logger) *EmailWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailWorker{
		client:       client,
		mailer:       mailer,
		queueURL:     queueURL,
		dashboardURL: dashboardURL,
		logger:       logger,
	}
}

// Run polls until the context is cancelled.
func (w *EmailWorker) Run(ctx context.Context) error {
	w.logger.Info("email worker started", "queue_url", w.queueURL)
	for {
		if err := w.pollOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				w.logger.Info("email worker stopping")
				return nil
			}
			w.logger.Error("email receive failed, backing off", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
		}
	}
}

// pollOnce performs a single long-poll receive and processes the batch.
func (w *EmailWorker) pollOnce(ctx context.Context) error {
	out, err := w.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(w.queueURL),
		MaxNumberOfMessages: receiveBatchSize,
		WaitTimeSeconds:     receiveWaitSeconds,
		VisibilityTimeout:   visibilityExtension,
	})
	if err != nil {
		return err
	}

	for _, raw := range out.Messages {
		var msg EmailMessage
		if raw.Body == nil || json.Unmarshal([]byte(*raw.Body), &msg) != nil {
			// Malformed payloads can never succeed; drop them.
			w.logger.Warn("dropping malformed email message")
			w.delete(ctx, raw.ReceiptHandle)
			continue
		}

		if err := w.mailer.Send(ctx, w.render(msg)); err != nil {
			w.logger.Error("email delivery failed, leaving on queue",
				"message_id", msg.MessageID, "kind", msg.Kind, "error", err)
			continue
		}
		w.delete(ctx, raw.ReceiptHandle)
		w.logger.Info("email delivered", "message_id", msg.MessageID, "kind", msg.Kind)
	}
	return nil
}

func (w *EmailWorker) delete(ctx context.Context, receiptHandle *string) {
	_, err := w.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.queueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		w.logger.Warn("failed to delete processed message", "error", err)
	}
}

// render builds the outbound mail for a queue message.
func (w *EmailWorker) render(msg EmailMessage) external.Mail {
	switch msg.Kind {
	case EmailPasswordReset:
		link := fmt.Sprintf("%s/accounts/reset-password?token=%s", w.dashboardURL, msg.Token)
		return external.Mail{
			To:      msg.Recipient,
			Subject: "Reset your RecordStack password",
			BodyText: fmt.Sprintf(
				"A password reset was requested for this address.\n\n"+
					"Reset your password: %s\n\n"+
					"The link expires in 1 hour. If you did not request this, ignore this email.", link),
			BodyHTML: fmt.Sprintf(
				`<p>A password reset was requested for this address.</p>`+
					`<p><a href="%s">Reset your password</a></p>`+
					`<p>The link expires in 1 hour. If you did not request this, ignore this email.</p>`, link),
		}
	default:
		link := fmt.Sprintf("%s/accounts/verify-email?token=%s", w.dashboardURL, msg.Token)
		return external.Mail{
			To:      msg.Recipient,
			Subject: "Verify your RecordStack email address",
			BodyText: fmt.Sprintf(
				"Welcome to RecordStack.\n\n"+
					"Verify your email address: %s\n\n"+
					"The link expires in 48 hours.", link),
			BodyHTML: fmt.Sprintf(
				`<p>Welcome to RecordStack.</p>`+
					`<p><a href="%s">Verify your email address</a></p>`+
					`<p>The link expires in 48 hours.</p>`, link),
		}
	}
}
