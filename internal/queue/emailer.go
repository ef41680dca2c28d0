// Package queue decouples transactional email from the request path. The
// API enqueues messages to SQS and the email worker drains the queue, so a
// slow or unavailable mail provider never blocks signup or password reset.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
)

// SQSSender abstracts SQS SendMessage for testability. Production code uses
// *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// EmailKind selects the template the worker renders.
type EmailKind string

const (
	EmailVerification  EmailKind = "verification"
	EmailPasswordReset EmailKind = "password_reset"
)

// EmailMessage is the queue payload for one transactional email.
type EmailMessage struct {
	MessageID  string    `json:"message_id"`
	Kind       EmailKind `json:"kind"`
	Recipient  string    `json:"recipient"`
	Token      string    `json:"token"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// EmailTrigger enqueues email messages. It implements auth.Notifier; the
// auth service treats enqueue failures as best-effort.
type EmailTrigger struct {
	client   SQSSender
	queueURL string
	enabled  bool
	logger   *slog.Logger
}

func NewEmailTrigger(client SQSSender, queueURL string, enabled bool, logger *slog.Logger) *EmailTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailTrigger{client: client, queueURL: queueURL, enabled: enabled, logger: logger}
}

// SendVerificationEmail enqueues an address-verification email.
func (t *EmailTrigger) SendVerificationEmail(ctx context.Context, recipient, token string) error {
	return t.enqueue(ctx, EmailVerification, recipient, token)
}

// SendPasswordResetEmail enqueues a password-reset email.
func (t *EmailTrigger) SendPasswordResetEmail(ctx context.Context, recipient, token string) error {
	return t.enqueue(ctx, EmailPasswordReset, recipient, token)
}

func (t *EmailTrigger) enqueue(ctx context.Context, kind EmailKind, recipient, token string) error {
	if !t.enabled {
		t.logger.InfoContext(ctx, "email delivery disabled, dropping message",
			"kind", kind, "recipient", recipient)
		return nil
	}

	msg := EmailMessage{
		MessageID:  uuid.NewString(),
		Kind:       kind,
		Recipient:  recipient,
		Token:      token,
		EnqueuedAt: time.Now().UTC(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal email message: %w", err)
	}

	_, err = t.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(kind)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("queue: failed to enqueue email message: %w", err)
	}

	t.logger.InfoContext(ctx, "email message enqueued",
		"message_id", msg.MessageID, "kind", kind, "recipient", recipient)
	return nil
}
