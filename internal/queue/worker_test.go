package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordstack/internal/external"
)

// fakeReceiver serves one prepared batch, then blocks until cancellation.
type fakeReceiver struct {
	batch   []sqsTypes.Message
	served  atomic.Bool
	deleted []string
}

func (f *fakeReceiver) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.served.CompareAndSwap(false, true) {
		return &sqs.ReceiveMessageOutput{Messages: f.batch}, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeReceiver) DeleteMessage(_ context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, *params.ReceiptHandle)
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeMailer struct {
	sent []external.Mail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, mail external.Mail) error {
	f.sent = append(f.sent, mail)
	return f.err
}

func queuedMessage(t *testing.T, kind EmailKind, receipt string) sqsTypes.Message {
	t.Helper()
	body, err := json.Marshal(EmailMessage{
		MessageID:  "msg-1",
		Kind:       kind,
		Recipient:  "casey@example.com",
		Token:      "tok-123",
		EnqueuedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return sqsTypes.Message{Body: aws.String(string(body)), ReceiptHandle: aws.String(receipt)}
}

func runWorker(t *testing.T, receiver *fakeReceiver, mailer *fakeMailer) {
	t.Helper()
	worker := NewEmailWorker(receiver, mailer, testQueueURL, "https://app.example.com", discardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go func() {
		// Stop once the single prepared batch has been consumed.
		for !receiver.served.Load() {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	require.NoError(t, worker.Run(ctx))
}

func TestWorkerDeliversVerificationEmail(t *testing.T) {
	receiver := &fakeReceiver{batch: []sqsTypes.Message{queuedMessage(t, EmailVerification, "rh-1")}}
	mailer := &fakeMailer{}
	runWorker(t, receiver, mailer)

	require.Len(t, mailer.sent, 1)
	mail := mailer.sent[0]
	assert.Equal(t, "casey@example.com", mail.To)
	assert.Contains(t, mail.Subject, "Verify")
	assert.Contains(t, mail.BodyText, "https://app.example.com/accounts/verify-email?token=tok-123")
	assert.Equal(t, []string{"rh-1"}, receiver.deleted)
}

func TestWorkerDeliversPasswordResetEmail(t *testing.T) {
	receiver := &fakeReceiver{batch: []sqsTypes.Message{queuedMessage(t, EmailPasswordReset, "rh-2")}}
	mailer := &fakeMailer{}
	runWorker(t, receiver, mailer)

	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0].BodyText, "https://app.example.com/accounts/reset-password?token=tok-123")
	assert.Contains(t, mailer.sent[0].Subject, "Reset")
}

func TestWorkerDropsMalformedMessages(t *testing.T) {
	receiver := &fakeReceiver{batch: []sqsTypes.Message{
		{Body: aws.String("{not json"), ReceiptHandle: aws.String("rh-bad")},
	}}
	mailer := &fakeMailer{}
	runWorker(t, receiver, mailer)

	assert.Empty(t, mailer.sent)
	// Deleted anyway: redelivery cannot fix a malformed payload.
	assert.Equal(t, []string{"rh-bad"}, receiver.deleted)
}

func TestWorkerLeavesFailedDeliveriesOnQueue(t *testing.T) {
	receiver := &fakeReceiver{batch: []sqsTypes.Message{queuedMessage(t, EmailVerification, "rh-3")}}
	mailer := &fakeMailer{err: errors.New("ses throttled")}
	runWorker(t, receiver, mailer)

	require.Len(t, mailer.sent, 1)
	assert.Empty(t, receiver.deleted)
}
