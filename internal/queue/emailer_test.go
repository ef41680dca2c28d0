package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSender) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123/email"

func TestSendVerificationEmail(t *testing.T) {
	sender := &fakeSender{}
	trigger := NewEmailTrigger(sender, testQueueURL, true, discardLogger())

	err := trigger.SendVerificationEmail(context.Background(), "casey@example.com", "tok-123")
	require.NoError(t, err)
	require.Len(t, sender.inputs, 1)

	input := sender.inputs[0]
	assert.Equal(t, testQueueURL, *input.QueueUrl)
	assert.Equal(t, "verification", *input.MessageAttributes["kind"].StringValue)

	var msg EmailMessage
	require.NoError(t, json.Unmarshal([]byte(*input.MessageBody), &msg))
	assert.Equal(t, EmailVerification, msg.Kind)
	assert.Equal(t, "casey@example.com", msg.Recipient)
	assert.Equal(t, "tok-123", msg.Token)
	assert.NotEmpty(t, msg.MessageID)
	assert.False(t, msg.EnqueuedAt.IsZero())
}

func TestSendPasswordResetEmail(t *testing.T) {
	sender := &fakeSender{}
	trigger := NewEmailTrigger(sender, testQueueURL, true, discardLogger())

	require.NoError(t, trigger.SendPasswordResetEmail(context.Background(), "casey@example.com", "tok-456"))
	require.Len(t, sender.inputs, 1)
	assert.Equal(t, "password_reset", *sender.inputs[0].MessageAttributes["kind"].StringValue)
}

func TestEnqueueDisabledIsNoop(t *testing.T) {
	sender := &fakeSender{}
	trigger := NewEmailTrigger(sender, testQueueURL, false, discardLogger())

	require.NoError(t, trigger.SendVerificationEmail(context.Background(), "casey@example.com", "tok"))
	assert.Empty(t, sender.inputs)
}

func TestEnqueueFailureSurfaces(t *testing.T) {
	sender := &fakeSender{err: errors.New("sqs unavailable")}
	trigger := NewEmailTrigger(sender, testQueueURL, true, discardLogger())

	err := trigger.SendVerificationEmail(context.Background(), "casey@example.com", "tok")
	assert.Error(t, err)
}
