package external

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"recordstack/internal/types"
)

// SESAPI is the subset of the SES v2 client used by SESMailer. Extracted so
// tests can substitute a mock.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Mail is a fully rendered outbound message.
type Mail struct {
	To       string
	Subject  string
	BodyHTML string
	BodyText string
}

// SESMailer delivers transactional mail through AWS SES v2. Authentication
// rides on the task's IAM role and the SDK brings its own retry logic, so
// no BaseClient wrapper applies here.
type SESMailer struct {
	api         SESAPI
	fromAddress string
	fromName    string
	logger      *slog.Logger
}

// NewSESMailer creates an SESMailer from an AWS config.
func NewSESMailer(awsCfg aws.Config, fromAddress, fromName string, logger *slog.Logger) *SESMailer {
	return NewSESMailerWithAPI(sesv2.NewFromConfig(awsCfg), fromAddress, fromName, logger)
}

// NewSESMailerWithAPI creates an SESMailer over a pre-built SES API. For tests.
func NewSESMailerWithAPI(api SESAPI, fromAddress, fromName string, logger *slog.Logger) *SESMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SESMailer{api: api, fromAddress: fromAddress, fromName: fromName, logger: logger}
}

// Send transmits one message. Failures map to UPSTREAM_EMAIL_UNAVAILABLE;
// the email worker decides whether to retry.
func (m *SESMailer) Send(ctx context.Context, mail Mail) error {
	from := m.fromAddress
	if m.fromName != "" {
		from = fmt.Sprintf("%s <%s>", m.fromName, m.fromAddress)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{mail.To},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{
					Data:    aws.String(mail.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &sestypes.Body{},
			},
		},
	}
	if mail.BodyHTML != "" {
		input.Content.Simple.Body.Html = &sestypes.Content{
			Data:    aws.String(mail.BodyHTML),
			Charset: aws.String("UTF-8"),
		}
	}
	if mail.BodyText != "" {
		input.Content.Simple.Body.Text = &sestypes.Content{
			Data:    aws.String(mail.BodyText),
			Charset: aws.String("UTF-8"),
		}
	}

	result, err := m.api.SendEmail(ctx, input)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamEmail,
			"SES send failed", err)
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}
	m.logger.InfoContext(ctx, "email sent", "to", mail.To, "message_id", messageID)
	return nil
}
