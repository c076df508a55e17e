package services

import (
	"context"
	"errors"
	"testing"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSES struct {
	input *ses.SendEmailInput
	err   error
}

func (m *mockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESMailer_SendNotification(t *testing.T) {
	client := &mockSES{}
	mailer := NewSESMailer(client, "sentinel@example.com", []string{"ops@example.com", "sec@example.com"}, discardLogger())

	err := mailer.SendNotification(context.Background(), models.Notification{
		ID:          "n1",
		Message:     "User <alice@example.com> requested access to report.pdf.",
		ActionType:  models.NotificationAccessRequest,
		RelatedInfo: models.AuditDetails{"resource_id": "report.pdf"},
		Timestamp:   testStart,
	})
	require.NoError(t, err)

	require.NotNil(t, client.input)
	assert.Equal(t, "sentinel@example.com", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"ops@example.com", "sec@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "[Sentinel] Access request", aws.ToString(client.input.Message.Subject.Data))
	assert.Contains(t, aws.ToString(client.input.Message.Body.Text.Data), "resource_id: report.pdf")
	assert.Contains(t, aws.ToString(client.input.Message.Body.Html.Data), "&lt;alice@example.com&gt;")
}

func TestSESMailer_SendError(t *testing.T) {
	client := &mockSES{err: errors.New("throttled")}
	mailer := NewSESMailer(client, "sentinel@example.com", []string{"ops@example.com"}, discardLogger())

	err := mailer.SendNotification(context.Background(), models.Notification{ID: "n1", Message: "hi"})
	assert.Error(t, err)
}
