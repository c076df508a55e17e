package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// NotificationMailer defines the interface for e-mailing operator notifications
type NotificationMailer interface {
	SendNotification(ctx context.Context, n models.Notification) error
}

// SESAPI is the subset of the SES client used by the mailer
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESMailer sends operator notifications using AWS SES
type AWSSESMailer struct {
	client      SESAPI
	fromAddress string
	recipients  []string
	logger      *slog.Logger
}

// NewAWSSESMailer creates a mailer backed by the default AWS credential chain
func NewAWSSESMailer(ctx context.Context, region, fromAddress string, recipients []string, logger *slog.Logger) (*AWSSESMailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESMailer(ses.NewFromConfig(cfg), fromAddress, recipients, logger), nil
}

// NewSESMailer wraps an existing SES client
func NewSESMailer(client SESAPI, fromAddress string, recipients []string, logger *slog.Logger) *AWSSESMailer {
	return &AWSSESMailer{
		client:      client,
		fromAddress: fromAddress,
		recipients:  recipients,
		logger:      logger,
	}
}

// SendNotification e-mails n to every configured operator
func (m *AWSSESMailer) SendNotification(ctx context.Context, n models.Notification) error {
	subject := fmt.Sprintf("[Sentinel] %s", notificationTitle(n.ActionType))
	textBody := renderNotificationText(n)

	input := &ses.SendEmailInput{
		Source: aws.String(m.fromAddress),
		Destination: &types.Destination{
			ToAddresses: m.recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(renderNotificationHTML(n)),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to send notification email via SES",
			slog.String("notification_id", n.ID),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	messageID := ""
	if result != nil && result.MessageId != nil {
		messageID = *result.MessageId
	}
	m.logger.InfoContext(ctx, "notification email sent",
		slog.String("notification_id", n.ID),
		slog.String("message_id", messageID))

	return nil
}

func notificationTitle(t models.NotificationType) string {
	switch t {
	case models.NotificationLogin:
		return "Login"
	case models.NotificationLogout:
		return "Logout"
	case models.NotificationAccessRequest:
		return "Access request"
	default:
		return "Notice"
	}
}

func sortedKeys(m models.AuditDetails) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func renderNotificationText(n models.Notification) string {
	var b strings.Builder
	b.WriteString(n.Message)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Time: %s\n", n.Timestamp.UTC().Format(time.RFC1123))
	for _, k := range sortedKeys(n.RelatedInfo) {
		fmt.Fprintf(&b, "%s: %v\n", k, n.RelatedInfo[k])
	}
	b.WriteString("\nThis is an automated message. Please do not reply to this email.\n")
	return b.String()
}

func renderNotificationHTML(n models.Notification) string {
	var rows strings.Builder
	for _, k := range sortedKeys(n.RelatedInfo) {
		fmt.Fprintf(&rows, "<tr><td><strong>%s</strong></td><td>%s</td></tr>\n",
			html.EscapeString(k), html.EscapeString(fmt.Sprint(n.RelatedInfo[k])))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <p>%s</p>
        <p>%s</p>
        <table>
%s        </table>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, html.EscapeString(n.Message), n.Timestamp.UTC().Format(time.RFC1123), rows.String())
}
