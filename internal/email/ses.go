package email

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// sesAPI is the subset of the SES client used here
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	GetSendQuota(ctx context.Context, params *ses.GetSendQuotaInput, optFns ...func(*ses.Options)) (*ses.GetSendQuotaOutput, error)
}

// EmailService handles sending emails via AWS SES
type EmailService struct {
	client    sesAPI
	fromEmail string
	fromName  string
	baseURL   string
}

// NewEmailService creates a new email service using AWS SES
func NewEmailService(region, fromEmail, fromName, baseURL string) (*EmailService, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &EmailService{
		client:    ses.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
		baseURL:   baseURL,
	}, nil
}

// CheckAccess verifies the credentials and that the daily quota is not used up
func (e *EmailService) CheckAccess(ctx context.Context) error {
	quota, err := e.client.GetSendQuota(ctx, &ses.GetSendQuotaInput{})
	if err != nil {
		return fmt.Errorf("failed to read SES send quota: %w", err)
	}
	if quota.Max24HourSend > 0 && quota.SentLast24Hours >= quota.Max24HourSend {
		return fmt.Errorf("SES daily quota exhausted (%.0f/%.0f)", quota.SentLast24Hours, quota.Max24HourSend)
	}
	return nil
}

// ModerationNotice describes content that was hidden
type ModerationNotice struct {
	DisplayName string
	ContentType string
	ContentID   string
	Reason      string
	Automatic   bool
}

// SendModerationNotice tells an author that their content was hidden
func (e *EmailService) SendModerationNotice(ctx context.Context, toEmail string, notice ModerationNotice) error {
	subject, htmlBody, textBody := e.buildModerationNotice(notice)

	from := e.fromEmail
	if e.fromName != "" {
		from = fmt.Sprintf("%s <%s>", e.fromName, e.fromEmail)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(htmlBody),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(textBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := e.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send moderation notice: %w", err)
	}
	return nil
}

func (e *EmailService) buildModerationNotice(n ModerationNotice) (subject, htmlBody, textBody string) {
	contentURL := fmt.Sprintf("%s/%ss/%s", e.baseURL, n.ContentType, n.ContentID)
	actor := "A moderator"
	if n.Automatic {
		actor = "Our automatic filter"
	}
	name := n.DisplayName
	if name == "" {
		name = "there"
	}

	subject = fmt.Sprintf("Your %s on ProHub was hidden", n.ContentType)

	htmlBody = fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<head>
			<meta charset="UTF-8">
			<style>
				body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; }
				.container { max-width: 600px; margin: 0 auto; padding: 20px; }
				.reason { padding: 12px 16px; background-color: #f6f6f6; border-left: 4px solid #e0a800; }
			</style>
		</head>
		<body>
			<div class="container">
				<h1>Your %s was hidden</h1>
				<p>Hi %s,</p>
				<p>%s hid one of your posts on ProHub. It is no longer visible to other members.</p>
				<p class="reason">%s</p>
				<p>Link: <a href="%s">%s</a></p>
				<p>If you think this was a mistake, reply to a moderator from your notifications page.</p>
				<hr>
				<p style="color: #999; font-size: 12px;">This is an automated message from ProHub.</p>
			</div>
		</body>
		</html>
	`,
		html.EscapeString(n.ContentType),
		html.EscapeString(name),
		actor,
		html.EscapeString(n.Reason),
		contentURL, contentURL,
	)

	textBody = fmt.Sprintf(`
Your %s was hidden

Hi %s,

%s hid one of your posts on ProHub. It is no longer visible to other members.

Reason: %s

%s

If you think this was a mistake, reply to a moderator from your notifications page.

This is an automated message from ProHub.
	`, n.ContentType, name, actor, n.Reason, contentURL)

	return subject, htmlBody, textBody
}
