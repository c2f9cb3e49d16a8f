// internal/notify/awsnotifier.go
package notify

import (
	"context"
	"fmt"
	"strings"

	"poultry-review-engine/internal/common/config"
	"poultry-review-engine/internal/common/errors"
	"poultry-review-engine/internal/common/logger"
	"poultry-review-engine/internal/common/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// messageTemplate is one event kind's subject and body with {{key}}
// placeholders.
type messageTemplate struct {
	Subject string
	Body    string
}

// AWSNotifier delivers events over SES email and SNS SMS. Email goes to every
// recipient with an address; SMS only when the event is high priority and the
// recipient has a phone number.
type AWSNotifier struct {
	sesClient    SESService
	snsClient    SNSService
	fromEmail    string
	emailEnabled bool
	smsEnabled   bool
	templates    map[EventKind]messageTemplate
	logger       logger.Logger
}

func NewAWSNotifier(cfg config.NotificationConfig, sesClient SESService, snsClient SNSService, log logger.Logger) *AWSNotifier {
	return &AWSNotifier{
		sesClient:    sesClient,
		snsClient:    snsClient,
		fromEmail:    cfg.Email.FromEmail,
		emailEnabled: cfg.Email.Enabled,
		smsEnabled:   cfg.SMS.Enabled,
		templates:    defaultTemplates(),
		logger:       log.WithFields(map[string]interface{}{"component": "aws-notifier"}),
	}
}

func defaultTemplates() map[EventKind]messageTemplate {
	return map[EventKind]messageTemplate{
		EventApplicationSubmitted: {
			Subject: "Application {{number}} received",
			Body:    "Hello {{name}}, your application {{number}} has been received and is queued for review.",
		},
		EventApplicationResubmitted: {
			Subject: "Application {{number}} resubmitted",
			Body:    "Hello {{name}}, your updated application {{number}} has been received and returns to the {{stage}} stage.",
		},
		EventWorkItemAssigned: {
			Subject: "Review assigned: {{number}}",
			Body:    "Hello {{name}}, application {{number}} has been assigned to you for {{stage}} review. Due by {{deadline}}.",
		},
		EventChangesRequested: {
			Subject: "Action required on application {{number}}",
			Body:    "Hello {{name}}, changes have been requested on application {{number}}: {{reason}}. Please resubmit by {{deadline}} or the application will be rejected.",
		},
		EventApplicationApproved: {
			Subject: "Application {{number}} approved",
			Body:    "Hello {{name}}, application {{number}} has passed all review stages and has been approved.",
		},
		EventApplicationEnrolled: {
			Subject: "Welcome to the program: {{number}}",
			Body:    "Hello {{name}}, application {{number}} has been approved and enrolled. Your extension officer will contact you with next steps.",
		},
		EventApplicationRejected: {
			Subject: "Application {{number}} decision",
			Body:    "Hello {{name}}, application {{number}} was not successful. Reason: {{reason}}.",
		},
		EventApplicationWithdrawn: {
			Subject: "Application {{number}} withdrawn",
			Body:    "Hello {{name}}, application {{number}} has been withdrawn and will not be reviewed further.",
		},
		EventWorkItemOverdue: {
			Subject: "Overdue review: {{number}}",
			Body:    "Hello {{name}}, the {{stage}} review of application {{number}} is past its due date of {{deadline}}. Please complete it as soon as possible.",
		},
	}
}

func (n *AWSNotifier) Notify(ctx context.Context, event Event) error {
	tmpl, exists := n.templates[event.Kind]
	if !exists {
		return errors.NewValidationError("no template for event kind", string(event.Kind))
	}

	base := map[string]interface{}{
		"number":        event.ApplicationNumber,
		"applicationId": event.ApplicationID,
	}
	if event.Stage != nil {
		base["stage"] = string(*event.Stage)
	}
	for k, v := range event.Metadata {
		base[k] = v
	}

	var firstErr error
	for _, rcpt := range event.Recipients {
		data := map[string]interface{}{"name": rcpt.Name}
		for k, v := range base {
			data[k] = v
		}
		subject := renderTemplate(tmpl.Subject, data)
		body := renderTemplate(tmpl.Body, data)

		if n.emailEnabled && rcpt.Email != "" {
			if err := n.sendEmail(ctx, rcpt.Email, subject, body); err != nil {
				n.logger.Error("email send failed", map[string]interface{}{
					"event": string(event.Kind),
					"email": rcpt.Email,
					"error": err.Error(),
				})
				metrics.NotificationsDispatched.WithLabelValues(string(event.Kind), "email", "failed").Inc()
				if firstErr == nil {
					firstErr = err
				}
			} else {
				metrics.NotificationsDispatched.WithLabelValues(string(event.Kind), "email", "sent").Inc()
			}
		}

		// SMS only if: enabled AND phone exists AND priority is high
		if n.smsEnabled && rcpt.Phone != "" && event.Priority == PriorityHigh {
			if err := n.sendSMS(ctx, rcpt.Phone, body); err != nil {
				n.logger.Error("SMS send failed", map[string]interface{}{
					"event": string(event.Kind),
					"phone": rcpt.Phone,
					"error": err.Error(),
				})
				metrics.NotificationsDispatched.WithLabelValues(string(event.Kind), "sms", "failed").Inc()
				if firstErr == nil {
					firstErr = err
				}
			} else {
				metrics.NotificationsDispatched.WithLabelValues(string(event.Kind), "sms", "sent").Inc()
			}
		}
	}

	return firstErr
}

func (n *AWSNotifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
				Html: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.fromEmail),
	})
	return err
}

func (n *AWSNotifier) sendSMS(ctx context.Context, to, message string) error {
	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

// renderTemplate substitutes {{key}} placeholders and strips any that stay
// unresolved so a missing value never leaks braces into a message.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if i, ok := v.(int); ok {
			value = fmt.Sprintf("%d", i)
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}
