package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/aegisauth/aegis/internal/models"
)

// Notifier delivers escalation-worthy findings to an operator-visible
// channel. Injected so the core never depends on a delivery mechanism;
// use NoopNotifier when none is configured.
type Notifier interface {
	NotifyCriticalEvent(ctx context.Context, event *models.SecurityEvent) error
	NotifyAlert(ctx context.Context, alert *models.SecurityAlert) error
}

// NoopNotifier is the default Notifier; it drops everything.
type NoopNotifier struct{}

func (NoopNotifier) NotifyCriticalEvent(ctx context.Context, event *models.SecurityEvent) error {
	return nil
}

func (NoopNotifier) NotifyAlert(ctx context.Context, alert *models.SecurityAlert) error {
	return nil
}

// SESNotifier emails the operator address through AWS SES.
type SESNotifier struct {
	sesClient   *ses.Client
	fromAddress string
	toAddress   string
	logger      *slog.Logger
}

// NewSESNotifier creates a new SES-backed notifier
func NewSESNotifier(region, fromAddress, toAddress string, logger *slog.Logger) (*SESNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESNotifier{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		toAddress:   toAddress,
		logger:      logger,
	}, nil
}

// NotifyCriticalEvent emails the operator about a critical security event
func (n *SESNotifier) NotifyCriticalEvent(ctx context.Context, event *models.SecurityEvent) error {
	subject := fmt.Sprintf("[security] critical event: %s", event.EventType)
	body := fmt.Sprintf(
		"A critical security event was recorded.\n\nType: %s\nIP: %s\nDescription: %s\nRecorded: %s\nEvent ID: %s\n",
		event.EventType, event.IPAddress, event.Description,
		event.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"), event.ID,
	)

	return n.send(ctx, subject, body)
}

// NotifyAlert emails the operator about a raised security alert
func (n *SESNotifier) NotifyAlert(ctx context.Context, alert *models.SecurityAlert) error {
	subject := fmt.Sprintf("[security] %s alert: %s", alert.Severity, alert.AlertType)

	ip := "n/a"
	if alert.IPAddress != nil {
		ip = *alert.IPAddress
	}

	body := fmt.Sprintf(
		"A security alert was raised.\n\nType: %s\nSeverity: %s\nTitle: %s\nIP: %s\n\n%s\n\nAlert ID: %s\n",
		alert.AlertType, alert.Severity, alert.Title, ip, alert.Description, alert.ID,
	)

	return n.send(ctx, subject, body)
}

func (n *SESNotifier) send(ctx context.Context, subject, body string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{n.toAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := n.sesClient.SendEmail(ctx, input); err != nil {
		n.logger.Error("failed to send operator notification", slog.Any("error", err))
		return fmt.Errorf("failed to send notification: %w", err)
	}

	return nil
}
