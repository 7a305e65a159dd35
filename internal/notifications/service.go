// Package notifications delivers finished reports over a webhook and/or
// email. Both channels are optional; an unconfigured service is a no-op.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/painscout/painscout/internal/config"
	"github.com/painscout/painscout/internal/models"
)

// Service sends report notifications.
type Service struct {
	cfg    *config.Config
	client *resty.Client
}

// NewService creates the notification service.
func NewService(cfg *config.Config) *Service {
	return &Service{
		cfg: cfg,
		client: resty.New().
			SetTimeout(15 * time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

type webhookPayload struct {
	ReportID   string `json:"report_id"`
	UserID     string `json:"user_id"`
	ReportType string `json:"report_type"`
	CreatedAt  string `json:"created_at"`
	Markdown   string `json:"markdown"`
}

// DeliverReport pushes the report to the configured channels. Each channel
// failure is reported but does not stop the other channel.
func (s *Service) DeliverReport(ctx context.Context, report *models.Report) error {
	var firstErr error

	if s.cfg.ReportWebhookURL != "" {
		if err := s.sendWebhook(ctx, report); err != nil {
			logrus.Errorf("Webhook delivery failed: %v", err)
			firstErr = err
		}
	}
	if s.cfg.NotificationEmail != "" {
		if err := s.sendEmail(report); err != nil {
			logrus.Errorf("Email delivery failed: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Service) sendWebhook(ctx context.Context, report *models.Report) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{
			ReportID:   report.ID,
			UserID:     report.UserID,
			ReportType: string(report.ReportType),
			CreatedAt:  report.CreatedAt.Format(time.RFC3339),
			Markdown:   report.Markdown,
		}).
		Post(s.cfg.ReportWebhookURL)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	logrus.Debugf("Delivered report %s to webhook", report.ID)
	return nil
}

func (s *Service) sendEmail(report *models.Report) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.SMTPUsername)
	m.SetHeader("To", s.cfg.NotificationEmail)
	m.SetHeader("Subject", fmt.Sprintf("New %s report %s", report.ReportType, report.ID))
	m.SetBody("text/plain", report.Markdown)

	d := gomail.NewDialer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUsername, s.cfg.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	logrus.Debugf("Emailed report %s to %s", report.ID, s.cfg.NotificationEmail)
	return nil
}
