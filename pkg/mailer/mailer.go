package mailer

import (
	"context"
	"fmt"

	"github.com/mailjet/mailjet-apiv3-go"
	"github.com/sirupsen/logrus"
)

// Message is a single transactional email
type Message struct {
	ToEmail  string
	ToName   string
	Subject  string
	HTML     string
	Text     string
	CustomID string
}

// Sender delivers transactional email
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// MailjetSender sends mail through the Mailjet v3.1 send API
type MailjetSender struct {
	client    *mailjet.Client
	fromEmail string
	fromName  string
	logger    *logrus.Logger
}

// NewMailjetSender creates a Mailjet-backed Sender
func NewMailjetSender(publicKey, privateKey, fromEmail, fromName string, logger *logrus.Logger) *MailjetSender {
	return &MailjetSender{
		client:    mailjet.NewMailjetClient(publicKey, privateKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		logger:    logger,
	}
}

// Send delivers msg. The Mailjet client has no context support, so ctx is
// only checked before the call.
func (s *MailjetSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	messages := mailjet.MessagesV31{
		Info: []mailjet.InfoMessagesV31{
			{
				From: &mailjet.RecipientV31{
					Email: s.fromEmail,
					Name:  s.fromName,
				},
				To: &mailjet.RecipientsV31{
					mailjet.RecipientV31{
						Email: msg.ToEmail,
						Name:  msg.ToName,
					},
				},
				Subject:  msg.Subject,
				TextPart: msg.Text,
				HTMLPart: msg.HTML,
				CustomID: msg.CustomID,
			},
		},
	}

	res, err := s.client.SendMailV31(&messages)
	if err != nil {
		return fmt.Errorf("mailjet send failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"to":        msg.ToEmail,
		"subject":   msg.Subject,
		"custom_id": msg.CustomID,
		"results":   len(res.ResultsV31),
	}).Info("Email sent via Mailjet")

	return nil
}

// LogSender writes emails to the log instead of sending them (development mode)
type LogSender struct {
	logger *logrus.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs msg
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.WithFields(logrus.Fields{
		"to":        msg.ToEmail,
		"subject":   msg.Subject,
		"custom_id": msg.CustomID,
	}).Info("DEV MODE: email logged, not sent")
	return nil
}
