// Package mail delivers outgoing notifications. The account service only
// needs fire-and-forget delivery, so every transport implements Sender.
package mail

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/config"
	"gopkg.in/gomail.v2"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// render builds the RFC 5322 form shared by SMTP and the S3 outbox.
func render(from string, msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return m
}

// New returns the Sender selected by cfg.MailTransport.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (Sender, error) {
	switch cfg.MailTransport {
	case config.MailTransportLog, "":
		return NewLogSender(logger), nil
	case config.MailTransportSMTP:
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom), nil
	case config.MailTransportS3:
		return NewS3OutboxSender(ctx, S3Options{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			BaseEndpoint: cfg.S3BaseEndpoint,
			Bucket:       cfg.S3Bucket,
		}, cfg.MailFrom)
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
	}
}
