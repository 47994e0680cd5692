// Package mail delivers verification e-mails.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"cycletracker/internal/domain"
)

const verificationSubject = "Confirm your e-mail address"

var _ domain.Mailer = (*SESMailer)(nil)
var _ domain.Mailer = (*LogMailer)(nil)

func verificationBody(name, link string) string {
	return fmt.Sprintf("Hi %s,\n\nplease confirm your e-mail address by opening the link below:\n\n%s\n\nIf you did not create an account you can ignore this message.\n", name, link)
}

// SESAPI is the subset of the SES client used by SESMailer.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends e-mail through Amazon SES.
type SESMailer struct {
	client SESAPI
	from   string
}

// NewSESMailer wraps an SES client. from is the verified sender address.
func NewSESMailer(client SESAPI, from string) *SESMailer {
	return &SESMailer{client: client, from: from}
}

// NewSESMailerFromEnv builds an SES client from the default AWS credential chain.
func NewSESMailerFromEnv(ctx context.Context, region, from string) (*SESMailer, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSESMailer(ses.NewFromConfig(cfg), from), nil
}

// SendVerification sends the verification link to the account owner.
func (m *SESMailer) SendVerification(ctx context.Context, to, name, link string) error {
	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(verificationSubject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(verificationBody(name, link)),
				},
			},
		},
		Source: aws.String(m.from),
	}
	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send to %s: %w", to, err)
	}
	return nil
}

// LogMailer writes verification links to the log instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// SendVerification logs the link.
func (m *LogMailer) SendVerification(ctx context.Context, to, name, link string) error {
	m.logger.InfoContext(ctx, "verification email", "to", to, "name", name, "link", link)
	return nil
}
