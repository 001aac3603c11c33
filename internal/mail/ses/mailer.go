// Package ses sends statement notifications through Amazon SES.
package ses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/fr0stylo/ledgerlink/internal/app/ports"
)

// Config configures the sender.
type Config struct {
	From     string
	Region   string
	Endpoint string
}

type sendAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Mailer is a ports.Mailer that sends raw MIME messages.
type Mailer struct {
	client sendAPI
	from   string
	now    func() time.Time
	log    *slog.Logger
}

// New loads the default AWS credential chain and builds a mailer.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*Mailer, error) {
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("ses: sender address is required")
	}
	options := make([]func(*awsconfig.LoadOptions) error, 0, 1)
	if region := strings.TrimSpace(cfg.Region); region != "" {
		options = append(options, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return newMailer(client, cfg.From, log), nil
}

func newMailer(client sendAPI, from string, log *slog.Logger) *Mailer {
	if log == nil {
		log = slog.Default()
	}
	return &Mailer{
		client: client,
		from:   strings.TrimSpace(from),
		now:    time.Now,
		log:    log,
	}
}

// SendWithAttachments mails the statements inline as PDF attachments.
func (m *Mailer) SendWithAttachments(ctx context.Context, to, repID string, attachments []ports.Attachment) error {
	now := m.now()
	html, err := renderBody(bodyView{
		RepID: repID,
		Count: len(attachments),
		Date:  now.Format(time.DateOnly),
	})
	if err != nil {
		return err
	}
	return m.send(ctx, Message{
		From:        m.from,
		To:          to,
		Subject:     subject(now),
		HTML:        html,
		Date:        now,
		Attachments: attachments,
	})
}

// SendWithLinks mails expiring download links instead of attachments.
func (m *Mailer) SendWithLinks(ctx context.Context, to, repID string, links []ports.StatementLink) error {
	if len(links) == 0 {
		return errors.New("ses: no statement links to send")
	}
	now := m.now()
	views := make([]linkView, 0, len(links))
	for _, link := range links {
		views = append(views, linkView{URL: link.URL, Expiry: formatExpiry(link.ExpiresIn)})
	}
	html, err := renderBody(bodyView{
		RepID:      repID,
		Count:      len(links),
		Date:       now.Format(time.DateOnly),
		Links:      views,
		LinkExpiry: formatExpiry(links[0].ExpiresIn),
	})
	if err != nil {
		return err
	}
	return m.send(ctx, Message{
		From:    m.from,
		To:      to,
		Subject: subject(now),
		HTML:    html,
		Date:    now,
	})
}

func (m *Mailer) send(ctx context.Context, message Message) error {
	raw, err := message.Bytes()
	if err != nil {
		return fmt.Errorf("ses: build message: %w", err)
	}

	start := time.Now()
	output, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination:      &types.Destination{ToAddresses: []string{message.To}},
		Content:          &types.EmailContent{Raw: &types.RawMessage{Data: raw}},
	})
	if err != nil {
		return fmt.Errorf("ses: send email: %w", err)
	}
	m.log.InfoContext(ctx, "Statement email sent",
		"message_id", aws.ToString(output.MessageId),
		"attachments", len(message.Attachments),
		"bytes", len(raw),
		"duration", time.Since(start),
	)
	return nil
}

var _ ports.Mailer = (*Mailer)(nil)
