package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	goLinkAuth "github.com/MrEthical07/goLinkAuth"
)

// ResendMailer delivers through the Resend HTTP API.
type ResendMailer struct {
	client *resend.Client
}

func NewResendMailer(apiKey string) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey)}
}

func (m *ResendMailer) Send(ctx context.Context, msg goLinkAuth.Message) error {
	_, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
		Html:    msg.HTML,
		Tags:    []resend.Tag{{Name: "kind", Value: msg.Kind.String()}},
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}
