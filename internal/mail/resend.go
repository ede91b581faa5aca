package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// ResendGateway delivers mail through the Resend API.
type ResendGateway struct {
	client *resend.Client
	from   string
}

func NewResendGateway(apiKey, from string) *ResendGateway {
	return &ResendGateway{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (g *ResendGateway) Send(ctx context.Context, msg Message) (string, error) {
	params := &resend.SendEmailRequest{
		From:    g.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
	}
	if msg.HTML {
		params.Html = msg.Body
	} else {
		params.Text = msg.Body
	}
	if att := msg.Attachment; att != nil {
		params.Attachments = []*resend.Attachment{{
			Filename:    att.Filename,
			Content:     att.Content,
			ContentType: att.ContentType,
		}}
	}

	sent, err := g.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("resend send: %w", err)
	}
	return sent.Id, nil
}
