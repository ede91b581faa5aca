package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// SMTPGateway delivers mail over plain SMTP via gomail. Each Send dials a
// fresh connection; the dispatcher's volume is low enough that connection
// reuse is not worth the bookkeeping.
type SMTPGateway struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPGateway(host string, port int, username, password, from string) *SMTPGateway {
	return &SMTPGateway{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (g *SMTPGateway) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", g.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.HTML {
		m.SetBody("text/html", msg.Body)
	} else {
		m.SetBody("text/plain", msg.Body)
	}
	if att := msg.Attachment; att != nil {
		m.Attach(att.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := io.Copy(w, bytes.NewReader(att.Content))
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {att.ContentType}}),
		)
	}

	if err := g.dialer.DialAndSend(m); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}

	// SMTP gives us no provider id; synthesize one so SENT rows always
	// carry a message id.
	return uuid.NewString(), nil
}
