package mail

import "context"

// Attachment is an inline file payload, typically the user's resume.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one outgoing email, already fully composed.
type Message struct {
	To         string
	Subject    string
	Body       string
	HTML       bool
	Attachment *Attachment
}

// Gateway delivers a message to the provider. Implementations return the
// provider's message id on success. A Gateway makes exactly one delivery
// attempt per call; retry policy belongs to the caller.
type Gateway interface {
	Send(ctx context.Context, msg Message) (messageID string, err error)
}
