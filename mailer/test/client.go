package test

import (
	"context"
	"sync"

	"github.com/nephrawn/monitor-worker/mailer"
)

// MailerClient captures sent emails and can be primed to fail.
type MailerClient struct {
	mu      sync.Mutex
	sent    []mailer.Email
	SendErr error
}

var _ mailer.Client = &MailerClient{}

func NewTestMailerClient() *MailerClient {
	return &MailerClient{}
}

func (t *MailerClient) Send(ctx context.Context, email mailer.Email) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.SendErr != nil {
		return t.SendErr
	}
	t.sent = append(t.sent, email)
	return nil
}

func (t *MailerClient) Sent() []mailer.Email {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]mailer.Email, len(t.sent))
	copy(result, t.sent)
	return result
}
