// Package outbound delivers feedback messages to exercise participants.
package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message is one outbound feedback message
type Message struct {
	ID      string    `json:"id"`
	RunID   string    `json:"run_id,omitempty"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Date    time.Time `json:"date"`
}

// NewMessage builds a message with a fresh id, dated now
func NewMessage(from, to, subject, body string) Message {
	return Message{
		ID:      uuid.NewString(),
		From:    from,
		To:      to,
		Subject: subject,
		Body:    body,
		Date:    time.Now().UTC(),
	}
}

// Sender delivers messages. Delivery is best effort: a failed send is
// reported to the caller and never retried here.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Multi fans a message out to every sender and returns the first error
type Multi []Sender

// Send delivers m to all senders, continuing past failures
func (s Multi) Send(ctx context.Context, m Message) error {
	var first error
	for _, sender := range s {
		if err := sender.Send(ctx, m); err != nil && first == nil {
			first = err
		}
	}
	return first
}
