// Package notify delivers short notifications to staff and tenant
// contacts. Callers treat delivery as best-effort.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"claimdesk/pkg/email"
	"claimdesk/pkg/requestcontext"
)

// Message is the payload every notifier delivers.
type Message struct {
	To        string    `json:"to"`
	Greeting  string    `json:"greeting"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	RequestID string    `json:"request_id,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

func newMessage(ctx context.Context, to, subject, body string) Message {
	return Message{
		To:        to,
		Greeting:  "Hi " + email.DisplayName(to) + ",",
		Subject:   subject,
		Body:      body,
		RequestID: requestcontext.RequestID(ctx),
		SentAt:    requestcontext.Now(ctx),
	}
}

// LogNotifier writes notifications to the log. Used in development and
// when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, to, subject, body string) error {
	msg := newMessage(ctx, to, subject, body)
	n.logger.InfoContext(ctx, "notification",
		"log_type", "notification",
		"to", msg.To,
		"subject", msg.Subject,
		"greeting", msg.Greeting,
		"body", msg.Body,
		"request_id", msg.RequestID,
	)
	return nil
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// KafkaNotifier publishes notifications as JSON records keyed by recipient,
// for a mailer to consume.
type KafkaNotifier struct {
	publisher Publisher
	topic     string
}

func NewKafkaNotifier(publisher Publisher, topic string) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, to, subject, body string) error {
	value, err := json.Marshal(newMessage(ctx, to, subject, body))
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return n.publisher.Publish(ctx, n.topic, []byte(to), value)
}
