// Package publisher fans audit events out to a Store and the structured log.
//
// In sync mode Emit returns after the store write. With WithAsyncBuffer,
// Emit enqueues and a single worker drains the queue; Close drains what is
// left before returning.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	id "claimdesk/pkg/domain"
	audit "claimdesk/pkg/platform/audit"
	"claimdesk/pkg/platform/middleware/metadata"
	"claimdesk/pkg/requestcontext"
)

// ErrBufferFull is returned by Emit when the async queue has no room.
var ErrBufferFull = errors.New("audit buffer full")

type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	queue chan audit.Event
	wg    sync.WaitGroup
	once  sync.Once
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAsyncBuffer makes Emit non-blocking with a queue of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.queue = make(chan audit.Event, n)
		}
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	p.log(ctx, event)

	if p.queue == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// List returns the events recorded for a tenant.
func (p *Publisher) List(ctx context.Context, tenantID id.TenantID) ([]audit.Event, error) {
	return p.store.ListByTenant(ctx, tenantID)
}

// Close stops the async worker after draining queued events.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.queue != nil {
			close(p.queue)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.queue {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event", "action", event.Action, "error", err)
		}
	}
}

func (p *Publisher) log(ctx context.Context, event audit.Event) {
	if p.logger == nil {
		return
	}
	attrs := []any{
		"log_type", "audit",
		"category", string(event.Category),
		"subject", event.Subject,
		"request_id", event.RequestID,
	}
	if !event.ActorID.IsNil() {
		attrs = append(attrs, "actor_id", event.ActorID.String())
	}
	if !event.TenantID.IsNil() {
		attrs = append(attrs, "tenant_id", event.TenantID.String())
	}
	if event.Reason != "" {
		attrs = append(attrs, "reason", event.Reason)
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		attrs = append(attrs,
			"client_ip", ip,
			"device", metadata.DeviceSummary(requestcontext.UserAgent(ctx)),
		)
	}
	p.logger.InfoContext(ctx, event.Action, attrs...)
}
