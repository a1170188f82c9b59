// Package service resolves hostnames to tenant partitions and provisions new
// tenants from approved registration requests.
package service

import (
	"context"
	"log/slog"
	"time"

	idmodels "claimdesk/internal/identity/models"
	tenantmetrics "claimdesk/internal/tenant/metrics"
	"claimdesk/internal/tenant/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/audit"
	"claimdesk/pkg/platform/tx"
	"claimdesk/pkg/requestcontext"
)

type TenantStore interface {
	CreateWithDomain(ctx context.Context, t *models.Tenant, d *models.Domain) error
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	FindActiveByHost(ctx context.Context, host string) (*models.Tenant, error)
	DomainExists(ctx context.Context, host string) (bool, error)
	NameExists(ctx context.Context, name string) (bool, error)
	Activate(ctx context.Context, tenantID id.TenantID) error
	Delete(ctx context.Context, tenantID id.TenantID) error
	ListStale(ctx context.Context, cutoff time.Time) ([]*models.Tenant, error)
}

type RegistrationStore interface {
	LockDomain(ctx context.Context, host string) error
	Create(ctx context.Context, r *models.RegistrationRequest) error
	FindByID(ctx context.Context, regID id.RegistrationID) (*models.RegistrationRequest, error)
	DomainPending(ctx context.Context, host string) (bool, error)
	List(ctx context.Context) ([]*models.RegistrationRequest, error)
	BeginApproval(ctx context.Context, regID id.RegistrationID, now time.Time) (*models.RegistrationRequest, error)
	ResetToPending(ctx context.Context, regID id.RegistrationID) error
	Delete(ctx context.Context, regID id.RegistrationID) error
	ResetStale(ctx context.Context, cutoff time.Time) (int, error)
}

// PartitionManager creates and drops the storage of one tenant.
type PartitionManager interface {
	Create(ctx context.Context, schema string) error
	Drop(ctx context.Context, schema string) error
}

// AdminStore writes the first user of a freshly created partition.
type AdminStore interface {
	Create(ctx context.Context, p id.Partition, u *idmodels.User) error
}

type DomainCache interface {
	Get(ctx context.Context, host string) (id.Partition, bool, error)
	Set(ctx context.Context, host string, p id.Partition) error
	Invalidate(ctx context.Context, host string) error
}

type PasswordHasher interface {
	Hash(secret string) (string, error)
}

// Notifier delivers best-effort messages; failures are logged only.
type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type serviceConfig struct {
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *tenantmetrics.Metrics
	tx             tx.Runner
	cache          DomainCache
	notifier       Notifier
	rand           models.RandSource
	domainSuffix   string
	maxAttempts    int
}

type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(c *serviceConfig) {
		c.auditPublisher = publisher
	}
}

func WithMetrics(m *tenantmetrics.Metrics) Option {
	return func(c *serviceConfig) {
		c.metrics = m
	}
}

// WithTxRunner sets the runner that makes registration submission atomic.
func WithTxRunner(runner tx.Runner) Option {
	return func(c *serviceConfig) {
		c.tx = runner
	}
}

func WithDomainCache(cache DomainCache) Option {
	return func(c *serviceConfig) {
		c.cache = cache
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *serviceConfig) {
		c.notifier = n
	}
}

// WithRand replaces the source used for partition ids and tenant codes.
func WithRand(r models.RandSource) Option {
	return func(c *serviceConfig) {
		c.rand = r
	}
}

// WithDomainSuffix sets the suffix appended to requested domains.
func WithDomainSuffix(suffix string) Option {
	return func(c *serviceConfig) {
		c.domainSuffix = suffix
	}
}

// WithMaxAttempts bounds partition id allocation during approval.
func WithMaxAttempts(n int) Option {
	return func(c *serviceConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

const (
	defaultDomainSuffix = ".localhost"
	defaultMaxAttempts  = 3
)

func newConfig(opts []Option) *serviceConfig {
	cfg := &serviceConfig{
		rand:         models.DefaultRand{},
		domainSuffix: defaultDomainSuffix,
		maxAttempts:  defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.tx == nil {
		cfg.tx = tx.NewLockRunner()
	}
	return cfg
}

// emit publishes best-effort; audit failures are logged, never returned.
func (c *serviceConfig) emit(ctx context.Context, event audit.Event) {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if c.auditPublisher == nil {
		if c.logger != nil {
			c.logger.InfoContext(ctx, event.Action,
				"log_type", "audit",
				"request_id", event.RequestID,
				"tenant_id", event.TenantID.String(),
				"subject", event.Subject,
				"reason", event.Reason,
			)
		}
		return
	}
	if err := c.auditPublisher.Emit(ctx, event); err != nil && c.logger != nil {
		c.logger.ErrorContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}

func (c *serviceConfig) notify(ctx context.Context, to, subject, body string) {
	if c.notifier == nil || to == "" {
		return
	}
	if err := c.notifier.Notify(ctx, to, subject, body); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "notification failed", "subject", subject, "error", err)
	}
}
