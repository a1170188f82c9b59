package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"claimdesk/internal/tenant/models"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/sentinel"
)

// Registry maps request hostnames to tenant partitions.
type Registry struct {
	tenants TenantStore
	cfg     *serviceConfig
	group   singleflight.Group
}

func NewRegistry(tenants TenantStore, opts ...Option) *Registry {
	return &Registry{tenants: tenants, cfg: newConfig(opts)}
}

// Resolve returns the partition of the active tenant that owns host.
// Concurrent lookups of one host share a single store query.
func (r *Registry) Resolve(ctx context.Context, host string) (id.Partition, error) {
	if r.cfg.metrics != nil {
		defer r.cfg.metrics.ObserveResolve(time.Now())
	}
	host = models.NormalizeHost(host)
	if host == "" {
		return id.Partition{}, dErrors.New(dErrors.CodeUnknownTenant, "no tenant serves this host")
	}

	if p, ok := r.fromCache(ctx, host); ok {
		return p, nil
	}

	v, err, _ := r.group.Do(host, func() (any, error) {
		t, err := r.tenants.FindActiveByHost(ctx, host)
		if err != nil {
			return nil, err
		}
		p := t.Partition()
		if r.cfg.cache != nil {
			if err := r.cfg.cache.Set(ctx, host, p); err != nil && r.cfg.logger != nil {
				r.cfg.logger.WarnContext(ctx, "failed to cache domain", "host", host, "error", err)
			}
		}
		return p, nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.Partition{}, dErrors.Newf(dErrors.CodeUnknownTenant, "no tenant serves host %s", host)
		}
		return id.Partition{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve tenant")
	}
	return v.(id.Partition), nil
}

func (r *Registry) fromCache(ctx context.Context, host string) (id.Partition, bool) {
	if r.cfg.cache == nil {
		return id.Partition{}, false
	}
	p, ok, err := r.cfg.cache.Get(ctx, host)
	switch {
	case err != nil:
		r.record("error")
		if r.cfg.logger != nil {
			r.cfg.logger.WarnContext(ctx, "domain cache unavailable", "host", host, "error", err)
		}
		return id.Partition{}, false
	case ok:
		r.record("hit")
		return p, true
	}
	r.record("miss")
	return id.Partition{}, false
}

func (r *Registry) record(result string) {
	if r.cfg.metrics != nil {
		r.cfg.metrics.RecordCache(result)
	}
}

// ValidateTenantRef rejects a caller-supplied tenant id that differs from
// the partition resolved for the request.
func (r *Registry) ValidateTenantRef(p id.Partition, supplied id.TenantID) error {
	if supplied.IsNil() || supplied == p.TenantID {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "tenant does not match the request host")
}
