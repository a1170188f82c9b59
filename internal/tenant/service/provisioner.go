package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	idmodels "claimdesk/internal/identity/models"
	"claimdesk/internal/platform/tracing"
	"claimdesk/internal/tenant/models"
	"claimdesk/internal/tenant/store/partition"
	"claimdesk/internal/tenant/store/registration"
	tenantstore "claimdesk/internal/tenant/store/tenant"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/audit"
	"claimdesk/pkg/platform/sentinel"
	"claimdesk/pkg/requestcontext"
)

var tracer = tracing.Tracer("claimdesk/tenant")

// Provisioner turns registration requests into running tenants.
type Provisioner struct {
	tenants       TenantStore
	registrations RegistrationStore
	partitions    PartitionManager
	admins        AdminStore
	hasher        PasswordHasher
	cfg           *serviceConfig
}

// Provisioned is the outcome of an approval.
type Provisioned struct {
	Tenant *models.Tenant
	Domain *models.Domain
}

func NewProvisioner(
	tenants TenantStore,
	registrations RegistrationStore,
	partitions PartitionManager,
	admins AdminStore,
	hasher PasswordHasher,
	opts ...Option,
) *Provisioner {
	return &Provisioner{
		tenants:       tenants,
		registrations: registrations,
		partitions:    partitions,
		admins:        admins,
		hasher:        hasher,
		cfg:           newConfig(opts),
	}
}

// SubmitRegistration stores a pending request. The requested hostname is
// checked against routed domains and open requests under one lock, so two
// submissions for the same hostname cannot both succeed.
func (p *Provisioner) SubmitRegistration(ctx context.Context, req *models.SubmitRegistrationRequest) (*models.RegistrationRequest, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	hash, err := p.hasher.Hash(req.AdminPassword)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "admin_password cannot be used")
	}
	reg := req.ToRegistration(p.cfg.domainSuffix, hash, requestcontext.Now(ctx))
	host := reg.RequestedDomain
	conflict := dErrors.Newf(dErrors.CodeDomainConflict, "domain %s is already taken", host)

	err = p.cfg.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := p.registrations.LockDomain(txCtx, host); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock domain")
		}
		taken, err := p.tenants.DomainExists(txCtx, host)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check domain")
		}
		if taken {
			return conflict
		}
		pending, err := p.registrations.DomainPending(txCtx, host)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check domain")
		}
		if pending {
			return conflict
		}
		nameTaken, err := p.tenants.NameExists(txCtx, reg.CompanyName)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check company name")
		}
		if nameTaken {
			return dErrors.New(dErrors.CodeConflict, "company name is already registered")
		}
		if err := p.registrations.Create(txCtx, reg); err != nil {
			if errors.Is(err, registration.ErrDomainPending) {
				return conflict
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store registration request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.cfg.emit(ctx, audit.Event{
		Action:  string(audit.EventRegistrationSubmitted),
		Subject: fmt.Sprintf("registration:%d", reg.ID),
		Reason:  host,
	})
	p.cfg.notify(ctx, reg.ContactEmail, "Registration received",
		fmt.Sprintf("Your registration for %s was received and is awaiting review.", reg.CompanyName))
	return reg, nil
}

// ListRegistrations returns the open requests, oldest first.
func (p *Provisioner) ListRegistrations(ctx context.Context) ([]*models.RegistrationRequest, error) {
	regs, err := p.registrations.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registration requests")
	}
	return regs, nil
}

// RejectRegistration discards a request.
func (p *Provisioner) RejectRegistration(ctx context.Context, regID id.RegistrationID) error {
	reg, err := p.registrations.FindByID(ctx, regID)
	if err != nil {
		return wrapRegistrationErr(err)
	}
	if err := p.registrations.Delete(ctx, regID); err != nil {
		return wrapRegistrationErr(err)
	}
	if p.cfg.metrics != nil {
		p.cfg.metrics.IncrementRejected()
	}
	p.cfg.emit(ctx, audit.Event{
		Action:  string(audit.EventRegistrationRejected),
		ActorID: requestcontext.UserID(ctx),
		Subject: fmt.Sprintf("registration:%d", regID),
		Reason:  reg.RequestedDomain,
	})
	p.cfg.notify(ctx, reg.ContactEmail, "Registration declined",
		fmt.Sprintf("Your registration for %s was not approved.", reg.CompanyName))
	return nil
}

// ApproveRegistration provisions the tenant described by a pending request:
// tenant row and primary domain, partition, admin user, activation, and
// finally removal of the request. A failing step undoes the earlier ones in
// reverse order and leaves the request pending.
func (p *Provisioner) ApproveRegistration(ctx context.Context, regID id.RegistrationID) (*Provisioned, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "tenant.ApproveRegistration")
	defer span.End()
	span.SetAttributes(attribute.Int64("registration.id", int64(regID)))

	result, err := p.approve(ctx, regID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
		return nil, err
	}
	if p.cfg.metrics != nil {
		p.cfg.metrics.ObserveApprove(start)
		p.cfg.metrics.IncrementProvisioned()
	}
	span.SetAttributes(attribute.String("tenant.partition", result.Tenant.Schema))
	return result, nil
}

func (p *Provisioner) approve(ctx context.Context, regID id.RegistrationID) (*Provisioned, error) {
	now := requestcontext.Now(ctx)
	reg, err := p.registrations.BeginApproval(ctx, regID, now)
	if err != nil {
		return nil, wrapRegistrationErr(err)
	}

	// Compensation runs even when the caller's context is cancelled.
	undo := &compensator{ctx: context.WithoutCancel(ctx), p: p}
	undo.push("reset_request", func(ctx context.Context) error {
		return p.registrations.ResetToPending(ctx, regID)
	})

	tenant, domain, err := p.allocate(ctx, reg, now, undo)
	if err != nil {
		undo.run()
		return nil, p.failed(ctx, reg, "allocate", err)
	}

	admin, err := idmodels.NewUser(idmodels.NewUserParams{
		Email:        reg.AdminEmail,
		Username:     reg.AdminUsername,
		Phone:        reg.AdminPhone,
		FirstName:    reg.AdminFirstName,
		LastName:     reg.AdminLastName,
		PasswordHash: reg.AdminPasswordHash,
		Role:         idmodels.RoleAdmin,
		Scope:        idmodels.ScopeTenant,
		TenantID:     tenant.ID,
	}, now)
	if err == nil {
		err = p.admins.Create(ctx, tenant.Partition(), admin)
	}
	if err != nil {
		undo.run()
		return nil, p.failed(ctx, reg, "create_admin", dErrors.Wrap(err, dErrors.CodeProvisioningFailed, "failed to create tenant admin"))
	}

	if err := p.tenants.Activate(ctx, tenant.ID); err != nil {
		undo.run()
		return nil, p.failed(ctx, reg, "activate", dErrors.Wrap(err, dErrors.CodeProvisioningFailed, "failed to activate tenant"))
	}
	tenant.ApplyActivation()

	if err := p.registrations.Delete(ctx, regID); err != nil {
		undo.run()
		return nil, p.failed(ctx, reg, "remove_request", dErrors.Wrap(err, dErrors.CodeProvisioningFailed, "failed to remove registration request"))
	}

	if err := p.uncache(ctx, domain.Hostname); err != nil && p.cfg.logger != nil {
		p.cfg.logger.WarnContext(ctx, "failed to invalidate cached domain", "host", domain.Hostname, "error", err)
	}
	p.cfg.emit(ctx, audit.Event{
		Action:   string(audit.EventTenantProvisioned),
		ActorID:  requestcontext.UserID(ctx),
		TenantID: tenant.ID,
		Subject:  tenant.Schema,
		Reason:   domain.Hostname,
	})
	p.cfg.notify(ctx, reg.AdminEmail, "Your workspace is ready",
		fmt.Sprintf("%s is live at %s. Sign in with the credentials you registered.", tenant.Name, domain.Hostname))
	return &Provisioned{Tenant: tenant, Domain: domain}, nil
}

// allocate inserts the tenant and its domain and creates the partition.
// The first candidate is derived from the company name; later ones are
// randomized. Only partition id and code collisions are retried.
func (p *Provisioner) allocate(ctx context.Context, reg *models.RegistrationRequest, now time.Time, undo *compensator) (*models.Tenant, *models.Domain, error) {
	for attempt := 0; attempt < p.cfg.maxAttempts; attempt++ {
		schema := models.DerivePartitionID(reg.CompanyName, p.cfg.rand)
		if attempt > 0 {
			schema = models.RandomizedPartitionID(reg.CompanyName, p.cfg.rand)
		}
		if id.ReservedSchemaName(schema) {
			p.collision()
			continue
		}
		code := models.GenerateTenantCode(reg.CompanyName, p.cfg.rand)

		tenant, err := models.NewProvisioningTenant(reg, schema, code, now)
		if err != nil {
			return nil, nil, dErrors.Wrap(err, dErrors.CodeProvisioningFailed, "registration request is not provisionable")
		}
		domain := &models.Domain{Hostname: reg.RequestedDomain, TenantID: tenant.ID, IsPrimary: true}

		err = p.tenants.CreateWithDomain(ctx, tenant, domain)
		switch {
		case errors.Is(err, tenantstore.ErrPartitionTaken), errors.Is(err, tenantstore.ErrCodeTaken):
			p.collision()
			continue
		case errors.Is(err, tenantstore.ErrDomainTaken):
			return nil, nil, dErrors.Newf(dErrors.CodeDomainConflict, "domain %s is already taken", domain.Hostname)
		case errors.Is(err, tenantstore.ErrNameTaken):
			return nil, nil, dErrors.New(dErrors.CodeConflict, "company name is already registered")
		case err != nil:
			return nil, nil, dErrors.Wrap(err, dErrors.CodeProvisioningFailed, "failed to create tenant")
		}

		if err := p.partitions.Create(ctx, schema); err != nil {
			if delErr := p.tenants.Delete(undo.ctx, tenant.ID); delErr != nil {
				p.compensationFailed(ctx, "delete_tenant", delErr)
			}
			if errors.Is(err, partition.ErrExists) {
				p.collision()
				continue
			}
			return nil, nil, dErrors.Wrap(err, dErrors.CodeProvisioningFailed, "failed to create partition")
		}

		// Runs after the tenant row is gone so a concurrent lookup cannot
		// re-cache the host.
		undo.push("uncache_domain", func(ctx context.Context) error {
			return p.uncache(ctx, domain.Hostname)
		})
		undo.push("delete_tenant", func(ctx context.Context) error {
			return p.tenants.Delete(ctx, tenant.ID)
		})
		undo.push("drop_partition", func(ctx context.Context) error {
			return p.partitions.Drop(ctx, schema)
		})
		return tenant, domain, nil
	}
	return nil, nil, dErrors.Newf(dErrors.CodeProvisioningFailed,
		"could not allocate a unique partition id after %d attempts", p.cfg.maxAttempts)
}

// ReclaimAbandoned removes tenants left in provisioning by an approval that
// never finished and returns their requests to pending. It reports how many
// tenants it removed.
func (p *Provisioner) ReclaimAbandoned(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := p.tenants.ListStale(ctx, cutoff)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list abandoned tenants")
	}
	reclaimed := 0
	for _, t := range stale {
		if err := p.partitions.Drop(ctx, t.Schema); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return reclaimed, dErrors.Wrap(err, dErrors.CodeInternal, "failed to drop abandoned partition")
		}
		if err := p.tenants.Delete(ctx, t.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return reclaimed, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete abandoned tenant")
		}
		reclaimed++
		p.cfg.emit(ctx, audit.Event{
			Action:   string(audit.EventTenantReclaimed),
			TenantID: t.ID,
			Subject:  t.Schema,
		})
	}
	if _, err := p.registrations.ResetStale(ctx, cutoff); err != nil {
		return reclaimed, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset stale registration requests")
	}
	return reclaimed, nil
}

func (p *Provisioner) failed(ctx context.Context, reg *models.RegistrationRequest, step string, err error) error {
	if p.cfg.metrics != nil {
		p.cfg.metrics.IncrementFailure(step)
	}
	if p.cfg.logger != nil {
		p.cfg.logger.ErrorContext(ctx, "tenant provisioning failed",
			"registration_id", int64(reg.ID), "step", step, "error", err)
	}
	p.cfg.emit(ctx, audit.Event{
		Action:  string(audit.EventProvisioningFailed),
		ActorID: requestcontext.UserID(ctx),
		Subject: fmt.Sprintf("registration:%d", reg.ID),
		Reason:  step,
	})
	return err
}

func (p *Provisioner) collision() {
	if p.cfg.metrics != nil {
		p.cfg.metrics.IncrementCollision()
	}
}

func (p *Provisioner) compensationFailed(ctx context.Context, action string, err error) {
	if p.cfg.logger != nil {
		p.cfg.logger.ErrorContext(ctx, "provisioning compensation failed", "action", action, "error", err)
	}
}

// uncache drops a cached host mapping. The tenant becomes resolvable at
// activation, so any later failure must clear it too.
func (p *Provisioner) uncache(ctx context.Context, host string) error {
	if p.cfg.cache == nil {
		return nil
	}
	return p.cfg.cache.Invalidate(ctx, models.NormalizeHost(host))
}

// compensator records undo steps and runs them newest first.
type compensator struct {
	ctx   context.Context
	p     *Provisioner
	steps []compensation
}

type compensation struct {
	name string
	fn   func(context.Context) error
}

func (c *compensator) push(name string, fn func(context.Context) error) {
	c.steps = append(c.steps, compensation{name: name, fn: fn})
}

func (c *compensator) run() {
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if c.p.cfg.metrics != nil {
			c.p.cfg.metrics.IncrementCompensation(step.name)
		}
		if err := step.fn(c.ctx); err != nil {
			c.p.compensationFailed(c.ctx, step.name, err)
		}
	}
}

func wrapRegistrationErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "registration request not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "registration request is already being approved")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration request")
}
