// Package service manages the policies of a tenant.
package service

import (
	"context"
	"errors"
	"log/slog"

	"claimdesk/internal/access"
	claimmodels "claimdesk/internal/claims/models"
	"claimdesk/internal/policies/models"
	policystore "claimdesk/internal/policies/store/policy"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/audit"
	"claimdesk/pkg/platform/sentinel"
	"claimdesk/pkg/requestcontext"
)

type PolicyStore interface {
	Create(ctx context.Context, p id.Partition, pol *models.Policy) error
	FindByID(ctx context.Context, p id.Partition, policyID id.PolicyID) (*models.Policy, error)
	List(ctx context.Context, p id.Partition) ([]*models.Policy, error)
	Update(ctx context.Context, p id.Partition, pol *models.Policy) error
	Delete(ctx context.Context, p id.Partition, policyID id.PolicyID) error
}

// ClaimLister reports the claims filed against a policy.
type ClaimLister interface {
	ListByPolicy(ctx context.Context, p id.Partition, policyID id.PolicyID) ([]*claimmodels.Claim, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const defaultNumberAttempts = 5

type Service struct {
	policies       PolicyStore
	claims         ClaimLister
	logger         *slog.Logger
	auditPublisher AuditPublisher
	rand           models.RandSource
	maxAttempts    int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithRand(r models.RandSource) Option {
	return func(s *Service) { s.rand = r }
}

// WithNumberAttempts bounds policy number generation.
func WithNumberAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func New(policies PolicyStore, claims ClaimLister, opts ...Option) *Service {
	s := &Service{
		policies:    policies,
		claims:      claims,
		rand:        claimmodels.DefaultRand{},
		maxAttempts: defaultNumberAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePolicy stores a new policy under a freshly generated number. Number
// collisions are retried a bounded number of times.
func (s *Service) CreatePolicy(ctx context.Context, p id.Partition, actor access.Actor, req *models.CreatePolicyRequest) (*models.Policy, error) {
	if err := access.Authorize(actor, access.ActionManagePolicy, access.Subject{}); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		pol, err := models.NewPolicy(p.TenantID, req, models.GeneratePolicyNumber(s.rand), now)
		if err != nil {
			return nil, err
		}
		err = s.policies.Create(ctx, p, pol)
		if err == nil {
			s.emit(ctx, audit.Event{
				Action:   string(audit.EventPolicyCreated),
				ActorID:  actor.UserID,
				TenantID: p.TenantID,
				Subject:  pol.Number,
			})
			return pol, nil
		}
		if !errors.Is(err, policystore.ErrNumberTaken) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create policy")
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "policy number collision", "attempt", attempt)
		}
	}
	return nil, dErrors.New(dErrors.CodeGenerationFailed, "could not allocate a unique policy number")
}

func (s *Service) GetPolicy(ctx context.Context, p id.Partition, policyID id.PolicyID) (*models.Policy, error) {
	pol, err := s.policies.FindByID(ctx, p, policyID)
	if err != nil {
		return nil, wrapPolicyErr(err)
	}
	return pol, nil
}

func (s *Service) ListPolicies(ctx context.Context, p id.Partition) ([]*models.Policy, error) {
	list, err := s.policies.List(ctx, p)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policies")
	}
	return list, nil
}

func (s *Service) UpdatePolicy(ctx context.Context, p id.Partition, actor access.Actor, policyID id.PolicyID, req *models.UpdatePolicyRequest) (*models.Policy, error) {
	if err := access.Authorize(actor, access.ActionManagePolicy, access.Subject{}); err != nil {
		return nil, err
	}
	pol, err := s.policies.FindByID(ctx, p, policyID)
	if err != nil {
		return nil, wrapPolicyErr(err)
	}
	if err := pol.ApplyUpdate(req); err != nil {
		return nil, err
	}
	if err := s.policies.Update(ctx, p, pol); err != nil {
		return nil, wrapPolicyErr(err)
	}
	return pol, nil
}

// DeletePolicy removes a policy that has no claims. Claims own documents
// whose files must be released first, so they are deleted explicitly rather
// than by cascade.
func (s *Service) DeletePolicy(ctx context.Context, p id.Partition, actor access.Actor, policyID id.PolicyID) error {
	if err := access.Authorize(actor, access.ActionManagePolicy, access.Subject{}); err != nil {
		return err
	}
	if _, err := s.policies.FindByID(ctx, p, policyID); err != nil {
		return wrapPolicyErr(err)
	}
	claims, err := s.claims.ListByPolicy(ctx, p, policyID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claims")
	}
	if len(claims) > 0 {
		return dErrors.Newf(dErrors.CodeConflict, "policy has %d claims; delete them first", len(claims))
	}
	if err := s.policies.Delete(ctx, p, policyID); err != nil {
		return wrapPolicyErr(err)
	}
	return nil
}

func wrapPolicyErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "policy not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy")
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if s.auditPublisher == nil {
		if s.logger != nil {
			s.logger.InfoContext(ctx, event.Action,
				"log_type", "audit",
				"request_id", event.RequestID,
				"tenant_id", event.TenantID.String(),
				"subject", event.Subject,
			)
		}
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}
