// Package service manages staff users: creation, login, lookup and removal.
// Every operation takes the partition the user lives in as an explicit
// argument.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"claimdesk/internal/access"
	"claimdesk/internal/identity/models"
	userStore "claimdesk/internal/identity/store/user"
	"claimdesk/internal/jwttoken"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/audit"
	"claimdesk/pkg/platform/sentinel"
	"claimdesk/pkg/platform/tx"
	"claimdesk/pkg/requestcontext"
)

type UserStore interface {
	Create(ctx context.Context, p id.Partition, u *models.User) error
	FindByID(ctx context.Context, p id.Partition, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, p id.Partition, email string) (*models.User, error)
	Delete(ctx context.Context, p id.Partition, userID id.UserID) error
}

// AssigneeReleaser clears the assignee of every claim assigned to a user.
type AssigneeReleaser interface {
	ReleaseAssignee(ctx context.Context, p id.Partition, userID id.UserID) error
}

type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) error
}

type TokenIssuer interface {
	GenerateAccessToken(sub jwttoken.Subject, expiresIn time.Duration) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const defaultTokenTTL = time.Hour

type Service struct {
	users          UserStore
	releaser       AssigneeReleaser
	hasher         PasswordHasher
	tokens         TokenIssuer
	tx             tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	tokenTTL       time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.tokenTTL = ttl
	}
}

func New(users UserStore, releaser AssigneeReleaser, hasher PasswordHasher, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		users:    users,
		releaser: releaser,
		hasher:   hasher,
		tokens:   tokens,
		tokenTTL: defaultTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewLockRunner()
	}
	return s
}

// CreateUser adds a tenant-scoped staff member to partition p. Only tenant
// admins may add users.
func (s *Service) CreateUser(ctx context.Context, p id.Partition, actor access.Actor, req *models.CreateUserRequest) (*models.User, error) {
	if p.IsPublic() || p.TenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "users must be created on a tenant host")
	}
	if err := access.Authorize(actor, access.ActionManageUsers, access.Subject{}); err != nil {
		return nil, err
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	user, err := s.create(ctx, p, req, role, models.ScopeTenant, p.TenantID)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.Event{
		Action:   string(audit.EventUserCreated),
		ActorID:  actor.UserID,
		TenantID: p.TenantID,
		Subject:  user.ID.String(),
	})
	return user, nil
}

// CreateGlobalAdmin adds a platform operator in the public partition.
func (s *Service) CreateGlobalAdmin(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	user, err := s.create(ctx, id.PublicPartition, req, models.RoleAdmin, models.ScopeGlobal, id.TenantID{})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.Event{
		Action:  string(audit.EventUserCreated),
		ActorID: requestcontext.UserID(ctx),
		Subject: user.ID.String(),
		Reason:  "global_admin",
	})
	return user, nil
}

func (s *Service) create(ctx context.Context, p id.Partition, req *models.CreateUserRequest, role models.Role, scope models.Scope, tenantID id.TenantID) (*models.User, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "password cannot be used")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	user, err := models.NewUser(models.NewUserParams{
		Email:        req.Email,
		Username:     req.Username,
		Phone:        req.Phone,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
		Role:         role,
		Scope:        scope,
		TenantID:     tenantID,
	}, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	if err := s.users.Create(ctx, p, user); err != nil {
		return nil, translateCreateErr(err)
	}
	return user, nil
}

// Login verifies credentials against the users of partition p and issues a
// bearer token.
func (s *Service) Login(ctx context.Context, p id.Partition, req *models.LoginRequest) (*models.TokenResult, error) {
	invalid := dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")

	user, err := s.users.FindByEmail(ctx, p, req.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.emitAuthFailed(ctx, p, "unknown_email")
			return nil, invalid
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if err := s.hasher.Verify(req.Password, user.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			s.emitAuthFailed(ctx, p, "invalid_password")
			return nil, invalid
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}

	sub := jwttoken.Subject{
		UserID: user.ID.String(),
		Role:   string(user.Role),
		Scope:  string(user.Scope),
	}
	if !user.IsGlobal() {
		sub.TenantID = user.TenantID.String()
	}
	token, err := s.tokens.GenerateAccessToken(sub, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	s.emit(ctx, audit.Event{
		Action:   string(audit.EventTokenIssued),
		ActorID:  user.ID,
		TenantID: user.TenantID,
	})
	return &models.TokenResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokenTTL.Seconds()),
	}, nil
}

// GetUser returns the profile of a user in partition p.
func (s *Service) GetUser(ctx context.Context, p id.Partition, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, p, userID)
	if err != nil {
		return nil, wrapUserErr(err)
	}
	return user, nil
}

// DeleteUser removes a user from partition p. Claims assigned to the user
// lose their assignee in the same transaction.
func (s *Service) DeleteUser(ctx context.Context, p id.Partition, actor access.Actor, userID id.UserID) error {
	if err := access.Authorize(actor, access.ActionManageUsers, access.Subject{}); err != nil {
		return err
	}
	if actor.UserID == userID {
		return dErrors.New(dErrors.CodeBadRequest, "cannot delete yourself")
	}

	var deleted *models.User
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.FindByID(txCtx, p, userID)
		if err != nil {
			return wrapUserErr(err)
		}
		if s.releaser != nil {
			if err := s.releaser.ReleaseAssignee(txCtx, p, userID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to release assigned claims")
			}
		}
		if err := s.users.Delete(txCtx, p, userID); err != nil {
			return wrapUserErr(err)
		}
		deleted = user
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, audit.Event{
		Action:   string(audit.EventUserDeleted),
		ActorID:  actor.UserID,
		TenantID: p.TenantID,
		Subject:  deleted.ID.String(),
	})
	return nil
}

func translateCreateErr(err error) error {
	switch {
	case errors.Is(err, userStore.ErrEmailTaken):
		return dErrors.New(dErrors.CodeConflict, "email is already in use")
	case errors.Is(err, userStore.ErrUsernameTaken):
		return dErrors.New(dErrors.CodeConflict, "username is already in use")
	case errors.Is(err, userStore.ErrPhoneTaken):
		return dErrors.New(dErrors.CodeConflict, "phone number is already in use")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "user already exists")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
}

func wrapUserErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
}

func (s *Service) emitAuthFailed(ctx context.Context, p id.Partition, reason string) {
	s.emit(ctx, audit.Event{
		Action:   string(audit.EventAuthFailed),
		TenantID: p.TenantID,
		Reason:   reason,
	})
}

// emit publishes best-effort; audit failures are logged, never returned.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if s.auditPublisher == nil {
		s.logAudit(ctx, event)
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, event.Action,
		"log_type", "audit",
		"request_id", event.RequestID,
		"tenant_id", event.TenantID.String(),
		"subject", event.Subject,
	)
}
