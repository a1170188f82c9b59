package models

import (
	"net/mail"
	"strings"
	"time"

	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

// Role is a staff role. Every user holds exactly one.
type Role string

const (
	RoleCallCenter     Role = "call_center"
	RoleAdjuster       Role = "adjuster"
	RoleSeniorAdjuster Role = "senior_adjuster"
	RoleManager        Role = "manager"
	RoleAdmin          Role = "admin"
)

var validRoles = map[Role]bool{
	RoleCallCenter:     true,
	RoleAdjuster:       true,
	RoleSeniorAdjuster: true,
	RoleManager:        true,
	RoleAdmin:          true,
}

// ParseRole constructs a Role from external input.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid role")
	}
	return r, nil
}

func (r Role) IsValid() bool  { return validRoles[r] }
func (r Role) String() string { return string(r) }

// Scope tells whether a user is a platform operator or belongs to a tenant.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeTenant Scope = "tenant"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeGlobal, ScopeTenant:
		return Scope(s), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "invalid scope")
}

const (
	maxUsernameLength = 30
	maxPhoneLength    = 15
	maxNameLength     = 100
)

// User is a staff account.
//
// Invariants:
//   - ID is a random (version 4) UUID
//   - Email, Username and Phone are non-empty and unique within the partition
//   - Role is one of the five staff roles
//   - Scope global ⇔ TenantID is nil; global users live in the public partition
//   - PasswordHash is an opaque one-way hash, never plaintext
type User struct {
	ID           id.UserID   `json:"id"`
	Email        string      `json:"email"`
	Username     string      `json:"username"`
	Phone        string      `json:"phone_number"`
	FirstName    string      `json:"first_name"`
	LastName     string      `json:"last_name"`
	PasswordHash string      `json:"-"`
	Role         Role        `json:"role"`
	Scope        Scope       `json:"scope"`
	TenantID     id.TenantID `json:"tenant_id"`
	CreatedAt    time.Time   `json:"created_at"`
}

// NewUserParams carries the fields for NewUser.
type NewUserParams struct {
	Email        string
	Username     string
	Phone        string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         Role
	Scope        Scope
	TenantID     id.TenantID
}

// NewUser validates invariants and assigns a fresh id.
func NewUser(p NewUserParams, now time.Time) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email must be a valid address")
	}
	username := strings.TrimSpace(p.Username)
	if username == "" || len(username) > maxUsernameLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "username must be 1-30 characters")
	}
	phone := strings.TrimSpace(p.Phone)
	if phone == "" || len(phone) > maxPhoneLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "phone number must be 1-15 characters")
	}
	if len(p.FirstName) > maxNameLength || len(p.LastName) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "names must be 100 characters or less")
	}
	if p.PasswordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash is required")
	}
	if !p.Role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid role")
	}
	switch p.Scope {
	case ScopeGlobal:
		if !p.TenantID.IsNil() {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "global users cannot belong to a tenant")
		}
	case ScopeTenant:
		if p.TenantID.IsNil() {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant users require a tenant")
		}
	default:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid scope")
	}
	return &User{
		ID:           id.NewUserID(),
		Email:        email,
		Username:     username,
		Phone:        phone,
		FirstName:    strings.TrimSpace(p.FirstName),
		LastName:     strings.TrimSpace(p.LastName),
		PasswordHash: p.PasswordHash,
		Role:         p.Role,
		Scope:        p.Scope,
		TenantID:     p.TenantID,
		CreatedAt:    now,
	}, nil
}

// IsGlobal reports whether the user is a platform operator.
func (u *User) IsGlobal() bool {
	return u.Scope == ScopeGlobal
}

// Partition returns the partition the user's record lives in, given the
// schema of its tenant.
func (u *User) Partition(tenantSchema string) id.Partition {
	if u.IsGlobal() {
		return id.PublicPartition
	}
	return id.Partition{TenantID: u.TenantID, Schema: tenantSchema}
}
