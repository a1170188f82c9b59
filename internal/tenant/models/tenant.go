package models

import (
	"net/mail"
	"strings"
	"time"

	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

// BusinessType is the insurance line a company writes.
type BusinessType string

const (
	BusinessAuto      BusinessType = "auto"
	BusinessHealth    BusinessType = "health"
	BusinessProperty  BusinessType = "property"
	BusinessLife      BusinessType = "life"
	BusinessMultiLine BusinessType = "multi_line"
)

func (b BusinessType) IsValid() bool {
	switch b {
	case BusinessAuto, BusinessHealth, BusinessProperty, BusinessLife, BusinessMultiLine:
		return true
	}
	return false
}

// Plan is the subscription tier.
type Plan string

const (
	PlanBasic Plan = "basic"
	PlanPro   Plan = "pro"
)

func (p Plan) IsValid() bool {
	return p == PlanBasic || p == PlanPro
}

// TenantStatus tracks provisioning. A tenant is routable only when active.
type TenantStatus string

const (
	TenantStatusProvisioning TenantStatus = "provisioning"
	TenantStatusActive       TenantStatus = "active"
)

const (
	maxTenantNameLength = 200
	maxCodeLength       = 10
	DefaultCurrency     = "USD"
)

// Tenant is an insurance company with its own data partition.
//
// Invariants:
//   - Name is non-empty, at most 200 characters, unique case-insensitively
//   - Code is non-empty, at most 10 characters, unique
//   - Schema is a valid, non-reserved partition id; it never changes
//   - Status moves provisioning → active only
type Tenant struct {
	ID               id.TenantID  `json:"id"`
	Name             string       `json:"name"`
	Code             string       `json:"code"`
	BusinessType     BusinessType `json:"business_type"`
	ContactEmail     string       `json:"contact_email"`
	ContactPhone     string       `json:"contact_phone"`
	LinkedIn         string       `json:"linkedin,omitempty"`
	Address          string       `json:"address,omitempty"`
	DefaultCurrency  string       `json:"default_currency"`
	SubscriptionPlan Plan         `json:"subscription_plan"`
	Schema           string       `json:"schema_name"`
	Status           TenantStatus `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
}

// NewProvisioningTenant builds a tenant from an approved registration. The
// tenant starts in the provisioning status and is not routable until
// activated.
func NewProvisioningTenant(req *RegistrationRequest, schema, code string, now time.Time) (*Tenant, error) {
	name := strings.TrimSpace(req.CompanyName)
	if name == "" || len(name) > maxTenantNameLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name must be 1-200 characters")
	}
	if code == "" || len(code) > maxCodeLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant code must be 1-10 characters")
	}
	if !id.ValidSchemaName(schema) || id.ReservedSchemaName(schema) {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid partition id %q", schema)
	}
	currency := req.DefaultCurrency
	if currency == "" {
		currency = DefaultCurrency
	}
	plan := req.SubscriptionPlan
	if plan == "" {
		plan = PlanBasic
	}
	return &Tenant{
		ID:               id.NewTenantID(),
		Name:             name,
		Code:             code,
		BusinessType:     req.BusinessType,
		ContactEmail:     req.ContactEmail,
		ContactPhone:     req.ContactPhone,
		LinkedIn:         req.LinkedIn,
		Address:          req.Address,
		DefaultCurrency:  currency,
		SubscriptionPlan: plan,
		Schema:           schema,
		Status:           TenantStatusProvisioning,
		CreatedAt:        now,
	}, nil
}

func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// Partition returns the data partition owned by the tenant.
func (t *Tenant) Partition() id.Partition {
	return id.Partition{TenantID: t.ID, Schema: t.Schema}
}

// CanActivate checks that provisioning has not already completed.
func (t *Tenant) CanActivate() error {
	if t.Status != TenantStatusProvisioning {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is not provisioning")
	}
	return nil
}

func (t *Tenant) ApplyActivation() {
	t.Status = TenantStatusActive
}

// Domain routes a hostname to exactly one tenant.
type Domain struct {
	Hostname  string      `json:"domain"`
	TenantID  id.TenantID `json:"tenant_id"`
	IsPrimary bool        `json:"is_primary"`
}

func validEmail(s string) bool {
	if s == "" {
		return false
	}
	_, err := mail.ParseAddress(s)
	return err == nil
}
