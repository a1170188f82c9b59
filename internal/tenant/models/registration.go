package models

import (
	"strings"
	"time"

	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

// RegistrationStatus tracks a request while it waits for a platform operator.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationApproving RegistrationStatus = "approving"
)

// RegistrationRequest is a self-service application to become a tenant.
// It carries the admin password only as a one-way hash.
type RegistrationRequest struct {
	ID                id.RegistrationID  `json:"id"`
	CompanyName       string             `json:"company_name"`
	BusinessType      BusinessType       `json:"business_type"`
	ContactEmail      string             `json:"contact_email"`
	ContactPhone      string             `json:"company_phone"`
	LinkedIn          string             `json:"company_linkedin,omitempty"`
	Address           string             `json:"company_address,omitempty"`
	DefaultCurrency   string             `json:"default_currency"`
	SubscriptionPlan  Plan               `json:"subscription_plan"`
	RequestedDomain   string             `json:"requested_domain"`
	AdminEmail        string             `json:"admin_email"`
	AdminUsername     string             `json:"admin_username"`
	AdminPhone        string             `json:"admin_phone"`
	AdminFirstName    string             `json:"admin_first_name"`
	AdminLastName     string             `json:"admin_last_name"`
	AdminPasswordHash string             `json:"-"`
	Status            RegistrationStatus `json:"status"`
	CreatedAt         time.Time          `json:"created_at"`
	// ApprovalStartedAt is set while an approval is in flight.
	ApprovalStartedAt *time.Time `json:"-"`
}

// CanBeginApproval checks the request is not already being approved.
func (r *RegistrationRequest) CanBeginApproval() error {
	if r.Status != RegistrationPending {
		return dErrors.New(dErrors.CodeConflict, "registration request is already being approved")
	}
	return nil
}

func (r *RegistrationRequest) ApplyBeginApproval(now time.Time) {
	r.Status = RegistrationApproving
	r.ApprovalStartedAt = &now
}

func (r *RegistrationRequest) ApplyReset() {
	r.Status = RegistrationPending
	r.ApprovalStartedAt = nil
}

const (
	maxPhoneLength    = 20
	maxAdminPhone     = 15
	maxUsernameLength = 30
	minPasswordLength = 8
)

// SubmitRegistrationRequest is the public registration payload.
type SubmitRegistrationRequest struct {
	CompanyName      string `json:"company_name"`
	BusinessType     string `json:"business_type"`
	ContactPhone     string `json:"company_phone"`
	ContactEmail     string `json:"contact_email"`
	Address          string `json:"company_address"`
	LinkedIn         string `json:"company_linkedin"`
	DefaultCurrency  string `json:"default_currency"`
	SubscriptionPlan string `json:"subscription_plan"`
	RequestedDomain  string `json:"requested_domain"`
	AdminEmail       string `json:"admin_email"`
	AdminPhone       string `json:"admin_phone"`
	AdminFirstName   string `json:"admin_first_name"`
	AdminLastName    string `json:"admin_last_name"`
	AdminUsername    string `json:"admin_username"`
	AdminPassword    string `json:"admin_password"`
}

func (r *SubmitRegistrationRequest) Normalize() {
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.BusinessType = strings.TrimSpace(r.BusinessType)
	r.ContactPhone = strings.TrimSpace(r.ContactPhone)
	r.ContactEmail = strings.ToLower(strings.TrimSpace(r.ContactEmail))
	r.Address = strings.TrimSpace(r.Address)
	r.LinkedIn = strings.TrimSpace(r.LinkedIn)
	r.DefaultCurrency = strings.ToUpper(strings.TrimSpace(r.DefaultCurrency))
	if r.DefaultCurrency == "" {
		r.DefaultCurrency = DefaultCurrency
	}
	r.SubscriptionPlan = strings.ToLower(strings.TrimSpace(r.SubscriptionPlan))
	if r.SubscriptionPlan == "" {
		r.SubscriptionPlan = string(PlanBasic)
	}
	r.RequestedDomain = strings.ToLower(strings.TrimSpace(r.RequestedDomain))
	r.AdminEmail = strings.ToLower(strings.TrimSpace(r.AdminEmail))
	r.AdminPhone = strings.TrimSpace(r.AdminPhone)
	r.AdminFirstName = strings.TrimSpace(r.AdminFirstName)
	r.AdminLastName = strings.TrimSpace(r.AdminLastName)
	r.AdminUsername = strings.TrimSpace(r.AdminUsername)
}

func (r *SubmitRegistrationRequest) Validate() error {
	invalid := func(msg string) error { return dErrors.New(dErrors.CodeValidation, msg) }
	switch {
	case r.CompanyName == "" || len(r.CompanyName) > maxTenantNameLength:
		return invalid("company_name must be 1-200 characters")
	case !BusinessType(r.BusinessType).IsValid():
		return invalid("business_type must be one of auto, health, property, life, multi_line")
	case r.ContactPhone == "" || len(r.ContactPhone) > maxPhoneLength:
		return invalid("company_phone must be 1-20 characters")
	case !validEmail(r.ContactEmail):
		return invalid("contact_email must be a valid email address")
	case len(r.DefaultCurrency) != 3:
		return invalid("default_currency must be a 3-letter code")
	case !Plan(r.SubscriptionPlan).IsValid():
		return invalid("subscription_plan must be basic or pro")
	case !ValidDomainLabel(r.RequestedDomain):
		return invalid("requested_domain must be a hostname label of letters, digits and hyphens")
	case !validEmail(r.AdminEmail):
		return invalid("admin_email must be a valid email address")
	case r.AdminPhone == "" || len(r.AdminPhone) > maxAdminPhone:
		return invalid("admin_phone must be 1-15 characters")
	case r.AdminUsername == "" || len(r.AdminUsername) > maxUsernameLength:
		return invalid("admin_username must be 1-30 characters")
	case len(r.AdminPassword) < minPasswordLength:
		return invalid("admin_password must be at least 8 characters")
	}
	return nil
}

// ToRegistration builds the stored request. The domain suffix is appended
// here and the password hash replaces the plaintext.
func (r *SubmitRegistrationRequest) ToRegistration(domainSuffix, passwordHash string, now time.Time) *RegistrationRequest {
	return &RegistrationRequest{
		CompanyName:       r.CompanyName,
		BusinessType:      BusinessType(r.BusinessType),
		ContactEmail:      r.ContactEmail,
		ContactPhone:      r.ContactPhone,
		LinkedIn:          r.LinkedIn,
		Address:           r.Address,
		DefaultCurrency:   r.DefaultCurrency,
		SubscriptionPlan:  Plan(r.SubscriptionPlan),
		RequestedDomain:   NormalizeHost(r.RequestedDomain + domainSuffix),
		AdminEmail:        r.AdminEmail,
		AdminUsername:     r.AdminUsername,
		AdminPhone:        r.AdminPhone,
		AdminFirstName:    r.AdminFirstName,
		AdminLastName:     r.AdminLastName,
		AdminPasswordHash: passwordHash,
		Status:            RegistrationPending,
		CreatedAt:         now,
	}
}
