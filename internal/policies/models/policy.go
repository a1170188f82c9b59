// Package models defines insurance policies held by a tenant's customers.
package models

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

type PolicyType string

const (
	TypeAuto     PolicyType = "auto"
	TypeHome     PolicyType = "home"
	TypeLife     PolicyType = "life"
	TypeHealth   PolicyType = "health"
	TypeBusiness PolicyType = "business"
	TypeTravel   PolicyType = "travel"
	TypeOther    PolicyType = "other"
)

func (t PolicyType) IsValid() bool {
	switch t {
	case TypeAuto, TypeHome, TypeLife, TypeHealth, TypeBusiness, TypeTravel, TypeOther:
		return true
	}
	return false
}

// Policy is an insurance contract. Claims are filed against it.
//
// Invariants:
//   - Number matches dddd-dddd-dddd and is unique within the partition
//   - StartDate is not after EndDate
type Policy struct {
	ID             id.PolicyID
	Number         string
	TenantID       id.TenantID
	HolderName     string
	HolderEmail    string
	Type           PolicyType
	CoverageAmount id.Amount
	Premium        id.Amount
	StartDate      time.Time
	EndDate        time.Time
	Active         bool
	CreatedAt      time.Time
}

// IsValid reports whether the policy is active and today falls within its
// coverage period, both ends inclusive.
func (p *Policy) IsValid(today time.Time) bool {
	if !p.Active {
		return false
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(p.StartDate) && !day.After(p.EndDate)
}

// RandSource yields uniformly distributed integers in [0, n).
type RandSource interface {
	IntN(n int) int
}

var policyNumberPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}$`)

// GeneratePolicyNumber returns a candidate number dddd-dddd-dddd.
func GeneratePolicyNumber(r RandSource) string {
	return fmt.Sprintf("%04d-%04d-%04d", r.IntN(10000), r.IntN(10000), r.IntN(10000))
}

func ValidPolicyNumber(s string) bool {
	return policyNumberPattern.MatchString(s)
}

// NewPolicy builds a policy from a validated request.
func NewPolicy(tenantID id.TenantID, req *CreatePolicyRequest, number string, now time.Time) (*Policy, error) {
	if !ValidPolicyNumber(number) {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "malformed policy number %q", number)
	}
	start, end, err := parsePeriod(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &Policy{
		Number:         number,
		TenantID:       tenantID,
		HolderName:     req.HolderName,
		HolderEmail:    req.HolderEmail,
		Type:           PolicyType(req.Type),
		CoverageAmount: req.CoverageAmount,
		Premium:        req.Premium,
		StartDate:      start,
		EndDate:        end,
		Active:         active,
		CreatedAt:      now,
	}, nil
}

// ApplyUpdate copies the fields present in req onto the policy.
func (p *Policy) ApplyUpdate(req *UpdatePolicyRequest) error {
	start := p.StartDate.Format(time.DateOnly)
	end := p.EndDate.Format(time.DateOnly)
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if req.EndDate != nil {
		end = *req.EndDate
	}
	startDate, endDate, err := parsePeriod(start, end)
	if err != nil {
		return err
	}
	p.StartDate, p.EndDate = startDate, endDate
	if req.HolderName != nil {
		p.HolderName = *req.HolderName
	}
	if req.HolderEmail != nil {
		p.HolderEmail = *req.HolderEmail
	}
	if req.Type != nil {
		p.Type = PolicyType(*req.Type)
	}
	if req.CoverageAmount != nil {
		p.CoverageAmount = *req.CoverageAmount
	}
	if req.Premium != nil {
		p.Premium = *req.Premium
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	return nil
}

func parsePeriod(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "start_date must be a date in YYYY-MM-DD format")
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "end_date must be a date in YYYY-MM-DD format")
	}
	if e.Before(s) {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "end_date must not be before start_date")
	}
	return s, e, nil
}

const maxHolderNameLength = 200

type CreatePolicyRequest struct {
	HolderName     string    `json:"policyholder_name"`
	HolderEmail    string    `json:"policyholder_email"`
	Type           string    `json:"policy_type"`
	CoverageAmount id.Amount `json:"coverage_amount"`
	Premium        id.Amount `json:"premium"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	Active         *bool     `json:"is_active"`
}

func (r *CreatePolicyRequest) Normalize() {
	r.HolderName = strings.TrimSpace(r.HolderName)
	r.HolderEmail = strings.ToLower(strings.TrimSpace(r.HolderEmail))
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
	r.StartDate = strings.TrimSpace(r.StartDate)
	r.EndDate = strings.TrimSpace(r.EndDate)
}

func (r *CreatePolicyRequest) Validate() error {
	if err := validateHolder(r.HolderName, r.HolderEmail); err != nil {
		return err
	}
	if !PolicyType(r.Type).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid policy_type")
	}
	if r.CoverageAmount == 0 {
		return dErrors.New(dErrors.CodeValidation, "coverage_amount is required")
	}
	_, _, err := parsePeriod(r.StartDate, r.EndDate)
	return err
}

// UpdatePolicyRequest is a partial update; nil fields are left unchanged.
type UpdatePolicyRequest struct {
	HolderName     *string    `json:"policyholder_name"`
	HolderEmail    *string    `json:"policyholder_email"`
	Type           *string    `json:"policy_type"`
	CoverageAmount *id.Amount `json:"coverage_amount"`
	Premium        *id.Amount `json:"premium"`
	StartDate      *string    `json:"start_date"`
	EndDate        *string    `json:"end_date"`
	Active         *bool      `json:"is_active"`
}

func (r *UpdatePolicyRequest) Normalize() {
	for _, s := range []*string{r.HolderName, r.StartDate, r.EndDate} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	for _, s := range []*string{r.HolderEmail, r.Type} {
		if s != nil {
			*s = strings.ToLower(strings.TrimSpace(*s))
		}
	}
}

func (r *UpdatePolicyRequest) Validate() error {
	if r.HolderName != nil {
		if err := validateName(*r.HolderName); err != nil {
			return err
		}
	}
	if r.HolderEmail != nil {
		if err := validateEmail(*r.HolderEmail); err != nil {
			return err
		}
	}
	if r.Type != nil && !PolicyType(*r.Type).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid policy_type")
	}
	return nil
}

func validateHolder(name, email string) error {
	if err := validateName(name); err != nil {
		return err
	}
	return validateEmail(email)
}

func validateName(name string) error {
	switch {
	case name == "":
		return dErrors.New(dErrors.CodeValidation, "policyholder_name is required")
	case len(name) > maxHolderNameLength:
		return dErrors.New(dErrors.CodeValidation, "policyholder_name must be 200 characters or less")
	}
	return nil
}

func validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return dErrors.New(dErrors.CodeValidation, "policyholder_email is invalid")
	}
	return nil
}
