package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "claimdesk/pkg/domain-errors"
)

func validRequest() *SubmitRegistrationRequest {
	return &SubmitRegistrationRequest{
		CompanyName:     "  Acme Insurance ",
		BusinessType:    "auto",
		ContactPhone:    "5550100",
		ContactEmail:    "OPS@Acme.test",
		RequestedDomain: "Acme",
		AdminEmail:      "admin@acme.test",
		AdminPhone:      "5550101",
		AdminUsername:   "acmeadmin",
		AdminPassword:   "s3cret-pass",
	}
}

func TestSubmitRegistrationRequest(t *testing.T) {
	t.Run("normalizes and applies defaults", func(t *testing.T) {
		req := validRequest()
		req.Normalize()
		require.NoError(t, req.Validate())
		assert.Equal(t, "Acme Insurance", req.CompanyName)
		assert.Equal(t, "ops@acme.test", req.ContactEmail)
		assert.Equal(t, "acme", req.RequestedDomain)
		assert.Equal(t, "USD", req.DefaultCurrency)
		assert.Equal(t, "basic", req.SubscriptionPlan)
	})

	cases := map[string]func(r *SubmitRegistrationRequest){
		"missing company":       func(r *SubmitRegistrationRequest) { r.CompanyName = "" },
		"unknown business type": func(r *SubmitRegistrationRequest) { r.BusinessType = "marine" },
		"bad contact email":     func(r *SubmitRegistrationRequest) { r.ContactEmail = "nope" },
		"dotted domain":         func(r *SubmitRegistrationRequest) { r.RequestedDomain = "acme.com" },
		"unknown plan":          func(r *SubmitRegistrationRequest) { r.SubscriptionPlan = "gold" },
		"long admin phone":      func(r *SubmitRegistrationRequest) { r.AdminPhone = "1234567890123456" },
		"short password":        func(r *SubmitRegistrationRequest) { r.AdminPassword = "short" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			mutate(req)
			req.Normalize()
			err := req.Validate()
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
		})
	}
}

func TestToRegistration(t *testing.T) {
	req := validRequest()
	req.Normalize()
	now := time.Now()

	reg := req.ToRegistration(".localhost", "$2a$hash", now)
	assert.Equal(t, "acme.localhost", reg.RequestedDomain)
	assert.Equal(t, "$2a$hash", reg.AdminPasswordHash)
	assert.Equal(t, RegistrationPending, reg.Status)
	assert.Equal(t, BusinessAuto, reg.BusinessType)

	require.NoError(t, reg.CanBeginApproval())
	reg.ApplyBeginApproval(now)
	assert.True(t, dErrors.HasCode(reg.CanBeginApproval(), dErrors.CodeConflict))
	reg.ApplyReset()
	assert.Nil(t, reg.ApprovalStartedAt)
}

func TestNewProvisioningTenant(t *testing.T) {
	req := validRequest()
	req.Normalize()
	reg := req.ToRegistration(".localhost", "h", time.Now())

	tenant, err := NewProvisioningTenant(reg, "acme_insurance", "ACM123456", time.Now())
	require.NoError(t, err)
	assert.Equal(t, TenantStatusProvisioning, tenant.Status)
	assert.False(t, tenant.IsActive())
	assert.Equal(t, "acme_insurance", tenant.Partition().Schema)
	require.NoError(t, tenant.CanActivate())
	tenant.ApplyActivation()
	assert.True(t, tenant.IsActive())
	assert.Error(t, tenant.CanActivate())

	_, err = NewProvisioningTenant(reg, "public", "ACM1", time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	_, err = NewProvisioningTenant(reg, "acme", "ACME-CODE-TOO-LONG", time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
