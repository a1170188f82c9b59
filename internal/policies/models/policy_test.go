package models

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

func validRequest() *CreatePolicyRequest {
	return &CreatePolicyRequest{
		HolderName:     "Jane Doe",
		HolderEmail:    "Jane@Example.com ",
		Type:           "Auto",
		CoverageAmount: 5000000,
		Premium:        120000,
		StartDate:      "2026-01-01",
		EndDate:        "2026-12-31",
	}
}

func TestNewPolicy(t *testing.T) {
	req := validRequest()
	req.Normalize()
	require.NoError(t, req.Validate())

	p, err := NewPolicy(id.NewTenantID(), req, "0001-0002-0003", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", p.HolderEmail)
	assert.Equal(t, TypeAuto, p.Type)
	assert.True(t, p.Active, "policies are active unless stated otherwise")
}

func TestPolicyIsValid(t *testing.T) {
	p := &Policy{
		Active:    true,
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	cases := []struct {
		name  string
		today time.Time
		want  bool
	}{
		{"before start", time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC), false},
		{"first day", time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC), true},
		{"last day late evening", time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC), true},
		{"after end", time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.IsValid(tc.today))
		})
	}

	p.Active = false
	assert.False(t, p.IsValid(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCreatePolicyRequestValidate(t *testing.T) {
	mutate := map[string]func(r *CreatePolicyRequest){
		"missing holder":  func(r *CreatePolicyRequest) { r.HolderName = "" },
		"bad email":       func(r *CreatePolicyRequest) { r.HolderEmail = "nope" },
		"unknown type":    func(r *CreatePolicyRequest) { r.Type = "pet" },
		"no coverage":     func(r *CreatePolicyRequest) { r.CoverageAmount = 0 },
		"bad date":        func(r *CreatePolicyRequest) { r.StartDate = "01/01/2026" },
		"inverted period": func(r *CreatePolicyRequest) { r.EndDate = "2025-01-01" },
	}
	for name, fn := range mutate {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			fn(req)
			req.Normalize()
			assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
		})
	}
}

func TestApplyUpdateKeepsPeriodConsistent(t *testing.T) {
	req := validRequest()
	req.Normalize()
	p, err := NewPolicy(id.NewTenantID(), req, "0001-0002-0003", time.Now())
	require.NoError(t, err)

	end := "2025-06-01"
	err = p.ApplyUpdate(&UpdatePolicyRequest{EndDate: &end})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	end = "2027-06-01"
	inactive := false
	require.NoError(t, p.ApplyUpdate(&UpdatePolicyRequest{EndDate: &end, Active: &inactive}))
	assert.Equal(t, time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC), p.EndDate)
	assert.False(t, p.Active)
}

func TestGeneratePolicyNumber(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for range 500 {
		assert.True(t, ValidPolicyNumber(GeneratePolicyNumber(r)))
	}
}
