package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "claimdesk/pkg/domain-errors"
)

var allowed = map[Status][]Status{
	StatusReported:           {StatusAssigned, StatusDenied},
	StatusAssigned:           {StatusUnderReview, StatusDocumentsRequested, StatusDenied},
	StatusUnderReview:        {StatusInvestigation, StatusDocumentsRequested},
	StatusInvestigation:      {StatusWaitingApproval, StatusDocumentsRequested},
	StatusDocumentsRequested: {StatusInvestigation, StatusWaitingApproval},
	StatusWaitingApproval:    {StatusApproved, StatusDenied},
	StatusApproved:           {StatusPaymentProcessing},
	StatusPaymentProcessing:  {StatusPaid},
	StatusPaid:               {StatusClosed},
	StatusDenied:             {StatusClosed},
}

func contains(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestTransitionMatrix(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)
	amount := int64(5000)

	for _, from := range Statuses() {
		for _, to := range Statuses() {
			amt := amountPtr(amount)
			c := &Claim{Number: "CLM-0000-0000-0001", Title: "t", Status: from, ClaimAmount: amt, CreatedAt: created, UpdatedAt: created}
			before := *c

			err := c.Transition(to, later)
			if contains(allowed[from], to) {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, c.Status)
				assert.Equal(t, later, c.UpdatedAt)
				before.Status, before.UpdatedAt = to, later
				assert.Equal(t, before, *c, "only status and updated_at may change")
				continue
			}
			require.Error(t, err, "%s -> %s", from, to)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
			assert.Equal(t, before, *c, "rejected transition must not mutate the claim")
		}
	}
}

func TestClosedIsTerminal(t *testing.T) {
	assert.True(t, StatusClosed.IsTerminal())
	assert.Empty(t, StatusClosed.AllowedNext())
	for _, s := range Statuses() {
		if s != StatusClosed {
			assert.False(t, s.IsTerminal(), s)
		}
	}
}

func TestAllowedNextIsACopy(t *testing.T) {
	next := StatusReported.AllowedNext()
	next[0] = StatusPaid
	assert.True(t, StatusReported.CanTransitionTo(StatusAssigned))
	assert.False(t, StatusReported.CanTransitionTo(StatusPaid))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Waiting_Approval ")
	require.NoError(t, err)
	assert.Equal(t, StatusWaitingApproval, s)

	_, err = ParseStatus("archived")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestApprovalChain(t *testing.T) {
	now := time.Now()
	c := &Claim{Status: StatusWaitingApproval}

	err := c.Transition(StatusPaymentProcessing, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	for _, next := range []Status{StatusApproved, StatusPaymentProcessing, StatusPaid, StatusClosed} {
		require.NoError(t, c.Transition(next, now))
	}
	assert.Equal(t, StatusClosed, c.Status)
	assert.Nil(t, c.ApprovedAmount, "approval does not infer an approved amount")
}
