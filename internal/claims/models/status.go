package models

import (
	"strings"

	dErrors "claimdesk/pkg/domain-errors"
)

// Status is a claim lifecycle state.
type Status string

const (
	StatusReported           Status = "reported"
	StatusAssigned           Status = "assigned"
	StatusUnderReview        Status = "under_review"
	StatusInvestigation      Status = "investigation"
	StatusDocumentsRequested Status = "documents_requested"
	StatusWaitingApproval    Status = "waiting_approval"
	StatusApproved           Status = "approved"
	StatusDenied             Status = "denied"
	StatusPaymentProcessing  Status = "payment_processing"
	StatusPaid               Status = "paid"
	StatusClosed             Status = "closed"
)

// transitions is the complete adjacency table of the lifecycle. A move is
// legal only if the target is listed for the current status.
var transitions = map[Status][]Status{
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
	StatusClosed:             nil,
}

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusReported, StatusAssigned, StatusUnderReview, StatusInvestigation,
		StatusDocumentsRequested, StatusWaitingApproval, StatusApproved, StatusDenied,
		StatusPaymentProcessing, StatusPaid, StatusClosed,
	}
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown claim status %q", s)
	}
	return st, nil
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) String() string { return string(s) }

// AllowedNext returns the statuses reachable in one step from s.
func (s Status) AllowedNext() []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}
