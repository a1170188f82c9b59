// Package models holds the claim aggregate: the claim itself, its lifecycle
// table, and the notes and documents it owns.
package models

import (
	"time"

	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 10000
)

// Claim is an insurance claim filed against a policy of one tenant.
//
// Invariants:
//   - Number matches CLM-dddd-dddd-dddd and is unique within the partition
//   - Status changes only along the transition table
//   - ApprovedAmount and ClaimAmount are set by explicit edits, never by a
//     status change
type Claim struct {
	ID             id.ClaimID
	Number         string
	TenantID       id.TenantID
	PolicyID       id.PolicyID
	Title          string
	Description    string
	Status         Status
	ClaimAmount    *id.Amount
	ApprovedAmount *id.Amount
	AssignedTo     *id.UserID
	IncidentDate   time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewClaim builds a reported claim from a validated request. The number is
// generated by the caller.
func NewClaim(tenantID id.TenantID, policyID id.PolicyID, req *CreateClaimRequest, number string, now time.Time) (*Claim, error) {
	if !ValidClaimNumber(number) {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "malformed claim number %q", number)
	}
	incident, err := ParseDate(req.IncidentDate, "incident_date")
	if err != nil {
		return nil, err
	}
	if incident.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "incident_date cannot be in the future")
	}
	return &Claim{
		Number:       number,
		TenantID:     tenantID,
		PolicyID:     policyID,
		Title:        req.Title,
		Description:  req.Description,
		Status:       StatusReported,
		ClaimAmount:  req.ClaimAmount,
		IncidentDate: incident,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (c *Claim) IsReported() bool {
	return c.Status == StatusReported
}

// Transition moves the claim to next. Only Status and UpdatedAt change.
func (c *Claim) Transition(next Status, now time.Time) error {
	if !c.Status.CanTransitionTo(next) {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"cannot move claim from %s to %s", c.Status, next)
	}
	c.Status = next
	c.UpdatedAt = now
	return nil
}

// ApplyUpdate copies the fields present in req onto the claim.
func (c *Claim) ApplyUpdate(req *UpdateClaimRequest, now time.Time) error {
	if req.IncidentDate != nil {
		incident, err := ParseDate(*req.IncidentDate, "incident_date")
		if err != nil {
			return err
		}
		if incident.After(now) {
			return dErrors.New(dErrors.CodeValidation, "incident_date cannot be in the future")
		}
		c.IncidentDate = incident
	}
	if req.Title != nil {
		c.Title = *req.Title
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.ClaimAmount != nil {
		amount := *req.ClaimAmount
		c.ClaimAmount = &amount
	}
	if req.ApprovedAmount != nil {
		amount := *req.ApprovedAmount
		c.ApprovedAmount = &amount
	}
	c.UpdatedAt = now
	return nil
}

// Assign sets the handling user. Assignment does not change the status.
func (c *Claim) Assign(userID id.UserID, now time.Time) {
	c.AssignedTo = &userID
	c.UpdatedAt = now
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC.
func ParseDate(s, field string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, dErrors.Newf(dErrors.CodeValidation, "%s must be a date in YYYY-MM-DD format", field)
	}
	return d, nil
}

// Note is a free-text remark on a claim. Internal notes are for staff only.
type Note struct {
	ID        id.NoteID
	ClaimID   id.ClaimID
	AuthorID  id.UserID
	Text      string
	Internal  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentType classifies an uploaded claim document.
type DocumentType string

const (
	DocumentPhoto         DocumentType = "photo"
	DocumentEstimate      DocumentType = "estimate"
	DocumentPoliceReport  DocumentType = "police_report"
	DocumentMedicalRecord DocumentType = "medical_record"
	DocumentInvoice       DocumentType = "invoice"
	DocumentOther         DocumentType = "other"
)

func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentPhoto, DocumentEstimate, DocumentPoliceReport,
		DocumentMedicalRecord, DocumentInvoice, DocumentOther:
		return true
	}
	return false
}

// Document is a file attached to a claim. FileRef is the reference returned
// by the file store.
type Document struct {
	ID          id.DocumentID
	ClaimID     id.ClaimID
	Type        DocumentType
	UploadedBy  id.UserID
	FileRef     string
	Description string
	UploadedAt  time.Time
}
