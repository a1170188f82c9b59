package models

import (
	"strings"

	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

type CreateClaimRequest struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	ClaimAmount  *id.Amount `json:"claim_amount"`
	IncidentDate string     `json:"incident_date"`
}

func (r *CreateClaimRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.IncidentDate = strings.TrimSpace(r.IncidentDate)
}

func (r *CreateClaimRequest) Validate() error {
	if err := validateTitle(r.Title); err != nil {
		return err
	}
	if len(r.Description) > maxDescriptionLength {
		return dErrors.New(dErrors.CodeValidation, "description is too long")
	}
	if r.IncidentDate == "" {
		return dErrors.New(dErrors.CodeValidation, "incident_date is required")
	}
	_, err := ParseDate(r.IncidentDate, "incident_date")
	return err
}

// UpdateClaimRequest is a partial update; nil fields are left unchanged.
// Status is changed through the transition endpoint only.
type UpdateClaimRequest struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	ClaimAmount    *id.Amount `json:"claim_amount"`
	ApprovedAmount *id.Amount `json:"approved_amount"`
	IncidentDate   *string    `json:"incident_date"`
}

func (r *UpdateClaimRequest) Normalize() {
	trim(r.Title)
	trim(r.Description)
	trim(r.IncidentDate)
}

func (r *UpdateClaimRequest) Validate() error {
	if r.Title != nil {
		if err := validateTitle(*r.Title); err != nil {
			return err
		}
	}
	if r.Description != nil && len(*r.Description) > maxDescriptionLength {
		return dErrors.New(dErrors.CodeValidation, "description is too long")
	}
	if r.IncidentDate != nil {
		if _, err := ParseDate(*r.IncidentDate, "incident_date"); err != nil {
			return err
		}
	}
	return nil
}

type AssignClaimRequest struct {
	UserID string `json:"user_id"`
}

func (r *AssignClaimRequest) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
}

func (r *AssignClaimRequest) Validate() error {
	if r.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	return nil
}

type TransitionRequest struct {
	Status string `json:"status"`
}

func (r *TransitionRequest) Validate() error {
	_, err := ParseStatus(r.Status)
	return err
}

type NoteRequest struct {
	Text     string `json:"text"`
	Internal bool   `json:"is_internal"`
}

func (r *NoteRequest) Normalize() {
	r.Text = strings.TrimSpace(r.Text)
}

func (r *NoteRequest) Validate() error {
	switch {
	case r.Text == "":
		return dErrors.New(dErrors.CodeValidation, "text is required")
	case len(r.Text) > maxDescriptionLength:
		return dErrors.New(dErrors.CodeValidation, "text is too long")
	}
	return nil
}

func validateTitle(title string) error {
	switch {
	case title == "":
		return dErrors.New(dErrors.CodeValidation, "title is required")
	case len(title) > maxTitleLength:
		return dErrors.New(dErrors.CodeValidation, "title must be 200 characters or less")
	}
	return nil
}

func trim(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
