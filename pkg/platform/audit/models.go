package audit

import (
	"context"
	"time"

	id "claimdesk/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so stores
// and sinks can apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers user and tenant lifecycle with regulatory weight.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers authentication failures and denied access.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Action    string
	ActorID   id.UserID
	TenantID  id.TenantID
	Subject   string
	Reason    string
	RequestID string
}

type AuditEvent string

const (
	// Identity
	EventUserCreated AuditEvent = "user_created"
	EventUserDeleted AuditEvent = "user_deleted"
	EventTokenIssued AuditEvent = "token_issued"
	EventAuthFailed  AuditEvent = "auth_failed"

	// Tenancy
	EventRegistrationSubmitted AuditEvent = "registration_submitted"
	EventRegistrationRejected  AuditEvent = "registration_rejected"
	EventTenantProvisioned     AuditEvent = "tenant_provisioned"
	EventProvisioningFailed    AuditEvent = "provisioning_failed"
	EventTenantReclaimed       AuditEvent = "tenant_reclaimed"

	// Policies and claims
	EventPolicyCreated      AuditEvent = "policy_created"
	EventClaimCreated       AuditEvent = "claim_created"
	EventClaimUpdated       AuditEvent = "claim_updated"
	EventClaimDeleted       AuditEvent = "claim_deleted"
	EventClaimAssigned      AuditEvent = "claim_assigned"
	EventClaimStatusChanged AuditEvent = "claim_status_changed"
	EventNoteAdded          AuditEvent = "note_added"
	EventNoteUpdated        AuditEvent = "note_updated"
	EventNoteDeleted        AuditEvent = "note_deleted"
	EventDocumentUploaded   AuditEvent = "document_uploaded"
	EventDocumentDeleted    AuditEvent = "document_deleted"

	EventAccessDenied AuditEvent = "access_denied"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventUserCreated:        CategoryCompliance,
	EventUserDeleted:        CategoryCompliance,
	EventTenantProvisioned:  CategoryCompliance,
	EventTenantReclaimed:    CategoryCompliance,
	EventClaimStatusChanged: CategoryCompliance,
	EventClaimDeleted:       CategoryCompliance,
	EventDocumentDeleted:    CategoryCompliance,

	EventAuthFailed:         CategorySecurity,
	EventAccessDenied:       CategorySecurity,
	EventProvisioningFailed: CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
