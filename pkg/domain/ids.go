// Package domain holds the typed identifiers shared across modules.
//
// UUID-backed identifiers (tenants, users) and database-sequence identifiers
// (claims, policies, notes, documents, registrations) are distinct types so
// the compiler rejects cross-assignment. Construct them with the Parse
// functions at trust boundaries.
package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	dErrors "claimdesk/pkg/domain-errors"
)

type (
	TenantID uuid.UUID
	UserID   uuid.UUID
)

type (
	ClaimID        int64
	PolicyID       int64
	NoteID         int64
	DocumentID     int64
	RegistrationID int64
)

const maxIDLength = 64

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s is required", label)
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "invalid %s", label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "invalid %s", label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s cannot be nil", label)
	}
	return u, nil
}

// ParseTenantID parses a non-nil UUID.
func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID(s, "tenant id")
	return TenantID(u), err
}

// ParseUserID parses a user identifier. User ids are random (version 4)
// UUIDs; any other version is rejected.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	if err != nil {
		return UserID{}, err
	}
	if u.Version() != 4 || u.Variant() != uuid.RFC4122 {
		return UserID{}, dErrors.New(dErrors.CodeValidation, "user id must be a version 4 uuid")
	}
	return UserID(u), nil
}

// NewUserID returns a fresh random user id.
func NewUserID() UserID {
	return UserID(uuid.New())
}

// NewTenantID returns a fresh random tenant id.
func NewTenantID() TenantID {
	return TenantID(uuid.New())
}

func (id TenantID) String() string { return uuid.UUID(id).String() }
func (id TenantID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UserID) String() string   { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

func (id TenantID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }

func (id *TenantID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "invalid tenant id")
	}
	*id = TenantID(u)
	return nil
}

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "invalid user id")
	}
	*id = UserID(u)
	return nil
}

func parseSerial(s, label string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.Newf(dErrors.CodeValidation, "%s is required", label)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.Newf(dErrors.CodeValidation, "invalid %s", label)
	}
	return n, nil
}

// ParseClaimID parses a positive decimal claim id.
func ParseClaimID(s string) (ClaimID, error) {
	n, err := parseSerial(s, "claim id")
	return ClaimID(n), err
}

func ParsePolicyID(s string) (PolicyID, error) {
	n, err := parseSerial(s, "policy id")
	return PolicyID(n), err
}

func ParseNoteID(s string) (NoteID, error) {
	n, err := parseSerial(s, "note id")
	return NoteID(n), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	n, err := parseSerial(s, "document id")
	return DocumentID(n), err
}

func ParseRegistrationID(s string) (RegistrationID, error) {
	n, err := parseSerial(s, "registration id")
	return RegistrationID(n), err
}
