package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "claimdesk/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseUserID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
	})
}

// TestParseUserID_VersionFour pins user ids to random UUIDs. Path parameters
// that parse as UUIDs of another version are rejected.
func TestParseUserID_VersionFour(t *testing.T) {
	t.Run("rejects version 1", func(t *testing.T) {
		v1, err := uuid.NewUUID()
		require.NoError(t, err)
		_, err = ParseUserID(v1.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects version 7", func(t *testing.T) {
		v7, err := uuid.NewV7()
		require.NoError(t, err)
		_, err = ParseUserID(v7.String())
		require.Error(t, err)
	})

	t.Run("tenant ids accept any version", func(t *testing.T) {
		v7, err := uuid.NewV7()
		require.NoError(t, err)
		_, err = ParseTenantID(v7.String())
		require.NoError(t, err)
	})
}

func TestTypeDistinction(t *testing.T) {
	userID := UserID(uuid.New())
	tenantID := TenantID(uuid.New())

	// var _ UserID = tenantID   // compile error
	// var _ TenantID = userID   // compile error
	assert.NotEqual(t, uuid.UUID(userID), uuid.UUID(tenantID))
}

func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE users;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Unicode zero-width space", "550e8400\u200B-e29b-41d4-a716-446655440000", true},

		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},

		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUserID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestParseSerialIDs(t *testing.T) {
	t.Run("accepts positive integers", func(t *testing.T) {
		id, err := ParseClaimID("42")
		require.NoError(t, err)
		assert.Equal(t, ClaimID(42), id)
	})

	for _, input := range []string{"", "0", "-3", "abc", "1.5", "99999999999999999999"} {
		t.Run("rejects "+input, func(t *testing.T) {
			_, err := ParseClaimID(input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

			_, err = ParseDocumentID(input)
			require.Error(t, err)
		})
	}
}

func TestSchemaNames(t *testing.T) {
	assert.True(t, ValidSchemaName("acme_insurance"))
	assert.True(t, ValidSchemaName("cmp_123"))
	assert.False(t, ValidSchemaName("1acme"))
	assert.False(t, ValidSchemaName("Acme"))
	assert.False(t, ValidSchemaName("acme-insurance"))
	assert.False(t, ValidSchemaName(""))
	assert.False(t, ValidSchemaName("a"+strings.Repeat("b", MaxSchemaNameLength)))

	assert.True(t, ReservedSchemaName("public"))
	assert.True(t, ReservedSchemaName("pg_catalog"))
	assert.True(t, ReservedSchemaName("information_schema"))
	assert.False(t, ReservedSchemaName("acme"))
}
