package domain

import (
	"regexp"
	"strings"
)

// MaxSchemaNameLength is the Postgres identifier limit.
const MaxSchemaNameLength = 63

// PublicSchema holds cross-tenant tables and global-scope users.
const PublicSchema = "public"

var schemaNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Partition identifies one tenant's isolated data space. It is resolved once
// per request and passed explicitly to every store call that touches
// tenant-owned data.
//
// Invariants:
//   - Schema matches [a-z][a-z0-9_]* and is at most 63 characters
//   - TenantID is nil only for the public partition
type Partition struct {
	TenantID TenantID
	Schema   string
}

// PublicPartition is the partition for platform-level data.
var PublicPartition = Partition{Schema: PublicSchema}

func (p Partition) IsZero() bool {
	return p.Schema == ""
}

func (p Partition) IsPublic() bool {
	return p.Schema == PublicSchema
}

func (p Partition) String() string {
	return p.Schema
}

// ValidSchemaName reports whether s is a syntactically valid partition id.
func ValidSchemaName(s string) bool {
	return len(s) <= MaxSchemaNameLength && schemaNamePattern.MatchString(s)
}

// ReservedSchemaName reports whether s collides with a schema Postgres or
// the platform owns.
func ReservedSchemaName(s string) bool {
	switch s {
	case PublicSchema, "information_schema":
		return true
	}
	return strings.HasPrefix(s, "pg_")
}
