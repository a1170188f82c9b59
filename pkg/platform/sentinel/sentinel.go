// Package sentinel holds the store-level facts services translate into
// domain error codes. Validation failures never use these; they are built
// with pkg/domain-errors at the boundary.
package sentinel

import "errors"

var (
	// ErrNotFound: no row for the key in this partition.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyUsed: a unique value is taken (tenant name, hostname, schema,
	// policy or claim number, user email, username or phone).
	ErrAlreadyUsed = errors.New("already used")
	// ErrConflict: a compare-and-set write lost to a concurrent change.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState: the row exists but its lifecycle state forbids the
	// write, such as approving a registration that is no longer pending.
	ErrInvalidState = errors.New("invalid state")
)
