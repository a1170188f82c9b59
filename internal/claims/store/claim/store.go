// Package claim persists claims together with the notes and documents they
// own. Every method takes the partition explicitly.
package claim

import (
	"fmt"

	"claimdesk/pkg/platform/sentinel"
)

// ErrNumberTaken is returned by Create when the claim number is already used
// in the partition.
var ErrNumberTaken = fmt.Errorf("claim number: %w", sentinel.ErrAlreadyUsed)

var (
	errClaimNotFound    = fmt.Errorf("claim not found: %w", sentinel.ErrNotFound)
	errNoteNotFound     = fmt.Errorf("note not found: %w", sentinel.ErrNotFound)
	errDocumentNotFound = fmt.Errorf("document not found: %w", sentinel.ErrNotFound)
	errStatusChanged    = fmt.Errorf("claim status changed concurrently: %w", sentinel.ErrConflict)
)
