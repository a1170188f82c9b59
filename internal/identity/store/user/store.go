// Package user persists staff users inside a partition. Global users live in
// the public partition; tenant users live in their tenant's partition.
package user

import (
	"fmt"

	"claimdesk/pkg/platform/sentinel"
)

// Uniqueness failures. Each wraps sentinel.ErrAlreadyUsed.
var (
	ErrEmailTaken    = fmt.Errorf("email: %w", sentinel.ErrAlreadyUsed)
	ErrUsernameTaken = fmt.Errorf("username: %w", sentinel.ErrAlreadyUsed)
	ErrPhoneTaken    = fmt.Errorf("phone number: %w", sentinel.ErrAlreadyUsed)
)
