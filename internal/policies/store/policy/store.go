// Package policy persists policies inside a tenant partition.
package policy

import (
	"fmt"

	"claimdesk/pkg/platform/sentinel"
)

// ErrNumberTaken is returned by Create when the policy number is in use.
var ErrNumberTaken = fmt.Errorf("policy number: %w", sentinel.ErrAlreadyUsed)

var errPolicyNotFound = fmt.Errorf("policy not found: %w", sentinel.ErrNotFound)
