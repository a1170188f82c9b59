// Package registration persists self-service tenant registration requests
// until an operator approves or rejects them.
package registration

import (
	"fmt"

	"claimdesk/pkg/platform/sentinel"
)

// ErrDomainPending is returned when another request already asks for the
// same hostname.
var ErrDomainPending = fmt.Errorf("requested domain: %w", sentinel.ErrAlreadyUsed)
