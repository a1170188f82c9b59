// Package tenant persists tenants and the domains that route to them.
package tenant

import (
	"fmt"

	"claimdesk/pkg/platform/sentinel"
)

// Uniqueness failures of CreateWithDomain. All wrap sentinel.ErrAlreadyUsed.
var (
	ErrNameTaken      = fmt.Errorf("tenant name: %w", sentinel.ErrAlreadyUsed)
	ErrCodeTaken      = fmt.Errorf("tenant code: %w", sentinel.ErrAlreadyUsed)
	ErrPartitionTaken = fmt.Errorf("partition id: %w", sentinel.ErrAlreadyUsed)
	ErrDomainTaken    = fmt.Errorf("domain: %w", sentinel.ErrAlreadyUsed)
)
