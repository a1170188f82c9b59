// Package partition creates and drops tenant data partitions.
package partition

import (
	"fmt"

	"claimdesk/pkg/platform/sentinel"
)

// ErrExists is returned when the partition id is already in use.
var ErrExists = fmt.Errorf("partition: %w", sentinel.ErrAlreadyUsed)
