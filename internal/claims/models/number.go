package models

import (
	"fmt"
	"math/rand/v2"
	"regexp"
)

// RandSource yields uniformly distributed integers in [0, n).
// *rand.Rand satisfies it.
type RandSource interface {
	IntN(n int) int
}

// DefaultRand draws from the runtime's shared generator.
type DefaultRand struct{}

func (DefaultRand) IntN(n int) int { return rand.IntN(n) }

const claimNumberPrefix = "CLM-"

var claimNumberPattern = regexp.MustCompile(`^CLM-\d{4}-\d{4}-\d{4}$`)

// GenerateClaimNumber returns a candidate claim number CLM-dddd-dddd-dddd.
// Uniqueness is the caller's concern.
func GenerateClaimNumber(r RandSource) string {
	return claimNumberPrefix + digitGroups(r)
}

// ValidClaimNumber reports whether s has the claim number format.
func ValidClaimNumber(s string) bool {
	return claimNumberPattern.MatchString(s)
}

func digitGroups(r RandSource) string {
	return fmt.Sprintf("%04d-%04d-%04d", r.IntN(10000), r.IntN(10000), r.IntN(10000))
}
