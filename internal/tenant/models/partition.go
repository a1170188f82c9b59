package models

import (
	"math/rand/v2"
	"net"
	"regexp"
	"strings"

	id "claimdesk/pkg/domain"
)

// RandSource is the subset of *rand.Rand used for generated identifiers.
type RandSource interface {
	IntN(n int) int
}

// DefaultRand draws from the package-level generator.
type DefaultRand struct{}

func (DefaultRand) IntN(n int) int { return rand.IntN(n) }

const (
	letters      = "abcdefghijklmnopqrstuvwxyz"
	randomSuffix = 8
)

var disallowedPartitionChars = regexp.MustCompile(`[^a-z0-9_]`)

// DerivePartitionID turns a company name into a partition id: lowercase,
// spaces become underscores, everything outside [a-z0-9_] is dropped, a
// leading non-letter or a reserved schema name gets the cmp_ prefix and the
// result is cut to 63 characters. A name with nothing but underscores left
// after cleaning gets a random company_ id.
func DerivePartitionID(companyName string, r RandSource) string {
	s := strings.ReplaceAll(strings.ToLower(companyName), " ", "_")
	s = disallowedPartitionChars.ReplaceAllString(s, "")
	if strings.Trim(s, "_") == "" {
		return "company_" + randomLetters(r, randomSuffix)
	}
	if s[0] < 'a' || s[0] > 'z' || id.ReservedSchemaName(s) {
		s = "cmp_" + s
	}
	return truncate(s, id.MaxSchemaNameLength)
}

// RandomizedPartitionID is the fallback used after a collision: the derived
// id shortened to leave room for an underscore and eight random letters.
func RandomizedPartitionID(companyName string, r RandSource) string {
	base := DerivePartitionID(companyName, r)
	if id.ReservedSchemaName(base + "_") {
		base = "cmp_" + base
	}
	base = truncate(base, id.MaxSchemaNameLength-randomSuffix-1)
	return strings.TrimRight(base, "_") + "_" + randomLetters(r, randomSuffix)
}

// GenerateTenantCode returns a short code: up to three letters from the
// company name followed by six digits.
func GenerateTenantCode(companyName string, r RandSource) string {
	var prefix strings.Builder
	for _, c := range strings.ToUpper(companyName) {
		if c >= 'A' && c <= 'Z' {
			prefix.WriteRune(c)
			if prefix.Len() == 3 {
				break
			}
		}
	}
	if prefix.Len() == 0 {
		prefix.WriteString("T")
	}
	digits := make([]byte, 6)
	for i := range digits {
		digits[i] = byte('0' + r.IntN(10))
	}
	return prefix.String() + string(digits)
}

var domainLabel = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidDomainLabel reports whether s is one DNS label.
func ValidDomainLabel(s string) bool {
	return domainLabel.MatchString(s)
}

// NormalizeHost lowercases a Host header value and strips the port and a
// trailing dot.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

func randomLetters(r RandSource, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[r.IntN(len(letters))]
	}
	return string(b)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
