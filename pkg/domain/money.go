package domain

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	dErrors "claimdesk/pkg/domain-errors"
)

// Amount is a non-negative monetary value in minor units (cents). On the
// wire it is a decimal string with two fractional digits, e.g. "1250.00".
type Amount int64

// ParseAmount parses a decimal with at most two fractional digits.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	invalid := dErrors.Newf(dErrors.CodeValidation, "invalid amount %q", s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, invalid
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || (hasFrac && (frac == "" || len(frac) > 2)) {
		return 0, invalid
	}
	for len(frac) < 2 {
		frac += "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, invalid
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || units > (1<<62)/100 {
		return 0, invalid
	}
	return Amount(units*100 + cents), nil
}

func (a Amount) String() string {
	return fmt.Sprintf("%d.%02d", int64(a)/100, int64(a)%100)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(a.String())), nil
}

// UnmarshalJSON accepts both "12.50" and 12.5.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		var err error
		if s, err = strconv.Unquote(s); err != nil {
			return dErrors.New(dErrors.CodeValidation, "invalid amount")
		}
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
