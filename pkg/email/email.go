// Package email derives presentation details from staff and contact
// addresses.
package email

import (
	"strings"
	"unicode"
)

// DisplayName builds a human name from the local part of an address:
// "jane.doe+claims@acme.test" becomes "Jane Doe". Addresses without a
// usable local part yield "there", so greetings still read naturally.
func DisplayName(address string) string {
	local := strings.TrimSpace(address)
	if at := strings.IndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}
	if plus := strings.IndexByte(local, '+'); plus >= 0 {
		local = local[:plus]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if w := capitalize(p); w != "" {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return "there"
	}
	return strings.Join(words, " ")
}

// Domain returns the lower-cased host part of address, or "" when there is
// none.
func Domain(address string) string {
	at := strings.LastIndexByte(address, '@')
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(address[at+1:]))
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 || !unicode.IsLetter(runes[0]) && !unicode.IsDigit(runes[0]) {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
