package util

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when the input carries no country prefix.
// The studio is London-based, so bare national numbers are treated as GB.
const DefaultRegion = "GB"

// NormalizePhone normalizes user input into E.164 (+447700900123).
// Falls back to a best-effort cleanup when libphonenumber cannot parse.
func NormalizePhone(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	num, err := phonenumbers.Parse(s, DefaultRegion)
	if err == nil && phonenumbers.IsPossibleNumber(num) {
		return phonenumbers.Format(num, phonenumbers.E164)
	}

	// keep digits and a leading plus so at least dedupe keys stay stable
	var b strings.Builder
	for i, r := range s {
		if r >= '0' && r <= '9' || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidPhone reports whether the input parses to a possible number.
func ValidPhone(raw string) bool {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), DefaultRegion)
	return err == nil && phonenumbers.IsPossibleNumber(num)
}
