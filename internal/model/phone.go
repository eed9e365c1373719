package model

import "strings"

// NormalizePhone reduces a phone number to a canonical form for use as the
// customer dedup key: digits only, with a single leading + preserved when
// present. Formatting characters (spaces, dashes, dots, parens) are dropped.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
