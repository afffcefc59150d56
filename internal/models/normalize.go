package models

import "strings"

// normalizeWhitespace lowercases s and collapses runs of whitespace to a
// single space, trimming the ends. Used for entity names and gap
// fingerprint inputs so equivalent-looking values collapse to one key.
func normalizeWhitespace(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}
