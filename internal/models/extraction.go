package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ExtractedData is the structured result of classification and extraction
// (§4.3): a shared header plus a tagged variant for type-specific fields,
// per §9's design note. Uncertain values appear here as placeholder
// strings ("{{UNKNOWN:<type>:<hint>}}") and are always paired with an
// entry in Unknowns.
type ExtractedData struct {
	DocType         DocumentType              `json:"doc_type"`
	Title           string                    `json:"title"`
	EffectiveDate   *time.Time                `json:"effective_date,omitempty"`
	ExpirationDate  *time.Time                `json:"expiration_date,omitempty"`
	Parties         []ExtractedParty          `json:"parties"`
	AuthorityGrants []ExtractedAuthorityGrant `json:"authority_grants,omitempty"`
	Fields          map[string]any            `json:"fields,omitempty"`
	Unknowns        []ExtractedUnknown        `json:"unknowns"`
}

// ExtractedParty is one party mentioned in the document, pending entity
// resolution.
type ExtractedParty struct {
	Name       string     `json:"name"`
	Role       string     `json:"role"`
	Kind       EntityKind `json:"kind"`
	Confidence float64    `json:"confidence"`
}

// ExtractedAuthorityGrant is one authority relationship mentioned in the
// document, referencing parties by name pending entity resolution.
type ExtractedAuthorityGrant struct {
	GrantorName    string         `json:"grantor_name"`
	GranteeName    string         `json:"grantee_name"`
	Type           string         `json:"type"`
	Scope          map[string]any `json:"scope,omitempty"`
	EffectiveDate  *time.Time     `json:"effective_date,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
}

// ExtractedUnknown is the parallel array entry required for every
// "{{UNKNOWN:...}}" placeholder appearing in the structured result (§4.3).
type ExtractedUnknown struct {
	Type            GapType `json:"type"`
	FieldPath       string  `json:"field_path"`
	PartialValue    string  `json:"partial_value"`
	ContextClues    string  `json:"context_clues"`
	ResolutionHints string  `json:"resolution_hints,omitempty"`
	Confidence      float64 `json:"confidence"`
}

var placeholderPattern = regexp.MustCompile(`\{\{UNKNOWN:([a-z_]+):([^}]*)\}\}`)

// FormatPlaceholder builds the "{{UNKNOWN:<type>:<hint>}}" marker the
// extraction prompt requires for any value the model declines to guess.
func FormatPlaceholder(gapType GapType, hint string) string {
	return fmt.Sprintf("{{UNKNOWN:%s:%s}}", gapType, hint)
}

// IsPlaceholder reports whether s is an UNKNOWN placeholder.
func IsPlaceholder(s string) bool {
	return placeholderPattern.MatchString(strings.TrimSpace(s))
}

// ParsePlaceholder extracts the gap type and hint from a placeholder
// string. ok is false if s is not a well-formed placeholder.
func ParsePlaceholder(s string) (gapType GapType, hint string, ok bool) {
	m := placeholderPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", "", false
	}
	return GapType(m[1]), m[2], true
}

// Validate checks that every placeholder reachable from the header and
// Fields has a matching Unknowns entry, per §4.3's ExtractionSchemaViolation
// rule. It does not attempt to validate placeholders nested inside Fields
// values other than top-level strings; nested validation happens against
// the flattened field paths the extractor itself produced, which are
// expected to already be present in Unknowns before this is called.
func (d *ExtractedData) Validate() error {
	seen := make(map[string]bool, len(d.Unknowns))
	for _, u := range d.Unknowns {
		if u.FieldPath == "" {
			return fmt.Errorf("unknowns entry missing field_path")
		}
		seen[u.FieldPath] = true
	}
	if IsPlaceholder(d.Title) && !seen["title"] {
		return fmt.Errorf("placeholder in title has no matching unknowns entry")
	}
	for i, p := range d.Parties {
		path := fmt.Sprintf("parties[%d].name", i)
		if IsPlaceholder(p.Name) && !seen[path] {
			return fmt.Errorf("placeholder at %s has no matching unknowns entry", path)
		}
	}
	for i, g := range d.AuthorityGrants {
		for _, path := range []string{
			fmt.Sprintf("authorityGrants[%d].grantorName", i),
			fmt.Sprintf("authorityGrants[%d].granteeName", i),
		} {
			val := g.GrantorName
			if strings.Contains(path, "grantee") {
				val = g.GranteeName
			}
			if IsPlaceholder(val) && !seen[path] {
				return fmt.Errorf("placeholder at %s has no matching unknowns entry", path)
			}
		}
	}
	for key, v := range d.Fields {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if IsPlaceholder(s) && !seen[key] && !seen["fields."+key] {
			return fmt.Errorf("placeholder at fields.%s has no matching unknowns entry", key)
		}
	}
	return nil
}
