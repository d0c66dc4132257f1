// Package silver standardizes Bronze data into the Silver layer: one
// relation pipeline per entity, shared canonicalization rules, embedding
// text computation. All transformation work happens inside the engine.
package silver

import (
	"fmt"
	"sort"
	"strings"
)

// placeholderZip is a known bogus ZIP emitted by an upstream geocoder.
const placeholderZip = "90001"

// stateCodes maps lowercase full state names to their two-letter codes,
// covering the 50 states plus DC.
var stateCodes = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"district of columbia": "DC", "florida": "FL", "georgia": "GA", "hawaii": "HI",
	"idaho": "ID", "illinois": "IL", "indiana": "IN", "iowa": "IA",
	"kansas": "KS", "kentucky": "KY", "louisiana": "LA", "maine": "ME",
	"maryland": "MD", "massachusetts": "MA", "michigan": "MI", "minnesota": "MN",
	"mississippi": "MS", "missouri": "MO", "montana": "MT", "nebraska": "NE",
	"nevada": "NV", "new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM",
	"new york": "NY", "north carolina": "NC", "north dakota": "ND", "ohio": "OH",
	"oklahoma": "OK", "oregon": "OR", "pennsylvania": "PA", "rhode island": "RI",
	"south carolina": "SC", "south dakota": "SD", "tennessee": "TN", "texas": "TX",
	"utah": "UT", "vermont": "VT", "virginia": "VA", "washington": "WA",
	"west virginia": "WV", "wisconsin": "WI", "wyoming": "WY",
}

// stateNames is the reverse map, code to canonical full name.
var stateNames = func() map[string]string {
	m := make(map[string]string, len(stateCodes))
	for name, code := range stateCodes {
		m[code] = canonicalCase(name)
	}
	return m
}()

func canonicalCase(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		if w == "of" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// StateCode maps a state name or code to the two-letter code. Codes pass
// through uppercased; unknown values map to empty. Idempotent.
func StateCode(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	upper := strings.ToUpper(s)
	if _, ok := stateNames[upper]; ok {
		return upper
	}
	if code, ok := stateCodes[strings.ToLower(s)]; ok {
		return code
	}
	return ""
}

// StateName maps a code or name to the canonical full name. Unknown values
// pass through trimmed. Idempotent.
func StateName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if name, ok := stateNames[strings.ToUpper(s)]; ok {
		return name
	}
	if _, ok := stateCodes[strings.ToLower(s)]; ok {
		return canonicalCase(strings.ToLower(s))
	}
	return s
}

// sortedStateNames returns the full names in deterministic order so that
// generated SQL is stable across runs.
func sortedStateNames() []string {
	names := make([]string, 0, len(stateCodes))
	for name := range stateCodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StateCodeSQL renders a CASE expression applying StateCode to a column.
func StateCodeSQL(expr string) string {
	var b strings.Builder
	b.WriteString("CASE")
	fmt.Fprintf(&b, " WHEN upper(trim(%s)) IN (", expr)
	for i, name := range sortedStateNames() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("'" + stateCodes[name] + "'")
	}
	fmt.Fprintf(&b, ") THEN upper(trim(%s))", expr)
	for _, name := range sortedStateNames() {
		fmt.Fprintf(&b, " WHEN lower(trim(%s)) = '%s' THEN '%s'", expr, name, stateCodes[name])
	}
	b.WriteString(" ELSE NULL END")
	return b.String()
}

// StateNameSQL renders a CASE expression applying StateName to a column.
func StateNameSQL(expr string) string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, name := range sortedStateNames() {
		fmt.Fprintf(&b, " WHEN upper(trim(%s)) = '%s' THEN '%s'", expr, stateCodes[name], canonicalCase(name))
		fmt.Fprintf(&b, " WHEN lower(trim(%s)) = '%s' THEN '%s'", expr, name, canonicalCase(name))
	}
	fmt.Fprintf(&b, " ELSE trim(%s) END", expr)
	return b.String()
}

// ZipStatus classifies a raw ZIP string. The literal placeholder value
// wins over the 5-digit shape.
func ZipStatus(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return "missing"
	case s == placeholderZip:
		return "placeholder"
	case isFiveDigits(s):
		return "valid"
	default:
		return "invalid"
	}
}

func isFiveDigits(s string) bool {
	if len(s) != 5 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ZipStatusSQL renders the ZipStatus classification for a column.
func ZipStatusSQL(expr string) string {
	return fmt.Sprintf(
		"CASE WHEN %[1]s IS NULL OR trim(%[1]s) = '' THEN 'missing'"+
			" WHEN trim(%[1]s) = '%[2]s' THEN 'placeholder'"+
			" WHEN regexp_matches(trim(%[1]s), '^[0-9]{5}$') THEN 'valid'"+
			" ELSE 'invalid' END",
		expr, placeholderZip)
}

// StripCountySuffix removes a trailing " County" from a county name.
// Idempotent: the suffix appears at most once in source data and the
// stripped form no longer matches.
func StripCountySuffix(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimSuffix(s, " County")
}

// StripCountySuffixSQL renders StripCountySuffix for a column.
func StripCountySuffixSQL(expr string) string {
	return fmt.Sprintf("regexp_replace(trim(%s), ' County$', '')", expr)
}

// LowerAlnumSQL lowercases a column and strips every non-alphanumeric
// character, the normal form used in hierarchical IDs.
func LowerAlnumSQL(expr string) string {
	return fmt.Sprintf("lower(regexp_replace(%s, '[^a-zA-Z0-9]', '', 'g'))", expr)
}

// HierarchyIDSQL renders the child_parent ID form shared by every level of
// the geographic hierarchy.
func HierarchyIDSQL(childExpr, parentExpr string) string {
	return LowerAlnumSQL(childExpr) + " || '_' || " + LowerAlnumSQL(parentExpr)
}
