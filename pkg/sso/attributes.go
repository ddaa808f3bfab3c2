package sso

import "strings"

// AttributeKind distinguishes the three shapes an IdP attribute shows
// up in: not present at all, one value, or several.
type AttributeKind int

const (
	// AttributeAbsent means the attribute was not in the payload, or
	// every value was blank.
	AttributeAbsent AttributeKind = iota
	// AttributeSingle means exactly one non-blank value.
	AttributeSingle
	// AttributeMulti means two or more non-blank values.
	AttributeMulti
)

// AttributeValue is a normalized attribute. Blank and whitespace-only
// values are dropped during normalization, so Values never contains
// empty strings and Kind reflects what actually survived.
type AttributeValue struct {
	Kind   AttributeKind
	Values []string
}

// First returns the first value, or "" when the attribute is absent.
// This is the only accessor mapping code should use for scalar fields;
// it cannot index out of range on ragged payloads.
func (v AttributeValue) First() string {
	if len(v.Values) == 0 {
		return ""
	}
	return v.Values[0]
}

// All returns every value. The returned slice is the value's own; do
// not mutate it.
func (v AttributeValue) All() []string {
	return v.Values
}

// Present reports whether the attribute carried at least one usable
// value.
func (v AttributeValue) Present() bool {
	return v.Kind != AttributeAbsent
}

// NormalizeAttributes folds a raw attribute payload into normalized
// values. Values are trimmed; blank values are discarded. A key whose
// values were all blank normalizes to an Absent value rather than
// disappearing, so callers can tell "sent but empty" from "never sent"
// by map membership.
func NormalizeAttributes(raw map[string][]string) map[string]AttributeValue {
	normalized := make(map[string]AttributeValue, len(raw))
	for name, values := range raw {
		kept := make([]string, 0, len(values))
		for _, v := range values {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				kept = append(kept, trimmed)
			}
		}

		switch len(kept) {
		case 0:
			normalized[name] = AttributeValue{Kind: AttributeAbsent}
		case 1:
			normalized[name] = AttributeValue{Kind: AttributeSingle, Values: kept}
		default:
			normalized[name] = AttributeValue{Kind: AttributeMulti, Values: kept}
		}
	}
	return normalized
}

// lookup returns the normalized value for name, or an Absent value for
// unmapped or missing names.
func lookup(attrs map[string]AttributeValue, name string) AttributeValue {
	if name == "" {
		return AttributeValue{Kind: AttributeAbsent}
	}
	return attrs[name]
}
