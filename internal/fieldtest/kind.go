package fieldtest

import (
	"fmt"
	"strings"
)

// Kind selects how a field is tested
type Kind int

const (
	KindUnknown Kind = iota
	KindEquals
	KindEqualsIgnoreCase
	KindRequired
	KindRequiredNot
	KindEmpty
	KindOptional
	KindOptionalNot
	KindDateTime
	KindDateTimeOnOrAfter
	KindDateTimeOnOrBefore
	KindSpecified
	KindSetMembership
)

var kindNames = map[Kind]string{
	KindEquals:             "EQUALS",
	KindEqualsIgnoreCase:   "EQUALS_IGNORE_CASE",
	KindRequired:           "REQUIRED",
	KindRequiredNot:        "REQUIRED_NOT",
	KindEmpty:              "EMPTY",
	KindOptional:           "OPTIONAL",
	KindOptionalNot:        "OPTIONAL_NOT",
	KindDateTime:           "DATE_TIME",
	KindDateTimeOnOrAfter:  "DATE_TIME_ON_OR_AFTER",
	KindDateTimeOnOrBefore: "DATE_TIME_ON_OR_BEFORE",
	KindSpecified:          "SPECIFIED",
	KindSetMembership:      "SET_MEMBERSHIP",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseKind accepts the kind names case-insensitively, with '-' or ' ' in
// place of '_' ("equals-ignore-case", "Date Time On Or After")
func ParseKind(s string) (Kind, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	for k, name := range kindNames {
		if name == norm {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown field test kind %q", s)
}

// AllowsNull reports whether a null observed value can pass this kind
func (k Kind) AllowsNull() bool {
	return k == KindEmpty || k == KindOptional || k == KindOptionalNot
}

// IsDate reports whether the kind parses the observed value as a date/time
func (k Kind) IsDate() bool {
	return k == KindDateTime || k == KindDateTimeOnOrAfter || k == KindDateTimeOnOrBefore
}
