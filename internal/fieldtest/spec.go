// Package fieldtest evaluates declared field assertions against observed
// message values.
package fieldtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/drillgrade/internal/model"
)

// DefaultLayout is the date/time layout used when neither the field nor
// the exercise names one
const DefaultLayout = model.MessageDateLayout

// Spec is one compiled field assertion. Specs are built once per exercise
// and never modified; pass tallies live in the Evaluator.
type Spec struct {
	ID            string
	Label         string
	Kind          Kind
	Expected      string
	Placeholder   string
	Set           []string
	Bound         time.Time
	Layout        string
	Weight        int
	Disqualifying bool
	IgnoreCase    bool
}

// Compile validates a field declaration and turns it into a Spec.
// defaultLayout applies to date kinds that do not set their own layout.
func Compile(cfg model.FieldConfig, defaultLayout string) (Spec, error) {
	if strings.TrimSpace(cfg.ID) == "" {
		return Spec{}, fmt.Errorf("field without id")
	}
	kind, err := ParseKind(cfg.Kind)
	if err != nil {
		return Spec{}, fmt.Errorf("field %s: %w", cfg.ID, err)
	}
	if cfg.Weight < 0 {
		return Spec{}, fmt.Errorf("field %s: negative weight %d", cfg.ID, cfg.Weight)
	}

	spec := Spec{
		ID:            cfg.ID,
		Label:         cfg.Label,
		Kind:          kind,
		Expected:      strings.TrimSpace(cfg.Expected),
		Placeholder:   strings.TrimSpace(cfg.Placeholder),
		Set:           cfg.Set,
		Layout:        cfg.Layout,
		Weight:        cfg.Weight,
		Disqualifying: cfg.Disqualifying,
		IgnoreCase:    cfg.IgnoreCase,
	}
	if spec.Label == "" {
		spec.Label = cfg.ID
	}
	if spec.Layout == "" {
		spec.Layout = defaultLayout
	}
	if spec.Layout == "" {
		spec.Layout = DefaultLayout
	}

	switch kind {
	case KindDateTimeOnOrAfter, KindDateTimeOnOrBefore:
		if cfg.Bound == "" {
			return Spec{}, fmt.Errorf("field %s: %s needs a bound", cfg.ID, kind)
		}
		bound, err := ParseTime(cfg.Bound, spec.Layout)
		if err != nil {
			return Spec{}, fmt.Errorf("field %s: bound: %w", cfg.ID, err)
		}
		spec.Bound = bound
	case KindSetMembership:
		if len(cfg.Set) == 0 {
			return Spec{}, fmt.Errorf("field %s: %s needs a non-empty set", cfg.ID, kind)
		}
	case KindRequiredNot, KindOptionalNot:
		if spec.Placeholder == "" {
			return Spec{}, fmt.Errorf("field %s: %s needs a placeholder", cfg.ID, kind)
		}
	case KindSpecified:
		if spec.Expected == "" {
			return Spec{}, fmt.Errorf("field %s: %s needs an expected value", cfg.ID, kind)
		}
	}

	return spec, nil
}

// CompileAll compiles every field declaration, stopping at the first error
func CompileAll(cfgs []model.FieldConfig, defaultLayout string) ([]Spec, error) {
	specs := make([]Spec, 0, len(cfgs))
	seen := make(map[string]bool, len(cfgs))
	for _, cfg := range cfgs {
		spec, err := Compile(cfg, defaultLayout)
		if err != nil {
			return nil, err
		}
		if seen[spec.Key()] {
			return nil, fmt.Errorf("field %s: duplicate %s test", spec.ID, spec.Kind)
		}
		seen[spec.Key()] = true
		specs = append(specs, spec)
	}
	return specs, nil
}

// Key identifies a spec within one exercise; a field may carry several
// tests of different kinds
func (s Spec) Key() string {
	return s.ID + "#" + s.Kind.String()
}

// ParseTime parses s with layout, reading zone-less text as UTC. When the
// layout carries no zone element, a trailing "Z" or "UTC" designator, as
// typed on many forms, is ignored. The result is always in UTC.
func ParseTime(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil && !hasZone(layout) {
		bare := strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(s, "UTC"), "Z"))
		if bare != s {
			t, err = time.ParseInLocation(layout, bare, time.UTC)
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q with layout %q: %w", s, layout, err)
	}
	return t.UTC(), nil
}

// hasZone reports whether layout has a zone offset or abbreviation element
func hasZone(layout string) bool {
	return strings.Contains(layout, "Z07") ||
		strings.Contains(layout, "-07") ||
		strings.Contains(layout, "MST")
}

// TotalWeight sums the weights of specs
func TotalWeight(specs []Spec) int {
	total := 0
	for _, s := range specs {
		total += s.Weight
	}
	return total
}
