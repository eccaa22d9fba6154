package pipeline

import (
	"fmt"
	"strings"

	"github.com/ppiankov/drillgrade/internal/fieldtest"
	"github.com/ppiankov/drillgrade/internal/model"
	"github.com/ppiankov/drillgrade/internal/p2p"
	"github.com/ppiankov/drillgrade/internal/similarity"
	"github.com/ppiankov/drillgrade/internal/truth"
)

// plan is an exercise compiled for grading: immutable specs plus the
// loaded auxiliary inputs
type plan struct {
	exercise *model.Exercise
	specs    []fieldtest.Spec
	window   []fieldtest.Spec
	lookup   *lookupPlan
	image    *imagePlan
	targets  *p2p.Sheet
}

type lookupPlan struct {
	table    *truth.Table
	keyField string
	label    string
	compares []lookupCompare
}

type lookupCompare struct {
	spec   fieldtest.Spec
	field  string
	column int
}

type imagePlan struct {
	spec     fieldtest.Spec
	suffix   string
	maxBytes int
	min      float64
	scorer   similarity.Scorer
}

// totalWeight is the score of a unit that passes everything
func (p *plan) totalWeight() int {
	total := fieldtest.TotalWeight(p.specs) + fieldtest.TotalWeight(p.window)
	if p.lookup != nil {
		for _, c := range p.lookup.compares {
			total += c.spec.Weight
		}
	}
	if p.image != nil {
		total += p.image.spec.Weight
	}
	return total
}

// label returns the human label for a field id, preferring the label of a
// declared spec
func (p *plan) label(id string) string {
	for _, s := range p.specs {
		if s.ID == id {
			return s.Label
		}
	}
	return id
}

func (pl *Pipeline) compile(ex *model.Exercise) (*plan, error) {
	layout := ex.DateLayout
	if layout == "" {
		layout = fieldtest.DefaultLayout
	}

	specs, err := fieldtest.CompileAll(ex.Fields, layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	p := &plan{exercise: ex, specs: specs}

	if p.window, err = windowSpecs(ex.Window, layout); err != nil {
		return nil, fmt.Errorf("%w: window: %w", ErrConfiguration, err)
	}

	if ex.Lookup != nil {
		if p.lookup, err = compileLookup(ex.Lookup); err != nil {
			return nil, err
		}
	}

	if ex.Image != nil {
		if p.image, err = pl.compileImage(ex.Image); err != nil {
			return nil, err
		}
	}

	if ex.P2P != nil {
		p.targets, err = p2p.LoadTargets(ex.P2P.Targets, ex.P2P.SkipRows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}

	return p, nil
}

// windowSpecs turns the exercise window into date tests on the message
// date, compared as timestamps at the precision of the exercise layout.
// They are disqualifying unless the window says otherwise.
func windowSpecs(w model.Window, layout string) ([]fieldtest.Spec, error) {
	disqualifying := w.Disqualifying == nil || *w.Disqualifying

	var specs []fieldtest.Spec
	add := func(kind fieldtest.Kind, bound string) error {
		t, err := fieldtest.ParseTime(bound, layout)
		if err != nil {
			return err
		}
		specs = append(specs, fieldtest.Spec{
			ID:            model.FieldDate,
			Label:         "Message date",
			Kind:          kind,
			Bound:         t,
			Layout:        layout,
			Disqualifying: disqualifying,
		})
		return nil
	}

	if strings.TrimSpace(w.Open) != "" {
		if err := add(fieldtest.KindDateTimeOnOrAfter, w.Open); err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
	}
	if strings.TrimSpace(w.Close) != "" {
		if err := add(fieldtest.KindDateTimeOnOrBefore, w.Close); err != nil {
			return nil, fmt.Errorf("close: %w", err)
		}
	}
	if len(specs) == 2 && specs[1].Bound.Before(specs[0].Bound) {
		return nil, fmt.Errorf("closes before it opens")
	}
	return specs, nil
}

func compileLookup(cfg *model.LookupConfig) (*lookupPlan, error) {
	table, err := truth.Load(cfg.Path, cfg.SkipRows, cfg.KeyColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	lp := &lookupPlan{
		table:    table,
		keyField: cfg.KeyField,
		label:    cfg.Label,
	}
	if lp.label == "" {
		lp.label = cfg.KeyField
	}

	for _, c := range cfg.Compare {
		label := c.Label
		if label == "" {
			label = c.Field
		}
		lp.compares = append(lp.compares, lookupCompare{
			spec: fieldtest.Spec{
				ID:     "lookup:" + c.Field,
				Label:  label,
				Kind:   fieldtest.KindEqualsIgnoreCase,
				Weight: c.Weight,
			},
			field:  c.Field,
			column: c.Column,
		})
	}
	return lp, nil
}

func (pl *Pipeline) compileImage(cfg *model.ImageConfig) (*imagePlan, error) {
	scorer, err := pl.newScorer(cfg.Reference)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	suffix := cfg.Suffix
	if suffix == "" {
		suffix = ".jpg"
	}

	return &imagePlan{
		spec: fieldtest.Spec{
			ID:            "image",
			Label:         "Image",
			Kind:          fieldtest.KindRequired,
			Weight:        cfg.Weight,
			Disqualifying: cfg.Disqualifying,
		},
		suffix:   suffix,
		maxBytes: cfg.MaxBytes,
		min:      cfg.Threshold,
		scorer:   scorer,
	}, nil
}
