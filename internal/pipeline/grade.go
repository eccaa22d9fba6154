package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/ppiankov/drillgrade/internal/counter"
	"github.com/ppiankov/drillgrade/internal/fieldtest"
	"github.com/ppiankov/drillgrade/internal/grade"
	"github.com/ppiankov/drillgrade/internal/model"
	"github.com/ppiankov/drillgrade/internal/report"
	"go.uber.org/zap"
)

// unit is one graded message, or one sender with all of their messages
type unit struct {
	call     string
	messages []*model.Message // date order; the last one is the latest
	columns  []string
	grade    grade.Grade
}

func (u *unit) latest() *model.Message {
	return u.messages[len(u.messages)-1]
}

// grade evaluates every unit sequentially. Each unit gets a fresh
// accumulator; run-level tallies go to the evaluator and counters.
// Cancelling ctx aborts grading with the context's error.
func (p *Pipeline) grade(ctx context.Context, pl *plan, messages []model.Message, summary *report.Summary) ([]*unit, error) {
	ev := fieldtest.NewEvaluator()
	acc := grade.NewAccumulator()

	counters := make([]*counter.Counter, len(pl.exercise.Counted))
	for i := range counters {
		counters[i] = counter.New()
	}

	units := groupUnits(pl.exercise, messages)
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		acc.Reset()
		if err := p.gradeUnit(ctx, pl, ev, acc, u); err != nil {
			return nil, err
		}
		u.grade = acc.Finalize()
		u.columns = columns(pl, u)

		summary.Scores = append(summary.Scores, u.grade.Score)
		if u.grade.AutomaticFail {
			summary.AutomaticFails++
		}
		for _, m := range u.messages {
			for i, id := range pl.exercise.Counted {
				counters[i].IncrementValue(m.Value(id))
			}
		}
	}

	for _, s := range allSpecs(pl) {
		summary.Fields = append(summary.Fields, report.FieldStat{
			Label:    s.Label,
			Passes:   ev.PassCount(s),
			Attempts: ev.Attempts(s),
		})
	}
	for i, id := range pl.exercise.Counted {
		summary.Histograms = append(summary.Histograms, report.Histogram{Title: pl.label(id), Counter: counters[i]})
	}

	return units, nil
}

func allSpecs(pl *plan) []fieldtest.Spec {
	specs := append([]fieldtest.Spec{}, pl.window...)
	specs = append(specs, pl.specs...)
	if pl.lookup != nil {
		for _, c := range pl.lookup.compares {
			specs = append(specs, c.spec)
		}
	}
	if pl.image != nil {
		specs = append(specs, pl.image.spec)
	}
	return specs
}

// groupUnits makes one unit per message, or one per sender ordered by call
func groupUnits(ex *model.Exercise, messages []model.Message) []*unit {
	if ex.EffectiveUnit() == model.UnitMessage {
		units := make([]*unit, 0, len(messages))
		for i := range messages {
			m := &messages[i]
			units = append(units, &unit{call: model.NormalizeCall(m.From), messages: []*model.Message{m}})
		}
		return units
	}

	bySender := make(map[string]*unit)
	for i := range messages {
		m := &messages[i]
		call := model.NormalizeCall(m.From)
		u, ok := bySender[call]
		if !ok {
			u = &unit{call: call}
			bySender[call] = u
		}
		u.messages = append(u.messages, m)
	}

	units := make([]*unit, 0, len(bySender))
	for _, u := range bySender {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].call < units[j].call })
	return units
}

func (p *Pipeline) gradeUnit(ctx context.Context, pl *plan, ev *fieldtest.Evaluator, acc *grade.Accumulator, u *unit) error {
	for _, s := range pl.window {
		ev.Apply(s, pickValue(s, u.messages), acc)
	}
	for _, s := range pl.specs {
		ev.Apply(s, pickValue(s, u.messages), acc)
	}

	if pl.lookup != nil {
		p.applyLookup(pl.lookup, ev, acc, u.latest())
	}
	if pl.image != nil {
		if err := p.applyImage(ctx, pl.image, ev, acc, u); err != nil {
			return err
		}
	}

	if required := pl.exercise.MinMessages; pl.exercise.EffectiveUnit() == model.UnitSender && len(u.messages) < required {
		acc.MarkAutomaticFail(fmt.Sprintf("%d message(s) sent, should be at least %d", len(u.messages), required))
	}
	return nil
}

// pickValue chooses the observed value for a spec. A single message
// supplies its own value. Across a sender's messages the most recent
// passing value counts, else the latest message's value.
func pickValue(s fieldtest.Spec, messages []*model.Message) model.Value {
	for i := len(messages) - 1; i >= 0; i-- {
		v := messages[i].Value(s.ID)
		if len(messages) == 1 || fieldtest.Evaluate(s, v).Passed {
			return v
		}
	}
	return messages[len(messages)-1].Value(s.ID)
}

func (p *Pipeline) applyLookup(lp *lookupPlan, ev *fieldtest.Evaluator, acc *grade.Accumulator, m *model.Message) {
	key := m.Value(lp.keyField)
	if _, ok := lp.table.Lookup(key.Trimmed()); key.Blank() || !ok {
		acc.Explain(fmt.Sprintf("%s (%s) should be a known value from %s", lp.label, key, filepath.Base(lp.table.Path())))
		return
	}

	for _, c := range lp.compares {
		spec := c.spec
		spec.Expected, _ = lp.table.Cell(key.Trimmed(), c.column)
		ev.Apply(spec, m.Value(c.field), acc)
	}
}

// applyImage scores the unit's latest matching attachment. Only a
// cancelled or expired ctx is returned as an error; every other scoring
// failure becomes part of the grade.
func (p *Pipeline) applyImage(ctx context.Context, ip *imagePlan, ev *fieldtest.Evaluator, acc *grade.Accumulator, u *unit) error {
	var (
		name string
		data []byte
		ok   bool
	)
	for i := len(u.messages) - 1; i >= 0 && !ok; i-- {
		name, data, ok = u.messages[i].AttachmentWithSuffix(ip.suffix)
	}

	r := fieldtest.Result{FieldID: ip.spec.ID}
	switch {
	case !ok:
		r.Explanation = fmt.Sprintf("%s (null) should be attached as *%s", ip.spec.Label, ip.suffix)
	case ip.maxBytes > 0 && len(data) > ip.maxBytes:
		r.Explanation = fmt.Sprintf("%s (%s, %d bytes) should be at most %d bytes", ip.spec.Label, name, len(data), ip.maxBytes)
	default:
		score, err := ip.scorer.Score(ctx, data)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("score %s: %w", name, err)
		case err != nil:
			p.logger.Debug("image not scored", zap.String("attachment", name), zap.Error(err))
			r.Explanation = fmt.Sprintf("%s (%s) is unreadable, should be an image like the reference", ip.spec.Label, name)
		case score < ip.min:
			r.Explanation = fmt.Sprintf("%s (%s, similarity %s) should be similar to the reference (%s)",
				ip.spec.Label, name, strconv.FormatFloat(score, 'f', 2, 64), strconv.FormatFloat(ip.min, 'f', 2, 64))
		default:
			r.Passed = true
			r.Points = ip.spec.Weight
		}
	}

	ev.Record(ip.spec, r, acc)
	return nil
}

// header names the leading CSV columns
func header(pl *plan) []string {
	var h []string
	if pl.exercise.EffectiveUnit() == model.UnitSender {
		h = []string{"Sender", "Messages", "Latest"}
	} else {
		h = []string{"Message", "From", "Date", "Kind"}
	}
	for _, id := range pl.exercise.Columns {
		h = append(h, pl.label(id))
	}
	return h
}

func columns(pl *plan, u *unit) []string {
	m := u.latest()
	var c []string
	if pl.exercise.EffectiveUnit() == model.UnitSender {
		c = []string{u.call, strconv.Itoa(len(u.messages)), m.Date.UTC().Format(model.MessageDateLayout)}
	} else {
		c = []string{m.ID, m.From, m.Date.UTC().Format(model.MessageDateLayout), m.Kind}
	}
	for _, id := range pl.exercise.Columns {
		c = append(c, m.Value(id).Trimmed())
	}
	return c
}
