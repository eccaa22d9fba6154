package fieldtest

import (
	"fmt"
	"strings"

	"github.com/ppiankov/drillgrade/internal/counter"
	"github.com/ppiankov/drillgrade/internal/model"
)

// Result is the outcome of one spec against one observed value
type Result struct {
	FieldID     string
	Passed      bool
	Explanation string // empty when passed
	Points      int    // Weight when passed, else 0
}

// Evaluate tests one observed value against spec. It has no side
// effects; a null value never panics, and date parse failures become an
// ordinary failed Result.
func Evaluate(spec Spec, v model.Value) Result {
	ok, expected := check(spec, v)
	if ok {
		return Result{FieldID: spec.ID, Passed: true, Points: spec.Weight}
	}
	shown := v.String()
	if spec.Kind.IsDate() && !v.Time.IsZero() {
		shown = v.Time.Format(spec.Layout)
	}
	return Result{
		FieldID:     spec.ID,
		Explanation: fmt.Sprintf("%s (%s) %s", spec.Label, shown, expected),
	}
}

// check returns whether v passes and, when it does not, the "should be"
// clause of the explanation
func check(spec Spec, v model.Value) (bool, string) {
	text := v.Trimmed()

	switch spec.Kind {
	case KindEquals:
		return v.Present && text == spec.Expected, shouldBe(spec.Expected)

	case KindEqualsIgnoreCase, KindSpecified:
		return v.Present && strings.EqualFold(text, spec.Expected), shouldBe(spec.Expected)

	case KindRequired:
		return !v.Blank(), "should be provided"

	case KindRequiredNot:
		if v.Blank() {
			return false, "should be provided"
		}
		return !strings.EqualFold(text, spec.Placeholder), shouldBe("something other than " + spec.Placeholder)

	case KindEmpty:
		return v.Blank(), "should be empty"

	case KindOptional:
		return true, ""

	case KindOptionalNot:
		if v.Blank() {
			return true, ""
		}
		return !strings.EqualFold(text, spec.Placeholder), shouldBe("something other than " + spec.Placeholder)

	case KindDateTime, KindDateTimeOnOrAfter, KindDateTimeOnOrBefore:
		return checkDate(spec, v)

	case KindSetMembership:
		for _, member := range spec.Set {
			member = strings.TrimSpace(member)
			if !v.Present {
				break
			}
			if text == member || (spec.IgnoreCase && strings.EqualFold(text, member)) {
				return true, ""
			}
		}
		return false, shouldBe("one of " + strings.Join(spec.Set, ", "))
	}

	return false, fmt.Sprintf("has unsupported test kind %s", spec.Kind)
}

func checkDate(spec Spec, v model.Value) (bool, string) {
	var clause string
	switch spec.Kind {
	case KindDateTimeOnOrAfter:
		clause = "should be on or after " + spec.Bound.Format(spec.Layout)
	case KindDateTimeOnOrBefore:
		clause = "should be on or before " + spec.Bound.Format(spec.Layout)
	default:
		clause = "should be a date/time like " + spec.Layout
	}

	if v.Blank() {
		return false, clause
	}
	text := v.Text
	if !v.Time.IsZero() {
		// timestamps compare at the precision the layout shows
		text = v.Time.Format(spec.Layout)
	}
	t, err := ParseTime(text, spec.Layout)
	if err != nil {
		return false, "is unparsable, " + clause
	}

	switch spec.Kind {
	case KindDateTimeOnOrAfter:
		return !t.Before(spec.Bound), clause
	case KindDateTimeOnOrBefore:
		return !t.After(spec.Bound), clause
	}
	return true, ""
}

func shouldBe(expected string) string {
	return "should be " + expected
}

// Sink receives evaluation results; grade.Accumulator implements it
type Sink interface {
	Apply(r Result)
	MarkAutomaticFail(reason string)
}

// Evaluator applies specs to values and keeps per-spec pass tallies for
// the run summary. One Evaluator serves one exercise run.
type Evaluator struct {
	passes   *counter.Counter
	attempts *counter.Counter
}

// NewEvaluator creates an Evaluator with empty tallies
func NewEvaluator() *Evaluator {
	return &Evaluator{
		passes:   counter.New(),
		attempts: counter.New(),
	}
}

// Apply evaluates spec against v and folds the result into sink. A failed
// disqualifying spec also marks the sink as an automatic fail.
func (e *Evaluator) Apply(spec Spec, v model.Value, sink Sink) Result {
	return e.Record(spec, Evaluate(spec, v), sink)
}

// Record tallies a result computed outside Evaluate, such as an image
// check, and folds it into sink the same way Apply does
func (e *Evaluator) Record(spec Spec, r Result, sink Sink) Result {
	e.attempts.Increment(spec.Key())
	if r.Passed {
		e.passes.Increment(spec.Key())
	}
	if sink != nil {
		sink.Apply(r)
		if !r.Passed && spec.Disqualifying {
			sink.MarkAutomaticFail(spec.Label)
		}
	}
	return r
}

// PassCount returns how many evaluations of spec passed
func (e *Evaluator) PassCount(spec Spec) int {
	return e.passes.Count(spec.Key())
}

// Attempts returns how many times spec was evaluated
func (e *Evaluator) Attempts(spec Spec) int {
	return e.attempts.Count(spec.Key())
}

// PassRate returns the pass percentage for spec, 0..100
func (e *Evaluator) PassRate(spec Spec) float64 {
	n := e.attempts.Count(spec.Key())
	if n == 0 {
		return 0
	}
	return float64(e.passes.Count(spec.Key())) * 100 / float64(n)
}
