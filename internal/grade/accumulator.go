// Package grade rolls field evaluations into a clamped score with
// human-readable explanations.
package grade

import (
	"strings"

	"github.com/ppiankov/drillgrade/internal/fieldtest"
)

const (
	// PerfectScore is the explanation when nothing was found wrong
	PerfectScore = "Perfect Score!"

	// MaxScore and MinScore bound every finalized grade
	MaxScore = 100
	MinScore = 0

	automaticFailPrefix = "automatic fail: "
	separator           = "; "
)

// Grade is a finalized result
type Grade struct {
	Score         int      `json:"score"`
	Explanation   string   `json:"explanation"`
	Explanations  []string `json:"explanations,omitempty"`
	AutomaticFail bool     `json:"automatic_fail"`
	RawPoints     int      `json:"raw_points"`
}

// Passed reports whether the grade reached threshold
func (g Grade) Passed(threshold int) bool {
	return g.Score >= threshold
}

// Accumulator collects points and explanations for one unit of grading
// (a message, or a sender). The result has two stages kept apart until
// Finalize: the additive point total, and the list of disqualifying
// conditions that force the score to zero.
type Accumulator struct {
	points        int
	explanations  []string
	disqualifiers []string
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Reset clears all state for the next unit of grading
func (a *Accumulator) Reset() {
	a.points = 0
	a.explanations = a.explanations[:0]
	a.disqualifiers = a.disqualifiers[:0]
}

// Apply folds one evaluation result in
func (a *Accumulator) Apply(r fieldtest.Result) {
	if r.Passed {
		a.points += r.Points
		return
	}
	if r.Explanation != "" {
		a.explanations = append(a.explanations, r.Explanation)
	}
}

// Explain records an explanation that carries no points, such as a
// ground-truth lookup miss
func (a *Accumulator) Explain(explanation string) {
	if explanation != "" {
		a.explanations = append(a.explanations, explanation)
	}
}

// AddPoints adds points outside of a field evaluation (may be negative)
func (a *Accumulator) AddPoints(points int) {
	a.points += points
}

// MarkAutomaticFail records a disqualifying condition
func (a *Accumulator) MarkAutomaticFail(reason string) {
	a.disqualifiers = append(a.disqualifiers, reason)
}

// Points returns the raw point total so far
func (a *Accumulator) Points() int {
	return a.points
}

// Finalize combines both stages into a Grade. The score is clamped to
// [MinScore, MaxScore] and is MinScore whenever a disqualifying condition
// was recorded; explanations are always complete.
func (a *Accumulator) Finalize() Grade {
	score := a.points
	if score > MaxScore {
		score = MaxScore
	}
	if score < MinScore {
		score = MinScore
	}

	explanations := make([]string, 0, len(a.explanations)+len(a.disqualifiers))
	explanations = append(explanations, a.explanations...)
	for _, reason := range a.disqualifiers {
		explanations = append(explanations, automaticFailPrefix+reason)
	}

	g := Grade{
		Score:         score,
		Explanations:  explanations,
		AutomaticFail: len(a.disqualifiers) > 0,
		RawPoints:     a.points,
	}
	if g.AutomaticFail {
		g.Score = MinScore
	}

	if len(explanations) == 0 {
		g.Explanation = PerfectScore
	} else {
		g.Explanation = strings.Join(explanations, separator)
	}
	return g
}
