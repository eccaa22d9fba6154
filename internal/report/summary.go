package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ppiankov/drillgrade/internal/counter"
	"github.com/ppiankov/drillgrade/internal/p2p"
)

// FieldStat is the pass tally of one field spec
type FieldStat struct {
	Label    string
	Passes   int
	Attempts int
}

// Rate returns the pass percentage
func (f FieldStat) Rate() float64 {
	if f.Attempts == 0 {
		return 0
	}
	return float64(f.Passes) * 100 / float64(f.Attempts)
}

// Histogram is a titled categorical tally
type Histogram struct {
	Title   string
	Counter *counter.Counter
}

// Summary is everything a run reports besides the per-unit rows
type Summary struct {
	RunID     string
	Exercise  string
	Unit      string
	Threshold int
	Started   time.Time
	Duration  time.Duration

	Scores         []int
	AutomaticFails int
	Fields         []FieldStat
	Histograms     []Histogram

	Messages   int      // messages loaded
	Skipped    int      // messages of kinds this exercise does not grade
	Problems   []string // messages that could not be decoded
	Duplicates []string // ground-truth keys with more than one row
	Synthetic  int      // entities placed by jitter

	Graph *p2p.Graph
}

// Graded returns the number of graded units
func (s *Summary) Graded() int {
	return len(s.Scores)
}

// Passed returns how many units reached the threshold
func (s *Summary) Passed() int {
	n := 0
	for _, score := range s.Scores {
		if score >= s.Threshold {
			n++
		}
	}
	return n
}

// ScoreBuckets tallies scores into ten-point buckets, 100 on its own
func (s *Summary) ScoreBuckets() *counter.Counter {
	c := counter.New()
	for _, score := range s.Scores {
		c.Increment(scoreBucket(score))
	}
	return c
}

func scoreBucket(score int) string {
	if score >= 100 {
		return "100"
	}
	if score < 0 {
		score = 0
	}
	lo := score / 10 * 10
	return fmt.Sprintf("%02d-%02d", lo, lo+9)
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

// WriteSummary renders the human-readable run summary
func WriteSummary(w io.Writer, s *Summary) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Exercise: %s\n", s.Exercise)
	if s.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", s.RunID)
	}
	if !s.Started.IsZero() {
		fmt.Fprintf(&b, "Started: %s (%s)\n", s.Started.UTC().Format(time.RFC3339), s.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "Messages: %d loaded, %d not graded by this exercise, %d undecodable\n",
		s.Messages, s.Skipped, len(s.Problems))

	graded, passed := s.Graded(), s.Passed()
	fmt.Fprintf(&b, "\nGraded %d %s(s), pass threshold %d\n", graded, s.Unit, s.Threshold)
	fmt.Fprintf(&b, "  passed:         %4d (%5.1f%%)\n", passed, percent(passed, graded))
	fmt.Fprintf(&b, "  failed:         %4d (%5.1f%%)\n", graded-passed, percent(graded-passed, graded))
	fmt.Fprintf(&b, "  automatic fail: %4d (%5.1f%%)\n", s.AutomaticFails, percent(s.AutomaticFails, graded))

	if graded > 0 {
		writeHistogram(&b, "Scores", s.ScoreBuckets())
	}

	if len(s.Fields) > 0 {
		b.WriteString("\nField pass rates\n")
		tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		for _, f := range s.Fields {
			fmt.Fprintf(tw, "  %s\t%d/%d\t%5.1f%%\n", f.Label, f.Passes, f.Attempts, f.Rate())
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	for _, h := range s.Histograms {
		writeHistogram(&b, h.Title, h.Counter)
	}

	if s.Synthetic > 0 {
		fmt.Fprintf(&b, "\n%d location(s) approximated\n", s.Synthetic)
	}

	if len(s.Duplicates) > 0 {
		fmt.Fprintf(&b, "\nGround truth has %d duplicate key(s), last row used: %s\n",
			len(s.Duplicates), strings.Join(s.Duplicates, ", "))
	}

	if g := s.Graph; g != nil {
		fmt.Fprintf(&b, "\nP2P: %d target(s), %d field station(s), %d message(s) matched, %d address(es) dropped\n",
			len(g.Targets), len(g.Fields), len(g.Edges), g.DroppedCount)
		if g.NoSender > 0 {
			fmt.Fprintf(&b, "%d address(es) on messages without a sender\n", g.NoSender)
		}
		if g.Unresolved != nil && g.Unresolved.Len() > 0 {
			writeHistogram(&b, "Unresolved addresses", g.Unresolved)
		}
	}

	if len(s.Problems) > 0 {
		b.WriteString("\nUndecodable messages\n")
		for _, p := range s.Problems {
			fmt.Fprintf(&b, "  %s\n", p)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

const barWidth = 40

func writeHistogram(b *strings.Builder, title string, c *counter.Counter) {
	total := c.Total()
	fmt.Fprintf(b, "\n%s (%d)\n", title, total)

	entries := c.DescendingByCount()
	width := 0
	for _, e := range entries {
		if len(e.Key) > width {
			width = len(e.Key)
		}
	}

	for _, e := range entries {
		bar := 0
		if total > 0 {
			bar = e.Count * barWidth / total
		}
		if bar == 0 && e.Count > 0 {
			bar = 1
		}
		fmt.Fprintf(b, "  %-*s %5d %5.1f%% %s\n", width, e.Key, e.Count, percent(e.Count, total), strings.Repeat("#", bar))
	}
}
