package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteMetrics writes the run's counters in the node-exporter textfile
// format so a scheduled grader can be scraped
func WriteMetrics(path string, s *Summary) error {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"exercise": s.Exercise}

	gauge := func(name, help string, v float64) {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "drillgrade",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
		g.Set(v)
		reg.MustRegister(g)
	}

	gauge("messages", "Messages loaded for the exercise.", float64(s.Messages))
	gauge("messages_skipped", "Messages of kinds the exercise does not grade.", float64(s.Skipped))
	gauge("messages_undecodable", "Messages that could not be decoded.", float64(len(s.Problems)))
	gauge("graded", "Units graded.", float64(s.Graded()))
	gauge("passed", "Units at or above the pass threshold.", float64(s.Passed()))
	gauge("automatic_fails", "Units failed by a disqualifying condition.", float64(s.AutomaticFails))
	gauge("synthetic_locations", "Entities placed by location jitter.", float64(s.Synthetic))
	gauge("ground_truth_duplicates", "Ground-truth keys with more than one row.", float64(len(s.Duplicates)))
	gauge("run_duration_seconds", "Wall time of the run.", s.Duration.Seconds())
	if !s.Started.IsZero() {
		gauge("last_run_timestamp_seconds", "Start of the last run.", float64(s.Started.Unix()))
	}
	if s.Graph != nil {
		gauge("p2p_edges", "Messages matched to a P2P target.", float64(len(s.Graph.Edges)))
		gauge("p2p_dropped", "P2P destination addresses that became no edge.", float64(s.Graph.DroppedCount))
	}

	scores := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   "drillgrade",
		Name:        "score",
		Help:        "Distribution of finalized scores.",
		ConstLabels: labels,
		Buckets:     prometheus.LinearBuckets(10, 10, 10),
	})
	for _, score := range s.Scores {
		scores.Observe(float64(score))
	}
	reg.MustRegister(scores)

	fieldPass := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   "drillgrade",
		Name:        "field_pass_ratio",
		Help:        "Fraction of evaluations of a field that passed.",
		ConstLabels: labels,
	}, []string{"field"})
	for _, f := range s.Fields {
		fieldPass.WithLabelValues(f.Label).Set(f.Rate() / 100)
	}
	reg.MustRegister(fieldPass)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
