package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/drillgrade/internal/report"
	"go.uber.org/zap"
)

// write emits the run's artifacts into the exercise's output directory.
// The grades table and summary are required; maps and metrics are
// enhancements whose failures are logged and skipped.
func (p *Pipeline) write(res *Result, pl *plan, units []*unit, log *zap.Logger) error {
	if err := os.MkdirAll(res.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := func(name string) string { return filepath.Join(res.OutputDir, name) }

	gradesPath := path("grades.csv")
	if err := report.WriteGrades(gradesPath, res.Header, res.Rows); err != nil {
		return fmt.Errorf("write grades: %w", err)
	}
	res.Outputs = append(res.Outputs, gradesPath)

	summaryPath := path("summary.txt")
	f, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	if err := report.WriteSummary(f, res.Summary); err != nil {
		_ = f.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close summary: %w", err)
	}
	res.Outputs = append(res.Outputs, summaryPath)

	optional := func(name string, fn func(string) error) {
		target := path(name)
		if err := fn(target); err != nil {
			log.Warn("skipped report", zap.String("file", name), zap.Error(err))
			return
		}
		res.Outputs = append(res.Outputs, target)
	}

	if p.config.Output.KML {
		optional("grades.kml", func(target string) error {
			return report.WriteKML(target, gradesMap(res.Exercise, units, res.Summary.Threshold))
		})
	}

	if res.Graph != nil {
		optional("p2p.kml", func(target string) error {
			return report.WriteKML(target, report.GraphMap(res.Exercise+" P2P", res.Graph))
		})
		optional("targets.csv", func(target string) error {
			return report.WriteTargets(target, res.Graph)
		})
		optional("fields.csv", func(target string) error {
			return report.WriteFields(target, res.Graph)
		})
	}

	if p.config.Output.Metrics {
		optional("drillgrade.prom", func(target string) error {
			return report.WriteMetrics(target, res.Summary)
		})
	}

	log.Info("wrote reports", zap.String("dir", res.OutputDir), zap.Int("files", len(res.Outputs)))
	return nil
}

// gradesMap places every located unit, colored by pass or fail, with its
// grade and explanations as the popup
func gradesMap(name string, units []*unit, threshold int) *report.Map {
	m := &report.Map{Name: name}
	for _, u := range units {
		loc := unitLocation(u)
		if loc == nil {
			continue
		}

		style := report.StyleFail
		if u.grade.Passed(threshold) {
			style = report.StylePass
		}
		latest := u.latest()
		if latest.Location == loc && latest.Synthetic {
			style = report.StyleSynthetic
		}

		var desc strings.Builder
		fmt.Fprintf(&desc, "Grade: %d\n", u.grade.Score)
		for _, e := range u.grade.Explanations {
			fmt.Fprintf(&desc, "%s\n", e)
		}
		if len(u.grade.Explanations) == 0 {
			desc.WriteString(u.grade.Explanation + "\n")
		}

		title := u.call
		if len(u.messages) == 1 && latest.ID != "" {
			title = fmt.Sprintf("%s %s", u.call, latest.ID)
		}
		m.Points = append(m.Points, report.MapPoint{Name: title, Description: desc.String(), Location: *loc, Style: style})
	}
	return m
}
