// Package report writes the artifacts of a grading run: CSV tables, a KML
// map, a plain-text summary and a metrics textfile.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ppiankov/drillgrade/internal/grade"
	"github.com/ppiankov/drillgrade/internal/model"
	"github.com/ppiankov/drillgrade/internal/p2p"
)

// Row is one graded unit: the consumer-defined leading columns and its grade
type Row struct {
	Columns []string
	Grade   grade.Grade
}

// WriteGrades writes one row per graded unit with trailing Grade and
// Explanation columns. The file is created or truncated.
func WriteGrades(path string, header []string, rows []Row) error {
	records := make([][]string, 0, len(rows)+1)

	head := make([]string, 0, len(header)+2)
	head = append(head, header...)
	head = append(head, "Grade", "Explanation")
	records = append(records, head)

	for _, r := range rows {
		record := make([]string, 0, len(header)+2)
		record = append(record, r.Columns...)
		// pad short rows so the trailing pair always lines up
		for len(record) < len(header) {
			record = append(record, "")
		}
		record = append(record, strconv.Itoa(r.Grade.Score), r.Grade.Explanation)
		records = append(records, record)
	}

	return writeCSV(path, records)
}

// targetColumns names the leading target columns when the spreadsheet
// had no header row
var targetColumns = []string{"Call", "Band", "Frequency", "Latitude", "Longitude"}

// WriteTargets writes the targets spreadsheet back with every original
// cell, assigned positions filled in, and the inbound message counts
// appended, one column per message kind
func WriteTargets(path string, g *p2p.Graph) error {
	targets := g.TargetList()
	kinds := g.Kinds()

	width := max(len(g.Header), len(targetColumns))
	for _, t := range targets {
		width = max(width, len(t.Row))
	}

	head := make([]string, width)
	for i := range head {
		switch {
		case i < len(g.Header) && strings.TrimSpace(g.Header[i]) != "":
			head[i] = g.Header[i]
		case i < len(targetColumns):
			head[i] = targetColumns[i]
		default:
			head[i] = "Column " + strconv.Itoa(i+1)
		}
	}
	head = append(head, "Approximate", "Messages", "Stations")
	head = append(head, kinds...)
	records := [][]string{head}

	for _, t := range targets {
		record := make([]string, width)
		copy(record, t.Row)
		if t.Row == nil {
			record[p2p.ColCall] = t.Call
			record[p2p.ColBand] = t.Band
			record[p2p.ColFrequency] = t.Frequency
		}
		if t.Location != nil && (t.Synthetic || t.Row == nil) {
			record[p2p.ColLatitude], record[p2p.ColLongitude] = formatLatLon(t.Location)
		}

		stations := make(map[string]bool)
		for _, e := range t.Inbound {
			stations[e.From] = true
		}
		record = append(record,
			strconv.FormatBool(t.Synthetic),
			strconv.Itoa(len(t.Inbound)),
			strconv.Itoa(len(stations)),
		)
		counts := t.KindCounts()
		for _, k := range kinds {
			record = append(record, strconv.Itoa(counts.Count(k)))
		}
		records = append(records, record)
	}

	return writeCSV(path, records)
}

// WriteFields exports the field stations with their outbound message
// counts, one column per message kind
func WriteFields(path string, g *p2p.Graph) error {
	kinds := g.Kinds()

	head := []string{"Call", "Latitude", "Longitude", "Approximate", "Messages", "Targets"}
	head = append(head, kinds...)
	records := [][]string{head}

	for _, f := range g.FieldList() {
		lat, lon := "", ""
		if f.Location != nil {
			lat, lon = formatLatLon(f.Location)
		}
		reached := make(map[string]bool)
		for _, e := range f.Outbound {
			reached[e.To] = true
		}

		record := []string{
			f.Call, lat, lon,
			strconv.FormatBool(f.Synthetic),
			strconv.Itoa(len(f.Outbound)),
			strconv.Itoa(len(reached)),
		}
		counts := f.KindCounts()
		for _, k := range kinds {
			record = append(record, strconv.Itoa(counts.Count(k)))
		}
		records = append(records, record)
	}

	return writeCSV(path, records)
}

func formatLatLon(c *model.Coordinate) (string, string) {
	return strconv.FormatFloat(c.Lat, 'f', 6, 64), strconv.FormatFloat(c.Lon, 'f', 6, 64)
}

func writeCSV(path string, records [][]string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
