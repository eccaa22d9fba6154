package p2p

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/drillgrade/internal/model"
)

// Target spreadsheet columns. Extra columns are kept in TargetSpec.Row and
// written back by the targets export.
const (
	ColCall = iota
	ColBand
	ColFrequency
	ColLatitude
	ColLongitude
)

// ErrNoTargets is returned when the targets spreadsheet has no rows
var ErrNoTargets = errors.New("no targets")

// Sheet is a parsed targets spreadsheet
type Sheet struct {
	Header  []string // last skipped row; nil when skipRows is 0
	Targets []TargetSpec
}

// LoadTargets reads the relay/gateway station spreadsheet, skipping
// skipRows header rows. Rows without a call sign are ignored; rows without
// a valid position keep a nil Location for the jitter step.
func LoadTargets(path string, skipRows int) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open targets: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet, err := ReadTargets(f, skipRows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sheet, nil
}

// ReadTargets parses the targets spreadsheet from r
func ReadTargets(r io.Reader, skipRows int) (*Sheet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	sheet := &Sheet{}
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line+1, err)
		}
		line++
		if line <= skipRows {
			if line == skipRows {
				sheet.Header = record
			}
			continue
		}

		call := cell(record, ColCall)
		if call == "" {
			continue
		}
		spec := TargetSpec{
			Call:      call,
			Band:      cell(record, ColBand),
			Frequency: cell(record, ColFrequency),
			Row:       record,
		}
		if loc, ok := model.ParseCoordinate(cell(record, ColLatitude), cell(record, ColLongitude)); ok {
			spec.Location = &loc
		}
		sheet.Targets = append(sheet.Targets, spec)
	}

	if len(sheet.Targets) == 0 {
		return nil, ErrNoTargets
	}
	return sheet, nil
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
