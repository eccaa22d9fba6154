// Package message loads exported messages for grading.
package message

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/drillgrade/internal/model"
)

// ErrNoMessages is returned when an export contains no messages at all
var ErrNoMessages = errors.New("no messages")

// maxLineBytes bounds one JSON-lines record; attachments are inlined as
// base64 so records can be large
const maxLineBytes = 64 << 20

// Problem is a message that could not be decoded. Problems are local: the
// rest of the export is still graded.
type Problem struct {
	Source string
	Err    error
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %v", p.Source, p.Err)
}

// Export is the result of loading a message export
type Export struct {
	Messages []model.Message
	Problems []Problem
}

// Load reads messages from a file or a directory of files. Supported
// files are .json (an array or a single message) and .jsonl/.ndjson (one
// message per line). Messages come back in date order with their reported
// locations resolved and HTML bodies converted to text.
func Load(path string) (*Export, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat messages: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = listExportFiles(path)
		if err != nil {
			return nil, err
		}
	}

	export := &Export{}
	for _, file := range files {
		if err := loadFile(file, export); err != nil {
			return nil, err
		}
	}

	if len(export.Messages) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoMessages)
	}

	for i := range export.Messages {
		prepare(&export.Messages[i])
	}
	model.SortByDate(export.Messages)

	return export, nil
}

func listExportFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read message dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".jsonl", ".ndjson":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func loadFile(path string, export *Export) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read messages: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		decodeLines(path, data, export)
		return nil
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return fmt.Errorf("%s: decode message array: %w", path, err)
		}
		for i, r := range raw {
			var m model.Message
			if err := json.Unmarshal(r, &m); err != nil {
				export.Problems = append(export.Problems, Problem{Source: fmt.Sprintf("%s[%d]", path, i), Err: err})
				continue
			}
			export.Messages = append(export.Messages, m)
		}
		return nil
	}

	var m model.Message
	if err := json.Unmarshal(trimmed, &m); err != nil {
		export.Problems = append(export.Problems, Problem{Source: path, Err: err})
		return nil
	}
	export.Messages = append(export.Messages, m)
	return nil
}

func decodeLines(path string, data []byte, export *Export) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		var m model.Message
		if err := json.Unmarshal(text, &m); err != nil {
			export.Problems = append(export.Problems, Problem{Source: fmt.Sprintf("%s:%d", path, line), Err: err})
			continue
		}
		export.Messages = append(export.Messages, m)
	}
	if err := scanner.Err(); err != nil {
		export.Problems = append(export.Problems, Problem{Source: path, Err: err})
	}
}

func prepare(m *model.Message) {
	if loc, ok := m.ReportedLocation(); ok {
		m.Location = &loc
	}
	if strings.TrimSpace(m.Body) == "" && m.BodyHTML != "" {
		if text, err := HTMLText(m.BodyHTML); err == nil {
			m.Body = text
		}
	}
	if m.ID == "" {
		m.ID = fmt.Sprintf("%s-%s", model.NormalizeCall(m.From), m.Date.UTC().Format("20060102T150405"))
	}
}
