package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ppiankov/drillgrade/internal/model"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks setup failures that abort a run: a missing or
// malformed exercise file, missing ground truth, an unreadable export
var ErrConfiguration = errors.New("configuration error")

var validate = validator.New()

// LoadExercise reads an exercise YAML file. Unknown keys are rejected, and
// relative paths inside it resolve against the file's directory.
func LoadExercise(path string) (*model.Exercise, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read exercise: %w", ErrConfiguration, err)
	}

	ex, err := ParseExercise(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfiguration, path, err)
	}

	base := filepath.Dir(path)
	ex.Messages = resolve(base, ex.Messages)
	if ex.Lookup != nil {
		ex.Lookup.Path = resolve(base, ex.Lookup.Path)
	}
	if ex.Image != nil {
		ex.Image.Reference = resolve(base, ex.Image.Reference)
	}
	if ex.P2P != nil {
		ex.P2P.Targets = resolve(base, ex.P2P.Targets)
	}
	if ex.Name == "" {
		ex.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return ex, nil
}

// ParseExercise decodes exercise YAML
func ParseExercise(data []byte) (*model.Exercise, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var ex model.Exercise
	if err := dec.Decode(&ex); err != nil {
		return nil, fmt.Errorf("decode exercise: %w", err)
	}

	if err := validate.Struct(&ex); err != nil {
		return nil, fmt.Errorf("invalid exercise: %w", err)
	}

	return &ex, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// Slug turns an exercise name into a directory-safe name
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteRune('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
