package model

import (
	"strings"
	"time"
)

// Value is an observed field value. A zero Value is null: the field was
// absent from the message, which is different from present-but-blank.
type Value struct {
	Text    string
	Present bool
	Time    time.Time // set for timestamp headers; Text is then its UTC rendering
}

// Null is the absent value.
var Null = Value{}

// Some wraps a present value.
func Some(s string) Value {
	return Value{Text: s, Present: true}
}

// At wraps a timestamp, normalized to UTC.
func At(t time.Time) Value {
	t = t.UTC()
	return Value{Text: t.Format(MessageDateLayout), Present: true, Time: t}
}

// Trimmed returns the text without surrounding whitespace ("" for null).
func (v Value) Trimmed() string {
	return strings.TrimSpace(v.Text)
}

// Blank reports whether the value is null or whitespace only.
func (v Value) Blank() bool {
	return !v.Present || v.Trimmed() == ""
}

// String renders the value for explanations.
func (v Value) String() string {
	if !v.Present {
		return "null"
	}
	return v.Trimmed()
}
