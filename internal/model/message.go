package model

import (
	"sort"
	"strings"
	"time"
)

// MessageDateLayout is how the message date is rendered when a field spec
// addresses it through the msg.date pseudo-field.
const MessageDateLayout = "2006-01-02 15:04"

// Pseudo-field ids that address message headers instead of form fields
const (
	FieldFrom         = "msg.from"
	FieldTo           = "msg.to"
	FieldSubject      = "msg.subject"
	FieldDate         = "msg.date"
	FieldKind         = "msg.kind"
	FieldOrganization = "msg.organization"
	FieldBody         = "msg.body"
	FieldLocation     = "msg.location"
)

// Message is one exported store-and-forward message, already parsed into
// typed fields by the external message parser
type Message struct {
	ID           string            `json:"id"`
	From         string            `json:"from"`
	To           []string          `json:"to"`
	Cc           []string          `json:"cc,omitempty"`
	Subject      string            `json:"subject"`
	Date         time.Time         `json:"date"`
	Kind         string            `json:"kind"`                   // form type, e.g. "ICS-213", "Position Report"
	Organization string            `json:"organization,omitempty"` // Agency/Group on most forms
	Fields       map[string]string `json:"fields,omitempty"`       // form field id -> raw value
	Latitude     string            `json:"latitude,omitempty"`
	Longitude    string            `json:"longitude,omitempty"`
	Body         string            `json:"body,omitempty"`
	BodyHTML     string            `json:"body_html,omitempty"`
	Attachments  map[string][]byte `json:"attachments,omitempty"` // file name -> content

	// Location is filled by the loader from Latitude/Longitude, or by the
	// jitter step when the message has no valid position.
	Location  *Coordinate `json:"-"`
	Synthetic bool        `json:"-"` // Location was assigned, not reported
}

// Value returns the observed value for a field id. Pseudo-field ids
// (msg.*) read message headers; any other id reads the form fields.
func (m *Message) Value(id string) Value {
	switch id {
	case FieldFrom:
		return Some(m.From)
	case FieldTo:
		return Some(strings.Join(m.To, ","))
	case FieldSubject:
		return Some(m.Subject)
	case FieldDate:
		if m.Date.IsZero() {
			return Null
		}
		return At(m.Date)
	case FieldKind:
		return Some(m.Kind)
	case FieldOrganization:
		if m.Organization == "" {
			if v, ok := m.Fields["organization"]; ok {
				return Some(v)
			}
			return Null
		}
		return Some(m.Organization)
	case FieldBody:
		return Some(m.Body)
	case FieldLocation:
		if m.Location == nil {
			return Null
		}
		return Some(m.Location.String())
	}

	v, ok := m.Fields[id]
	if !ok {
		return Null
	}
	return Some(v)
}

// ReportedLocation parses the message's own latitude/longitude fields
func (m *Message) ReportedLocation() (Coordinate, bool) {
	lat, lon := m.Latitude, m.Longitude
	if lat == "" && lon == "" {
		lat, lon = m.Fields["latitude"], m.Fields["longitude"]
	}
	return ParseCoordinate(lat, lon)
}

// AttachmentWithSuffix returns the first attachment, in name order, whose
// name ends with suffix (case-insensitive).
func (m *Message) AttachmentWithSuffix(suffix string) (string, []byte, bool) {
	names := make([]string, 0, len(m.Attachments))
	for name := range m.Attachments {
		names = append(names, name)
	}
	sort.Strings(names)

	suffix = strings.ToLower(suffix)
	for _, name := range names {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			return name, m.Attachments[name], true
		}
	}
	return "", nil, false
}

// NormalizeCall upper-cases a call sign or address and strips any mail
// domain, so "k1abc@winlink.org" and "K1ABC" compare equal.
func NormalizeCall(addr string) string {
	addr = strings.TrimSpace(addr)
	if idx := strings.Index(addr, "@"); idx >= 0 {
		addr = addr[:idx]
	}
	return strings.ToUpper(addr)
}

// SortByDate orders messages by date, then id, in place
func SortByDate(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if !messages[i].Date.Equal(messages[j].Date) {
			return messages[i].Date.Before(messages[j].Date)
		}
		return messages[i].ID < messages[j].ID
	})
}
