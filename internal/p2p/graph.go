// Package p2p matches field operators to the relay and gateway stations
// they messaged directly, and describes the resulting graph for maps.
package p2p

import (
	"sort"
	"time"

	"github.com/ppiankov/drillgrade/internal/counter"
	"github.com/ppiankov/drillgrade/internal/model"
)

// TargetSpec is a known relay/gateway station from the targets export
type TargetSpec struct {
	Call      string
	Band      string
	Frequency string
	Location  *model.Coordinate
	Synthetic bool     // Location was assigned by jitter
	Row       []string // original spreadsheet cells, written back by the targets export
}

// Edge is one resolved message from a field station to a target
type Edge struct {
	From      string
	To        string
	MessageID string
	Time      time.Time
	Kind      string
}

// Target is a relay/gateway node with its inbound edges in time order
type Target struct {
	TargetSpec
	Inbound []Edge
}

// Field is a field-operator node with its outbound edges in time order
type Field struct {
	Call      string
	Location  *model.Coordinate
	Synthetic bool
	Outbound  []Edge
}

// Graph is the field/target message graph. It is built once by Build and
// only read afterwards.
type Graph struct {
	Targets map[string]*Target
	Fields  map[string]*Field
	Edges   []Edge

	// Header is the targets spreadsheet header row, if it had one
	Header []string

	// Unresolved counts destination addresses that matched no target
	Unresolved *counter.Counter
	// NoSender is the number of addresses on messages with a blank sender
	NoSender int
	// DroppedCount is the number of addresses that became no edge, either
	// unresolved or without a sender
	DroppedCount int
}

type buildOptions struct {
	useCc  bool
	header []string
}

// Option configures Build
type Option func(*buildOptions)

// WithCc also resolves Cc addresses, not only To
func WithCc(use bool) Option {
	return func(o *buildOptions) { o.useCc = use }
}

// WithHeader keeps the targets spreadsheet header for exports
func WithHeader(header []string) Option {
	return func(o *buildOptions) { o.header = header }
}

// Build resolves every message destination against the target call signs.
// Each resolved address becomes one Edge, appended to the target's inbound
// list and the sender's outbound list. Unresolved addresses, and every
// address of a message with a blank sender, are counted and dropped. Messages are processed in date order, so edge lists are time
// ordered and a field node takes the location of its latest located
// message.
func Build(targets []TargetSpec, messages []model.Message, opts ...Option) *Graph {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	g := &Graph{
		Targets:    make(map[string]*Target, len(targets)),
		Fields:     make(map[string]*Field),
		Header:     o.header,
		Unresolved: counter.New(),
	}

	for _, spec := range targets {
		call := model.NormalizeCall(spec.Call)
		if call == "" {
			continue
		}
		spec.Call = call
		g.Targets[call] = &Target{TargetSpec: spec}
	}

	ordered := make([]model.Message, len(messages))
	copy(ordered, messages)
	model.SortByDate(ordered)

	for i := range ordered {
		msg := &ordered[i]
		addrs := msg.To
		if o.useCc {
			addrs = append(append([]string{}, msg.To...), msg.Cc...)
		}

		from := model.NormalizeCall(msg.From)
		if from == "" {
			n := len(destinations(addrs))
			g.NoSender += n
			g.DroppedCount += n
			continue
		}

		field := g.Fields[from]
		if field == nil {
			field = &Field{Call: from}
			g.Fields[from] = field
		}
		if msg.Location != nil && (field.Location == nil || field.Synthetic || !msg.Synthetic) {
			loc := *msg.Location
			field.Location = &loc
			field.Synthetic = msg.Synthetic
		}

		for _, to := range destinations(addrs) {
			target, ok := g.Targets[to]
			if !ok {
				g.Unresolved.Increment(to)
				g.DroppedCount++
				continue
			}

			edge := Edge{
				From:      from,
				To:        to,
				MessageID: msg.ID,
				Time:      msg.Date,
				Kind:      msg.Kind,
			}
			g.Edges = append(g.Edges, edge)
			target.Inbound = append(target.Inbound, edge)
			field.Outbound = append(field.Outbound, edge)
		}
	}

	return g
}

// destinations normalizes addresses to distinct, non-blank call signs
func destinations(addrs []string) []string {
	seen := make(map[string]bool, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		to := model.NormalizeCall(addr)
		if to == "" || seen[to] {
			continue
		}
		seen[to] = true
		out = append(out, to)
	}
	return out
}

// TargetList returns targets sorted by call sign
func (g *Graph) TargetList() []*Target {
	out := make([]*Target, 0, len(g.Targets))
	for _, t := range g.Targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Call < out[j].Call })
	return out
}

// FieldList returns field nodes sorted by call sign
func (g *Graph) FieldList() []*Field {
	out := make([]*Field, 0, len(g.Fields))
	for _, f := range g.Fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Call < out[j].Call })
	return out
}

// InboundTotal sums the inbound edge counts of all targets
func (g *Graph) InboundTotal() int {
	n := 0
	for _, t := range g.Targets {
		n += len(t.Inbound)
	}
	return n
}

// OutboundTotal sums the outbound edge counts of all field nodes
func (g *Graph) OutboundTotal() int {
	n := 0
	for _, f := range g.Fields {
		n += len(f.Outbound)
	}
	return n
}

// KindCounts tallies inbound edges by message kind
func (t *Target) KindCounts() *counter.Counter {
	return kindCounts(t.Inbound)
}

// KindCounts tallies outbound edges by message kind
func (f *Field) KindCounts() *counter.Counter {
	return kindCounts(f.Outbound)
}

// Kinds returns every message kind present in the graph, sorted
func (g *Graph) Kinds() []string {
	seen := make(map[string]bool)
	var kinds []string
	for _, e := range g.Edges {
		k := e.Kind
		if k == "" {
			k = counter.BlankKey
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	sort.Strings(kinds)
	return kinds
}

func kindCounts(edges []Edge) *counter.Counter {
	c := counter.New()
	for _, e := range edges {
		c.Increment(e.Kind)
	}
	return c
}
