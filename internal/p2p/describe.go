package p2p

import (
	"fmt"
	"strings"

	"github.com/ppiankov/drillgrade/internal/counter"
	"github.com/ppiankov/drillgrade/internal/geo"
	"github.com/ppiankov/drillgrade/internal/model"
)

const timeLayout = "2006-01-02 15:04"

// DescribeTarget renders a target's popup text: station details, counts by
// message kind, and one line per inbound message in time order with the
// great-circle distance to the sending station when both are located
func (g *Graph) DescribeTarget(t *Target) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s", t.Call)
	if t.Band != "" || t.Frequency != "" {
		fmt.Fprintf(&b, " (%s)", strings.TrimSpace(t.Band+" "+t.Frequency))
	}
	b.WriteString("\n")
	if t.Synthetic {
		b.WriteString("location approximate\n")
	}
	fmt.Fprintf(&b, "%d messages from %d stations\n", len(t.Inbound), distinct(t.Inbound, func(e Edge) string { return e.From }))
	writeKinds(&b, t.KindCounts().DescendingByCount())

	for _, e := range t.Inbound {
		var from *model.Coordinate
		if f := g.Fields[e.From]; f != nil {
			from = f.Location
		}
		writeEdge(&b, e, "from "+e.From, from, t.Location)
	}
	return b.String()
}

// DescribeField renders a field node's popup text, mirroring DescribeTarget
func (g *Graph) DescribeField(f *Field) string {
	var b strings.Builder

	b.WriteString(f.Call + "\n")
	if f.Synthetic {
		b.WriteString("location approximate\n")
	}
	fmt.Fprintf(&b, "%d messages to %d targets\n", len(f.Outbound), distinct(f.Outbound, func(e Edge) string { return e.To }))
	writeKinds(&b, f.KindCounts().DescendingByCount())

	for _, e := range f.Outbound {
		var to *model.Coordinate
		if t := g.Targets[e.To]; t != nil {
			to = t.Location
		}
		writeEdge(&b, e, "to "+e.To, f.Location, to)
	}
	return b.String()
}

// EdgeDistanceKm returns the great-circle distance of an edge in km, or
// false when either endpoint has no location
func (g *Graph) EdgeDistanceKm(e Edge) (float64, bool) {
	f, t := g.Fields[e.From], g.Targets[e.To]
	if f == nil || t == nil || f.Location == nil || t.Location == nil {
		return 0, false
	}
	return geo.Distance(*f.Location, *t.Location) / 1000, true
}

func writeEdge(b *strings.Builder, e Edge, peer string, a, z *model.Coordinate) {
	fmt.Fprintf(b, "%s %s", e.Time.UTC().Format(timeLayout), peer)
	if e.Kind != "" {
		fmt.Fprintf(b, " %s", e.Kind)
	}
	if a != nil && z != nil {
		fmt.Fprintf(b, " (%.1f km)", geo.Distance(*a, *z)/1000)
	}
	if e.MessageID != "" {
		fmt.Fprintf(b, " [%s]", e.MessageID)
	}
	b.WriteString("\n")
}

func writeKinds(b *strings.Builder, entries []counter.Entry) {
	if len(entries) == 0 {
		return
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s: %d", e.Key, e.Count))
	}
	b.WriteString(strings.Join(parts, ", ") + "\n")
}

func distinct(edges []Edge, key func(Edge) string) int {
	seen := make(map[string]bool, len(edges))
	for _, e := range edges {
		seen[key(e)] = true
	}
	return len(seen)
}
