package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"github.com/ppiankov/drillgrade/internal/model"
	"github.com/ppiankov/drillgrade/internal/p2p"
	"github.com/twpayne/go-kml"
)

// Style selects the icon of a map point
type Style string

const (
	StyleTarget    Style = "target"
	StyleField     Style = "field"
	StyleSynthetic Style = "synthetic"
	StylePass      Style = "pass"
	StyleFail      Style = "fail"
)

var styleIcons = map[Style]string{
	StyleTarget:    "https://maps.google.com/mapfiles/kml/paddle/blu-stars.png",
	StyleField:     "https://maps.google.com/mapfiles/kml/paddle/grn-circle.png",
	StyleSynthetic: "https://maps.google.com/mapfiles/kml/paddle/wht-blank.png",
	StylePass:      "https://maps.google.com/mapfiles/kml/paddle/grn-circle.png",
	StyleFail:      "https://maps.google.com/mapfiles/kml/paddle/red-circle.png",
}

const lineStyle = "edge"

// MapPoint is one placemark
type MapPoint struct {
	Name        string
	Description string
	Location    model.Coordinate
	Style       Style
}

// MapLine connects two located points
type MapLine struct {
	Name string
	From model.Coordinate
	To   model.Coordinate
}

// Map is the content of one KML document
type Map struct {
	Name   string
	Points []MapPoint
	Lines  []MapLine
}

// GraphMap lays out a P2P graph: a placemark for every located node with
// its description as popup, and one line per located field/target pair
func GraphMap(name string, g *p2p.Graph) *Map {
	m := &Map{Name: name}

	for _, t := range g.TargetList() {
		if t.Location == nil || !t.Location.Valid() {
			continue
		}
		style := StyleTarget
		if t.Synthetic {
			style = StyleSynthetic
		}
		m.Points = append(m.Points, MapPoint{Name: t.Call, Description: g.DescribeTarget(t), Location: *t.Location, Style: style})
	}

	for _, f := range g.FieldList() {
		if f.Location == nil || !f.Location.Valid() {
			continue
		}
		style := StyleField
		if f.Synthetic {
			style = StyleSynthetic
		}
		m.Points = append(m.Points, MapPoint{Name: f.Call, Description: g.DescribeField(f), Location: *f.Location, Style: style})
	}

	type pair struct{ from, to string }
	counts := make(map[pair]int)
	for _, e := range g.Edges {
		counts[pair{e.From, e.To}]++
	}
	pairs := make([]pair, 0, len(counts))
	for p := range counts {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].from != pairs[j].from {
			return pairs[i].from < pairs[j].from
		}
		return pairs[i].to < pairs[j].to
	})

	for _, p := range pairs {
		f, t := g.Fields[p.from], g.Targets[p.to]
		if f == nil || t == nil || f.Location == nil || t.Location == nil {
			continue
		}
		m.Lines = append(m.Lines, MapLine{
			Name: fmt.Sprintf("%s to %s (%d)", p.from, p.to, counts[p]),
			From: *f.Location,
			To:   *t.Location,
		})
	}

	return m
}

// WriteKML renders m as a KML document. Points without a valid location
// are skipped. The file is created or truncated.
func WriteKML(path string, m *Map) error {
	doc := kml.Document(kml.Name(m.Name))

	styles := make([]Style, 0, len(styleIcons))
	for s := range styleIcons {
		styles = append(styles, s)
	}
	sort.Slice(styles, func(i, j int) bool { return styles[i] < styles[j] })
	for _, s := range styles {
		doc.Add(kml.SharedStyle(string(s),
			kml.IconStyle(
				kml.Scale(1.0),
				kml.Icon(kml.Href(styleIcons[s])),
			),
		))
	}
	doc.Add(kml.SharedStyle(lineStyle,
		kml.LineStyle(
			kml.Color(color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xcc}),
			kml.Width(2),
		),
	))

	points := kml.Folder(kml.Name("Stations"))
	for _, p := range m.Points {
		if !p.Location.Valid() {
			continue
		}
		style := p.Style
		if _, ok := styleIcons[style]; !ok {
			style = StyleField
		}
		points.Add(kml.Placemark(
			kml.Name(p.Name),
			kml.Description(p.Description),
			kml.StyleURL("#"+string(style)),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: p.Location.Lon, Lat: p.Location.Lat})),
		))
	}
	doc.Add(points)

	if len(m.Lines) > 0 {
		lines := kml.Folder(kml.Name("Messages"))
		for _, l := range m.Lines {
			lines.Add(kml.Placemark(
				kml.Name(l.Name),
				kml.StyleURL("#"+lineStyle),
				kml.LineString(kml.Coordinates(
					kml.Coordinate{Lon: l.From.Lon, Lat: l.From.Lat},
					kml.Coordinate{Lon: l.To.Lon, Lat: l.To.Lat},
				)),
			))
		}
		doc.Add(lines)
	}

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

	if err := kml.KML(doc).WriteIndent(f, "", "  "); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
