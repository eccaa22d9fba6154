// Preview of the P2P matcher for one exercise: prints every target with
// its inbound messages and the longest hops, without grading anything
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/drillgrade/internal/model"
	"github.com/ppiankov/drillgrade/internal/p2p"
	"github.com/ppiankov/drillgrade/internal/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: p2p-preview <exercise.yaml> [messages]")
		os.Exit(2)
	}
	messages := ""
	if len(os.Args) > 2 {
		messages = os.Args[2]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false

	g, err := pipeline.NewPipeline(cfg, nil).Graph(ctx, os.Args[1], messages)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== P2P Preview ===")
	fmt.Println()

	for _, t := range g.TargetList() {
		fmt.Println(strings.Repeat("-", 60))
		fmt.Print(g.DescribeTarget(t))
	}
	fmt.Println(strings.Repeat("-", 60))
	fmt.Println()

	fmt.Printf("Targets:     %d\n", len(g.Targets))
	fmt.Printf("Fields:      %d\n", len(g.Fields))
	fmt.Printf("Inbound:     %d\n", g.InboundTotal())
	fmt.Printf("Outbound:    %d\n", g.OutboundTotal())
	fmt.Printf("Dropped:     %d (%d without sender)\n", g.DroppedCount, g.NoSender)
	for _, entry := range g.Unresolved.DescendingByCount() {
		fmt.Printf("  %s: %d\n", entry.Key, entry.Count)
	}
	fmt.Println()

	printLongest(g, 5)
}

func printLongest(g *p2p.Graph, n int) {
	type hop struct {
		edge p2p.Edge
		km   float64
	}
	var hops []hop
	for _, e := range g.Edges {
		if km, ok := g.EdgeDistanceKm(e); ok {
			hops = append(hops, hop{e, km})
		}
	}
	sort.Slice(hops, func(i, j int) bool { return hops[i].km > hops[j].km })

	fmt.Println("Longest hops:")
	for i, h := range hops {
		if i == n {
			break
		}
		fmt.Printf("  %s -> %s  %.1f km (%s)\n", h.edge.From, h.edge.To, h.km, h.edge.MessageID)
	}
}
