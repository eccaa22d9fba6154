package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/ppiankov/drillgrade/internal/pipeline"
	"github.com/ppiankov/drillgrade/internal/report"
	"github.com/spf13/cobra"
)

var (
	p2pMessages string
	p2pKML      string
	p2pTargets  string
	p2pFieldCSV string
	p2pFields   bool
)

// p2pCmd represents the p2p command
var p2pCmd = &cobra.Command{
	Use:   "p2p <exercise.yaml>",
	Short: "Show which field stations messaged which targets",
	Long: `P2P matches every message destination against the exercise's relay and
gateway targets without grading anything, and prints each target with the
stations that reached it.

Example:
  drillgrade p2p eto.yaml
  drillgrade p2p eto.yaml --fields --kml p2p.kml --targets-csv targets.csv --fields-csv fields.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runP2P,
}

func init() {
	rootCmd.AddCommand(p2pCmd)

	p2pCmd.Flags().StringVar(&p2pMessages, "messages", "", "message export file or directory (default: the exercise's messages setting)")
	p2pCmd.Flags().StringVar(&p2pKML, "kml", "", "write the graph as a KML map to this path")
	p2pCmd.Flags().StringVar(&p2pTargets, "targets-csv", "", "write targets with message counts to this path")
	p2pCmd.Flags().StringVar(&p2pFieldCSV, "fields-csv", "", "write field stations with message counts to this path")
	p2pCmd.Flags().BoolVar(&p2pFields, "fields", false, "also print every field station")
}

func runP2P(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p := pipeline.NewPipeline(cfg, logger)
	g, err := p.Graph(context.Background(), args[0], p2pMessages)
	if err != nil {
		return fmt.Errorf("p2p failed: %w", err)
	}

	for _, t := range g.TargetList() {
		fmt.Println(g.DescribeTarget(t))
	}
	if p2pFields {
		for _, f := range g.FieldList() {
			fmt.Println(g.DescribeField(f))
		}
	}

	fmt.Fprintf(os.Stderr, "Targets: %d  Fields: %d  Messages: %d  Dropped: %d\n",
		len(g.Targets), len(g.Fields), len(g.Edges), g.DroppedCount)

	if p2pKML != "" {
		if err := report.WriteKML(p2pKML, report.GraphMap("P2P", g)); err != nil {
			return fmt.Errorf("write kml: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ %s\n", p2pKML)
	}
	if p2pTargets != "" {
		if err := report.WriteTargets(p2pTargets, g); err != nil {
			return fmt.Errorf("write targets: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ %s\n", p2pTargets)
	}
	if p2pFieldCSV != "" {
		if err := report.WriteFields(p2pFieldCSV, g); err != nil {
			return fmt.Errorf("write fields: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ %s\n", p2pFieldCSV)
	}

	return nil
}
