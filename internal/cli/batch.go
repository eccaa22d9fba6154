package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/ppiankov/drillgrade/internal/pipeline"
	"github.com/ppiankov/drillgrade/internal/worker"
	"github.com/spf13/cobra"
)

var (
	workers  int
	listFile string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [exercise.yaml...]",
	Short: "Grade several exercises in parallel",
	Long: `Batch grades several exercises concurrently:
- Take exercise files as arguments or from a list file (one per line)
- Grade each exercise in isolation with its own messages setting
- Write each exercise's reports to its own output directory
- Keep going when one exercise fails

Example:
  drillgrade batch exercises/*.yaml
  drillgrade batch --list season.txt --workers 4 --output-dir ./reports`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&listFile, "list", "", "file listing exercise paths, one per line")
	batchCmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent exercises (default from config)")
	addRunFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	paths := append([]string{}, args...)
	if listFile != "" {
		listed, err := worker.ReadList(listFile)
		if err != nil {
			return err
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no exercises given: pass exercise files or --list")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := runConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  drillgrade Batch Grading\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Exercises:    %d\n", len(paths))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", timeout)
	fmt.Fprintf(os.Stderr, "\n")

	jobs := make([]pipeline.Job, 0, len(paths))
	for _, path := range paths {
		jobs = append(jobs, pipeline.Job{Exercise: path})
	}

	p := pipeline.NewPipeline(cfg, logger)
	outcomes := p.RunBatch(ctx, jobs, cfg.Concurrency.Workers)

	for _, outcome := range outcomes {
		if outcome.Err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", outcome.Name, outcome.Err)
			continue
		}
		res := outcome.Value
		fmt.Fprintf(os.Stderr, "✓ %s (%d/%d passed) -> %s\n",
			res.Exercise, res.Summary.Passed(), res.Summary.Graded(), res.OutputDir)
	}
	successCount, failureCount := tally(len(jobs), outcomes)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d exercises\n", len(jobs))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d exercises failed", failureCount, len(jobs))
	}
	return nil
}

// tally counts successful outcomes against the number of submitted jobs;
// a job without a successful outcome is a failure
func tally(total int, outcomes []*worker.Outcome[*pipeline.Result]) (success, failure int) {
	for _, o := range outcomes {
		if o != nil && o.Err == nil {
			success++
		}
	}
	return success, total - success
}
