package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/drillgrade/internal/model"
	"github.com/ppiankov/drillgrade/internal/pipeline"
	"github.com/ppiankov/drillgrade/internal/report"
	"github.com/spf13/cobra"
)

var (
	messagesPath string
	outputDir    string
	timeout      time.Duration
	sendFeedback bool
	webhookURL   string
	outboxDir    string
	noKML        bool
	metrics      bool
	noCache      bool
	cacheDir     string
)

// gradeCmd represents the grade command
var gradeCmd = &cobra.Command{
	Use:   "grade <exercise.yaml>",
	Short: "Grade one exercise and write its reports",
	Long: `Grade checks every exported message of one exercise:
- Evaluate each configured field test and sum the weighted points
- Fail messages sent outside the exercise window
- Compare reported values with the ground-truth spreadsheet
- Score attached images against the reference image
- Match field stations to the relay/gateway targets they messaged
- Write grades.csv, summary.txt and KML maps

Example:
  drillgrade grade exercises/2025-01-eto.yaml
  drillgrade grade eto.yaml --messages ./export --output-dir ./reports
  drillgrade grade eto.yaml --send-feedback --outbox ./outbox`,
	Args: cobra.ExactArgs(1),
	RunE: runGrade,
}

func init() {
	rootCmd.AddCommand(gradeCmd)

	gradeCmd.Flags().StringVar(&messagesPath, "messages", "", "message export file or directory (default: the exercise's messages setting)")
	addRunFlags(gradeCmd)
}

// addRunFlags registers the flags shared by grade and batch
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory for reports (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall timeout")
	cmd.Flags().BoolVar(&sendFeedback, "send-feedback", false, "send every sender their grade")
	cmd.Flags().StringVar(&webhookURL, "webhook", "", "POST feedback messages to this URL")
	cmd.Flags().StringVar(&outboxDir, "outbox", "", "write feedback messages to this directory")
	cmd.Flags().BoolVar(&noKML, "no-kml", false, "do not write KML maps")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "write a Prometheus textfile with run metrics")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the image similarity cache")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "image similarity cache directory (default from config)")
}

// runConfig loads the layered configuration and applies the flags the
// user actually set
func runConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.Output.Dir = outputDir
	}
	if flags.Changed("send-feedback") {
		cfg.Feedback.Enabled = sendFeedback
	}
	if flags.Changed("webhook") {
		cfg.Feedback.WebhookURL = webhookURL
		cfg.Feedback.Enabled = true
	}
	if flags.Changed("outbox") {
		cfg.Feedback.OutboxDir = outboxDir
		cfg.Feedback.Enabled = true
	}
	if noKML {
		cfg.Output.KML = false
	}
	if metrics {
		cfg.Output.Metrics = true
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if flags.Changed("cache-dir") {
		cfg.Cache.Dir = cacheDir
	}
	if flags.Changed("workers") {
		cfg.Concurrency.Workers = workers
	}
	cfg.Output.Verbose = cfg.Output.Verbose || verbose

	return cfg, nil
}

func runGrade(cmd *cobra.Command, args []string) error {
	exercisePath := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := runConfig(cmd)
	if err != nil {
		return err
	}

	p := pipeline.NewPipeline(cfg, logger)

	if verbose {
		fmt.Fprintf(os.Stderr, "Grading: %s\n", exercisePath)
		fmt.Fprintf(os.Stderr, "Output: %s\n", cfg.Output.Dir)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	res, err := p.Run(ctx, exercisePath, messagesPath)
	if err != nil {
		return fmt.Errorf("grade failed: %w", err)
	}

	if err := report.WriteSummary(os.Stdout, res.Summary); err != nil {
		return fmt.Errorf("print summary: %w", err)
	}

	fmt.Fprintln(os.Stderr)
	for _, out := range res.Outputs {
		fmt.Fprintf(os.Stderr, "✓ %s\n", out)
	}
	if cfg.Feedback.Enabled {
		fmt.Fprintf(os.Stderr, "✓ Feedback sent: %d (failed: %d)\n", res.FeedbackSent, res.FeedbackFailed)
	}

	return nil
}
