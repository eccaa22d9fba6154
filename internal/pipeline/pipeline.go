// Package pipeline runs one exercise: load, grade, locate, report.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/drillgrade/internal/cache"
	"github.com/ppiankov/drillgrade/internal/grade"
	"github.com/ppiankov/drillgrade/internal/message"
	"github.com/ppiankov/drillgrade/internal/model"
	"github.com/ppiankov/drillgrade/internal/outbound"
	"github.com/ppiankov/drillgrade/internal/p2p"
	"github.com/ppiankov/drillgrade/internal/report"
	"github.com/ppiankov/drillgrade/internal/similarity"
	"go.uber.org/zap"
)

// Pipeline grades exercises. It holds no per-run state, so one Pipeline
// may run several exercises concurrently.
type Pipeline struct {
	config *model.Config
	logger *zap.Logger
	cache  cache.Cache
	sender outbound.Sender

	newScorer func(reference string) (similarity.Scorer, error)
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithSender delivers feedback through s instead of the configured outbox
// and webhook
func WithSender(s outbound.Sender) Option {
	return func(p *Pipeline) { p.sender = s }
}

// WithScorerFactory replaces the image scorer built for each exercise
func WithScorerFactory(f func(reference string) (similarity.Scorer, error)) Option {
	return func(p *Pipeline) { p.newScorer = f }
}

// NewPipeline creates a pipeline from the run configuration
func NewPipeline(cfg *model.Config, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pipeline{
		config: cfg,
		logger: logger,
		cache:  cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.MemoryTTL, cfg.Cache.DiskTTL),
	}
	p.newScorer = p.defaultScorer

	for _, opt := range opts {
		opt(p)
	}

	if p.sender == nil && cfg.Feedback.Enabled {
		p.sender = feedbackSender(cfg.Feedback)
	}
	return p
}

func (p *Pipeline) defaultScorer(reference string) (similarity.Scorer, error) {
	hash, err := similarity.NewAverageHash(reference)
	if err != nil {
		return nil, err
	}
	return similarity.NewCached(hash, p.cache, hash.ID()), nil
}

func feedbackSender(cfg model.FeedbackConfig) outbound.Sender {
	var senders outbound.Multi
	if cfg.OutboxDir != "" {
		senders = append(senders, outbound.NewOutbox(cfg.OutboxDir))
	}
	if cfg.WebhookURL != "" {
		senders = append(senders, outbound.NewWebhook(cfg.WebhookURL, outbound.WebhookOptions{
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
			HTTPProxy:         cfg.HTTPProxy,
			HTTPSProxy:        cfg.HTTPSProxy,
			NoProxy:           cfg.NoProxy,
		}))
	}
	if len(senders) == 0 {
		return nil
	}
	return senders
}

// Result is the outcome of one exercise run
type Result struct {
	RunID     string
	Exercise  string
	OutputDir string
	Header    []string
	Rows      []report.Row
	Summary   *report.Summary
	Graph     *p2p.Graph
	Outputs   []string // files written

	FeedbackSent   int
	FeedbackFailed int
}

// Run grades the messages at messagesPath (or the exercise's messages
// setting when empty) against the exercise file.
// Configuration problems abort with an error wrapping ErrConfiguration;
// problems with individual messages only lower their grades.
func (p *Pipeline) Run(ctx context.Context, exercisePath, messagesPath string) (*Result, error) {
	started := time.Now()
	runID := uuid.NewString()
	log := p.logger.With(zap.String("run_id", runID), zap.String("exercise_file", exercisePath))

	ex, err := LoadExercise(exercisePath)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("exercise", ex.Name))

	pl, err := p.compile(ex)
	if err != nil {
		return nil, err
	}
	if total := pl.totalWeight(); total != grade.MaxScore {
		log.Warn("field weights do not add up to a full score",
			zap.Int("total_weight", total), zap.Int("max_score", grade.MaxScore))
	}
	if pl.lookup != nil && len(pl.lookup.table.Duplicates) > 0 {
		log.Warn("ground truth has duplicate keys, last row wins",
			zap.String("path", pl.lookup.table.Path()),
			zap.Strings("keys", pl.lookup.table.Duplicates))
	}

	graded, summary, err := p.load(messagesPath, pl, log)
	if err != nil {
		return nil, err
	}
	summary.RunID = runID
	summary.Started = started

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	units, err := p.grade(ctx, pl, graded, summary)
	if err != nil {
		return nil, fmt.Errorf("grade %s: %w", ex.Name, err)
	}
	log.Info("graded exercise",
		zap.Int("units", len(units)),
		zap.Int("passed", summary.Passed()),
		zap.Int("automatic_fails", summary.AutomaticFails))

	summary.Synthetic = p.locate(pl, graded, units)

	var graph *p2p.Graph
	if ex.P2P != nil {
		graph = p2p.Build(pl.targets.Targets, graded, p2p.WithCc(ex.P2P.UseCc), p2p.WithHeader(pl.targets.Header))
		summary.Graph = graph
		if graph.DroppedCount > 0 {
			log.Info("dropped p2p addresses",
				zap.Int("dropped", graph.DroppedCount), zap.Int("no_sender", graph.NoSender))
		}
	}

	res := &Result{
		RunID:     runID,
		Exercise:  ex.Name,
		OutputDir: filepath.Join(p.config.Output.Dir, Slug(ex.Name)),
		Header:    header(pl),
		Summary:   summary,
		Graph:     graph,
	}
	for _, u := range units {
		res.Rows = append(res.Rows, report.Row{Columns: u.columns, Grade: u.grade})
	}

	if p.sender != nil {
		res.FeedbackSent, res.FeedbackFailed = p.sendFeedback(ctx, ex, units, log)
	}

	summary.Duration = time.Since(started)
	if err := p.write(res, pl, units, log); err != nil {
		return nil, err
	}

	return res, nil
}

// load reads the export and keeps the messages this exercise grades. An
// empty messagesPath falls back to the exercise's own messages setting.
func (p *Pipeline) load(messagesPath string, pl *plan, log *zap.Logger) ([]model.Message, *report.Summary, error) {
	if messagesPath == "" {
		messagesPath = pl.exercise.Messages
	}
	if messagesPath == "" {
		return nil, nil, fmt.Errorf("%w: no message export given for %s", ErrConfiguration, pl.exercise.Name)
	}

	export, err := message.Load(messagesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	summary := &report.Summary{
		Exercise:  pl.exercise.Name,
		Unit:      string(pl.exercise.EffectiveUnit()),
		Threshold: pl.exercise.Threshold(),
		Messages:  len(export.Messages) + len(export.Problems),
	}
	for _, problem := range export.Problems {
		log.Warn("undecodable message", zap.String("source", problem.Source), zap.Error(problem.Err))
		summary.Problems = append(summary.Problems, problem.String())
	}
	if pl.lookup != nil {
		summary.Duplicates = pl.lookup.table.Duplicates
	}

	graded := make([]model.Message, 0, len(export.Messages))
	for _, m := range export.Messages {
		if pl.exercise.Accepts(m.Kind) {
			graded = append(graded, m)
		} else {
			summary.Skipped++
		}
	}
	log.Debug("loaded messages",
		zap.Int("loaded", len(export.Messages)),
		zap.Int("graded", len(graded)),
		zap.Int("skipped", summary.Skipped))

	return graded, summary, nil
}

// Graph builds only the P2P graph of an exercise, with synthetic
// locations filled in, without grading or writing anything
func (p *Pipeline) Graph(ctx context.Context, exercisePath, messagesPath string) (*p2p.Graph, error) {
	ex, err := LoadExercise(exercisePath)
	if err != nil {
		return nil, err
	}
	if ex.P2P == nil {
		return nil, fmt.Errorf("%w: %s has no p2p section", ErrConfiguration, exercisePath)
	}

	targets, err := p2p.LoadTargets(ex.P2P.Targets, ex.P2P.SkipRows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	pl := &plan{exercise: ex, targets: targets}

	graded, _, err := p.load(messagesPath, pl, p.logger)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.locate(pl, graded, groupUnits(ex, graded))
	return p2p.Build(targets.Targets, graded, p2p.WithCc(ex.P2P.UseCc), p2p.WithHeader(targets.Header)), nil
}
