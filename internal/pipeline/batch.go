package pipeline

import (
	"context"

	"github.com/ppiankov/drillgrade/internal/worker"
	"go.uber.org/zap"
)

// Job is one exercise of a batch
type Job struct {
	Exercise string
	Messages string // optional override of the exercise's messages setting
}

// RunBatch grades several exercises in isolation, up to workers at a
// time. Outcomes come back in job order; one failing exercise does not
// stop the others.
func (p *Pipeline) RunBatch(ctx context.Context, jobs []Job, workers int) []*worker.Outcome[*Result] {
	tasks := make([]worker.Task[*Result], 0, len(jobs))
	for _, job := range jobs {
		job := job
		tasks = append(tasks, worker.Task[*Result]{
			Name: job.Exercise,
			Run: func(ctx context.Context) (*Result, error) {
				return p.Run(ctx, job.Exercise, job.Messages)
			},
		})
	}

	p.logger.Info("grading batch", zap.Int("exercises", len(jobs)), zap.Int("workers", workers))
	return worker.RunBatch(ctx, workers, tasks)
}
