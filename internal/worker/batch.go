package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Task is one named unit of batch work
type Task[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Outcome is the result of one Task
type Outcome[T any] struct {
	Index int
	Name  string
	Value T
	Err   error
}

// GetError returns the task's error
func (o *Outcome[T]) GetError() error {
	return o.Err
}

type taskJob[T any] struct {
	index int
	task  Task[T]
}

func (j *taskJob[T]) Execute(ctx context.Context) Result {
	v, err := j.task.Run(ctx)
	return &Outcome[T]{Index: j.index, Name: j.task.Name, Value: v, Err: err}
}

// RunBatch runs tasks on a pool of concurrency workers and returns one
// outcome per task, in task order. Tasks share nothing but ctx; a task
// that never ran because ctx ended carries the context's error.
func RunBatch[T any](ctx context.Context, concurrency int, tasks []Task[T]) []*Outcome[T] {
	if len(tasks) == 0 {
		return []*Outcome[T]{}
	}

	pool := NewPoolWithContext(ctx, concurrency)
	pool.Start()

	for i, task := range tasks {
		pool.Submit(&taskJob[T]{index: i, task: task})
	}

	outcomes := make([]*Outcome[T], len(tasks))
	for _, r := range pool.Wait() {
		o := r.(*Outcome[T])
		outcomes[o.Index] = o
	}

	for i, o := range outcomes {
		if o != nil {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		outcomes[i] = &Outcome[T]{Index: i, Name: tasks[i].Name, Err: fmt.Errorf("not run: %w", err)}
	}

	return outcomes
}

// ReadList reads paths from a list file, one per line. Blank lines and
// # comments are skipped, duplicates dropped, and relative paths resolved
// against the list file's directory.
func ReadList(listPath string) ([]string, error) {
	file, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("open list: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(listPath)

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan list: %w", err)
	}

	return paths, nil
}
