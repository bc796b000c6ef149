// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// Worker is one open job subscription.
type Worker struct {
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

// WorkerOptions mirror the per-worker config section.
type WorkerOptions struct {
	MaxJobsActive int
	Concurrency   int
	Timeout       time.Duration
}

// NewWorker opens a job worker for taskType. The handler completes or fails
// each job itself.
func NewWorker(client zbc.Client, taskType string, opts WorkerOptions, handler worker.JobHandler, logger *zap.Logger) *Worker {
	step := client.NewJobWorker().
		JobType(taskType).
		Handler(handler)

	if opts.MaxJobsActive > 0 {
		step = step.MaxJobsActive(opts.MaxJobsActive)
	}
	if opts.Concurrency > 0 {
		step = step.Concurrency(opts.Concurrency)
	}
	if opts.Timeout > 0 {
		step = step.Timeout(opts.Timeout)
	}

	logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", opts.MaxJobsActive),
		zap.Duration("timeout", opts.Timeout),
	)

	return &Worker{
		worker:   step.Open(),
		logger:   logger,
		taskType: taskType,
	}
}

// Close stops polling and waits for in-flight jobs.
func (w *Worker) Close() {
	w.logger.Info("stopping worker", zap.String("taskType", w.taskType))
	w.worker.Close()
	w.worker.AwaitClose()
}
