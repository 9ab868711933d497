// Package importrunner drives queued import jobs: a dispatcher claims
// pending work on a poll interval and hands it to a fixed pool of workers.
package importrunner

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"voterfield/internal/ports"
)

// Processor performs the import for a claimed task and records the job's
// terminal state.
type Processor interface {
	Process(ctx context.Context, task ports.ImportTask) error
}

// Reaper force-fails jobs that have been processing for too long.
type Reaper interface {
	ReapStuck(ctx context.Context, maxRuntime time.Duration) (int, error)
}

// Run claims and processes tasks until ctx is cancelled. Tasks already
// claimed are finished before Run returns.
func Run(ctx context.Context, queue ports.ImportQueue, processor Processor, concurrency int, pollInterval time.Duration, log *zap.Logger) {
	if concurrency < 1 {
		return
	}
	if log == nil {
		log = zap.NewNop()
	}
	tasks := make(chan ports.ImportTask, concurrency)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			// In-flight imports run to completion during shutdown.
			workCtx := context.WithoutCancel(ctx)
			for task := range tasks {
				if err := processor.Process(workCtx, task); err != nil {
					log.Warn("import job failed", zap.Int("worker", idx), zap.String("job_id", task.JobID), zap.Error(err))
				}
			}
		}(i)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	defer wg.Wait()
	defer close(tasks)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for ctx.Err() == nil {
				task, found, err := queue.ClaimNext(ctx)
				if err != nil {
					if ctx.Err() == nil {
						log.Error("job claim error", zap.Error(err))
					}
					break
				}
				if !found {
					break
				}
				tasks <- task
			}
		}
	}
}

// Reap runs the reaper every interval until ctx is cancelled.
func Reap(ctx context.Context, reaper Reaper, interval, maxRuntime time.Duration, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := reaper.ReapStuck(ctx, maxRuntime); err != nil && ctx.Err() == nil {
				log.Error("reaper error", zap.Error(err))
			}
		}
	}
}

// ProcessInline claims a specific pending job and processes it
// synchronously with the same processor the workers use.
func ProcessInline(ctx context.Context, queue ports.ImportQueue, processor Processor, jobID string) error {
	task, err := queue.Claim(ctx, jobID)
	if err != nil {
		return err
	}
	return processor.Process(ctx, task)
}
