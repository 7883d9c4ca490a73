package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/burrow/pkg/types"
)

// TaskStatusFunc reports the current state of one task
type TaskStatusFunc func(ctx context.Context, task types.DeploymentTask) (types.TaskResult, error)

// Waiter polls task state until every task of a batch is terminal
type Waiter struct {
	interval time.Duration
	timeout  time.Duration
}

// NewWaiter creates a waiter polling at interval. A zero timeout waits
// until the context is done.
func NewWaiter(interval, timeout time.Duration) *Waiter {
	if interval <= 0 {
		interval = time.Second
	}
	return &Waiter{
		interval: interval,
		timeout:  timeout,
	}
}

// WaitForTasks polls status for every task until all are terminal and
// returns the results in input order
func (w *Waiter) WaitForTasks(ctx context.Context, tasks []types.DeploymentTask, status TaskStatusFunc) ([]types.TaskResult, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	results := make([]types.TaskResult, len(tasks))
	done := make([]bool, len(tasks))

	poll := func() (bool, error) {
		pending := 0
		for i, task := range tasks {
			if done[i] {
				continue
			}
			r, err := status(ctx, task)
			if err != nil {
				return false, fmt.Errorf("failed to get status of task %s: %w", task.ID, err)
			}
			if !r.State.Terminal() {
				pending++
				continue
			}
			r.Task = task
			results[i] = r
			done[i] = true
		}
		return pending == 0, nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Check immediately
	if ok, err := poll(); err != nil || ok {
		return results, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %d task(s): %w", len(tasks), ctx.Err())
		case <-ticker.C:
			if ok, err := poll(); err != nil || ok {
				return results, err
			}
		}
	}
}
