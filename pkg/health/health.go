package health

import (
	"context"
	"fmt"
	"time"
)

// CheckType represents the type of reachability check
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
)

// Result represents the outcome of a check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

func resultSince(start time.Time, healthy bool, format string, args ...any) Result {
	return Result{
		Healthy:   healthy,
		Message:   fmt.Sprintf(format, args...),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Checker is the interface that all checkers must implement
type Checker interface {
	// Check performs the check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of check
	Type() CheckType
}

// Config controls how a checker is retried
type Config struct {
	// Interval is the time between attempts
	Interval time.Duration

	// Timeout bounds a single attempt
	Timeout time.Duration

	// Retries is the number of consecutive failures before giving up
	Retries int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval: time.Second,
		Timeout:  10 * time.Second,
		Retries:  3,
	}
}

// Status tracks consecutive results of one checker
type Status struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastCheck            time.Time
	LastResult           Result

	// Healthy stays true until Retries consecutive failures
	Healthy bool
}

// NewStatus creates a new Status with default values
func NewStatus() *Status {
	return &Status{Healthy: true}
}

// Update updates the status based on a new result
func (s *Status) Update(result Result, config Config) {
	s.LastCheck = result.CheckedAt
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
	} else {
		s.ConsecutiveFailures++
		s.ConsecutiveSuccesses = 0

		if s.ConsecutiveFailures >= config.Retries {
			s.Healthy = false
		}
	}
}

// Probe runs checker until it succeeds once or fails Retries times in a
// row. The last result is returned either way.
func Probe(ctx context.Context, checker Checker, config Config) (Result, error) {
	if config.Retries < 1 {
		config.Retries = 1
	}

	status := NewStatus()
	for {
		attemptCtx := ctx
		cancel := func() {}
		if config.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, config.Timeout)
		}
		result := checker.Check(attemptCtx)
		cancel()

		status.Update(result, config)
		if result.Healthy || !status.Healthy {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(config.Interval):
		}
	}
}
