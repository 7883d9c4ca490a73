package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/rs/zerolog"
)

// Target is state that can repair itself
type Target interface {
	// Reconcile runs one repair pass and returns the number of records fixed
	Reconcile(ctx context.Context) (int, error)
}

// Reconciler runs a Target's repair pass on an interval
type Reconciler struct {
	target   Target
	interval time.Duration
	health   *metrics.Health
	logger   zerolog.Logger

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewReconciler creates a new reconciler
func NewReconciler(target Target, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Reconciler{
		target:   target,
		interval: interval,
		health:   metrics.DefaultHealth,
		logger:   log.WithComponent("reconciler"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs one pass immediately and then begins the reconciliation loop
func (r *Reconciler) Start() {
	go r.run()
}

// Stop stops the loop and waits for the current pass to finish
func (r *Reconciler) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Reconciler) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Reconcile()
	for {
		select {
		case <-ticker.C:
			r.Reconcile()
		case <-r.stopCh:
			return
		}
	}
}

// Reconcile performs one reconciliation cycle. Errors are logged and the
// next cycle retries.
func (r *Reconciler) Reconcile() {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	repaired, err := r.target.Reconcile(context.Background())
	if repaired > 0 {
		metrics.ReconciliationRepairsTotal.Add(float64(repaired))
		r.logger.Info().Int("repaired", repaired).Msg("Reconciliation repaired lab state")
	}
	if err != nil {
		r.logger.Error().Err(err).Msg("Reconciliation failed")
		r.health.Set(metrics.ComponentReconciler, false, err.Error())
		return
	}
	r.health.Set(metrics.ComponentReconciler, true, "")
}
