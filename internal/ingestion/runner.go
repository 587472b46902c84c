package ingestion

import (
	"context"
	"log/slog"
	"time"
)

// Runner periodically sweeps the active rules and ingests the ones whose
// frequency interval has elapsed. The API endpoint exists for on-demand runs
// and ignores the schedule; only the runner honors it.
type Runner struct {
	orchestrator *Orchestrator
	interval     time.Duration
	logger       *slog.Logger
}

// NewRunner creates a scheduler sweeping at the given interval. Intervals
// under a minute are raised to a minute so a misconfiguration cannot hammer
// upstream APIs.
func NewRunner(orchestrator *Orchestrator, interval time.Duration, logger *slog.Logger) *Runner {
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Runner{
		orchestrator: orchestrator,
		interval:     interval,
		logger:       logger,
	}
}

// Run blocks sweeping until the context is cancelled. The first sweep happens
// after one full interval so startup does not immediately hit upstream APIs.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("ingestion scheduler started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("ingestion scheduler stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	results, err := r.orchestrator.RunDueRules(ctx)
	if err != nil {
		r.logger.Error("scheduled sweep failed", "error", err)
		return
	}
	if len(results) == 0 {
		r.logger.Debug("scheduled sweep found no due rules")
		return
	}

	processed := 0
	for _, res := range results {
		processed += res.PostsProcessed
	}
	r.logger.Info("scheduled sweep complete", "rules_run", len(results), "posts_processed", processed)
}
