package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/c360studio/driftwatch/engine"
)

// DefaultCronSpec fires the weekly audit: Saturdays at 06:00.
const DefaultCronSpec = "0 6 * * 6"

// Runner is the engine boundary the trigger drives.
type Runner interface {
	Run(ctx context.Context, input engine.RunInput) ([]engine.Verdict, *engine.PublishResult, error)
}

// Trigger fires audit runs on a cron schedule or on demand.
type Trigger struct {
	runner      Runner
	docsDir     string
	cronSpec    string
	concurrency int
	budgetHint  int
	logger      *slog.Logger

	cron *cron.Cron
}

// TriggerOption configures a Trigger.
type TriggerOption func(*Trigger)

// WithCronSpec overrides the schedule.
func WithCronSpec(spec string) TriggerOption {
	return func(t *Trigger) {
		t.cronSpec = spec
	}
}

// WithConcurrency sets the evaluation concurrency passed to each run.
func WithConcurrency(n int) TriggerOption {
	return func(t *Trigger) {
		t.concurrency = n
	}
}

// WithTokenBudgetHint sets the cost estimation ratio passed to each run.
func WithTokenBudgetHint(n int) TriggerOption {
	return func(t *Trigger) {
		t.budgetHint = n
	}
}

// WithTriggerLogger sets the logger.
func WithTriggerLogger(logger *slog.Logger) TriggerOption {
	return func(t *Trigger) {
		t.logger = logger
	}
}

// NewTrigger creates a trigger over the given engine and corpus root.
func NewTrigger(runner Runner, docsDir string, opts ...TriggerOption) *Trigger {
	t := &Trigger{
		runner:      runner,
		docsDir:     docsDir,
		cronSpec:    DefaultCronSpec,
		concurrency: engine.DefaultConcurrency,
		budgetHint:  engine.DefaultTokenBudgetHint,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start registers the cron entry and begins the schedule. The context bounds
// scheduled runs, not Start itself.
func (t *Trigger) Start(ctx context.Context) error {
	c := cron.New()

	_, err := c.AddFunc(t.cronSpec, func() {
		if _, _, err := t.RunOnce(ctx); err != nil {
			t.logger.Error("Scheduled audit run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("register cron schedule %q: %w", t.cronSpec, err)
	}

	c.Start()
	t.cron = c

	t.logger.Info("Audit schedule started", "spec", t.cronSpec)

	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (t *Trigger) Stop() {
	if t.cron == nil {
		return
	}
	<-t.cron.Stop().Done()
	t.logger.Info("Audit schedule stopped")
}

// RunOnce discovers the corpus and drives one full audit run.
func (t *Trigger) RunOnce(ctx context.Context) ([]engine.Verdict, *engine.PublishResult, error) {
	items, err := DiscoverWorkItems(t.docsDir, t.logger)
	if err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		t.logger.Warn("No tracked documents found, skipping run", "dir", t.docsDir)
		return nil, nil, nil
	}

	input := engine.RunInput{
		RunID:                    uuid.NewString(),
		WorkItems:                items,
		MaxConcurrentEvaluations: t.concurrency,
		TokenBudgetHint:          t.budgetHint,
		TriggerTime:              time.Now().UTC(),
	}

	t.logger.Info("Audit run triggered",
		"run_id", input.RunID,
		"documents", len(items))

	return t.runner.Run(ctx, input)
}
