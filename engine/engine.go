package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Evaluator is the evaluation agent boundary: one work item in, one verdict
// out. An error covers transport failures and malformed agent output; the
// engine converts it into a failed verdict for that item alone.
type Evaluator interface {
	Evaluate(ctx context.Context, item WorkItem) (Verdict, error)
}

// Publisher is the publishing agent boundary: invoked at most once per run
// with every verdict that requires an update.
type Publisher interface {
	Publish(ctx context.Context, verdicts []Verdict) (*PublishResult, error)
}

// Engine orchestrates one audit run over the evaluation and publishing
// agents. It owns the run's work items and verdicts; no other component
// holds cross-item state.
type Engine struct {
	evaluator   Evaluator
	publisher   Publisher
	checkpoints CheckpointStore
	metrics     *Metrics
	logger      *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPublisher enables the publishing step. Without it the engine runs in
// evaluation-only mode (missing publishing credentials degrade the process,
// they do not fail runs).
func WithPublisher(p Publisher) EngineOption {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithCheckpoints enables replay-safe resumption via the given store.
func WithCheckpoints(store CheckpointStore) EngineOption {
	return func(e *Engine) {
		e.checkpoints = store
	}
}

// WithMetrics attaches run metrics.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an engine around the given evaluation agent.
func New(evaluator Evaluator, opts ...EngineOption) *Engine {
	e := &Engine{
		evaluator:   evaluator,
		checkpoints: NewMemoryCheckpointStore(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one audit run: batch-evaluate every work item, aggregate,
// publish once if anything needs updating, and return one verdict per work
// item regardless of publish outcome. Items checkpointed under the same run
// ID are not re-evaluated. The publish result is nil when nothing was
// published.
func (e *Engine) Run(ctx context.Context, input RunInput) ([]Verdict, *PublishResult, error) {
	input.Normalize()

	completed, err := e.checkpoints.Load(ctx, input.RunID)
	if err != nil {
		// A broken checkpoint store must not block evaluation; the run just
		// loses resumability.
		e.logger.Warn("Failed to load checkpoints, starting fresh",
			"run_id", input.RunID, "error", err)
		completed = map[string]Verdict{}
	}

	e.logger.Info("Starting audit run",
		"run_id", input.RunID,
		"work_items", len(input.WorkItems),
		"already_completed", len(completed),
		"max_concurrent", input.MaxConcurrentEvaluations)

	verdicts := make([]Verdict, len(input.WorkItems))
	pending := []int{}

	for i, item := range input.WorkItems {
		if v, ok := completed[item.Topic]; ok {
			verdicts[i] = v
			if e.metrics != nil {
				e.metrics.ResumedEvals.Inc()
			}
			continue
		}
		pending = append(pending, i)
	}

	batches := 0
	for start := 0; start < len(pending); start += input.MaxConcurrentEvaluations {
		end := start + input.MaxConcurrentEvaluations
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]
		batches++

		// The batch await is the sole concurrency bound: batch N+1 never
		// starts before every call in batch N has resolved.
		group, groupCtx := errgroup.WithContext(ctx)
		for _, idx := range batch {
			group.Go(func() error {
				verdicts[idx] = e.evaluateOne(groupCtx, input, input.WorkItems[idx])
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, nil, err
		}

		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
	}

	if e.metrics != nil {
		e.metrics.BatchesPerRun.Observe(float64(batches))
		for _, v := range verdicts {
			e.metrics.VerdictsTotal.WithLabelValues(verdictResult(v)).Inc()
		}
	}

	updates := Aggregate(verdicts)

	e.logger.Info("Evaluation complete",
		"run_id", input.RunID,
		"verdicts", len(verdicts),
		"updates", len(updates))

	var published *PublishResult
	if len(updates) > 0 && e.publisher != nil {
		result, err := e.publisher.Publish(ctx, updates)
		if err != nil {
			// Publish failure is fatal for the publish step only; the
			// computed verdicts remain the run's result.
			e.logger.Error("Publishing failed", "run_id", input.RunID, "error", err)
			if e.metrics != nil {
				e.metrics.PublishTotal.WithLabelValues("error").Inc()
				e.metrics.RunsTotal.WithLabelValues("publish_failed").Inc()
			}
			return verdicts, nil, fmt.Errorf("publish updates: %w", err)
		}
		published = result

		e.logger.Info("Published change request",
			"run_id", input.RunID,
			"pr_url", result.PRURL,
			"files", len(updates))
		if e.metrics != nil {
			e.metrics.PublishTotal.WithLabelValues("success").Inc()
		}
	} else if len(updates) > 0 {
		e.logger.Warn("Updates found but publishing is disabled",
			"run_id", input.RunID, "updates", len(updates))
	}

	if e.metrics != nil {
		e.metrics.RunsTotal.WithLabelValues("completed").Inc()
	}

	return verdicts, published, nil
}

// evaluateOne runs a single evaluation agent call, stamps the verdict with
// the engine-authoritative identifiers, and checkpoints it. A failed call
// yields a failed verdict for this item only.
func (e *Engine) evaluateOne(ctx context.Context, input RunInput, item WorkItem) Verdict {
	started := time.Now()

	verdict, err := e.evaluator.Evaluate(ctx, item)
	if err != nil {
		e.logger.Warn("Evaluation failed",
			"run_id", input.RunID,
			"topic", item.Topic,
			"error", err)
		verdict = Verdict{Failed: true, Error: err.Error()}
	}

	// The engine, not the agent, is authoritative for item identity.
	verdict.Topic = item.Topic
	verdict.FilePath = item.FilePath

	if e.metrics != nil {
		e.metrics.EvaluationSecs.Observe(time.Since(started).Seconds())
	}

	if err := e.checkpoints.Store(ctx, input.RunID, verdict); err != nil {
		e.logger.Warn("Failed to checkpoint verdict",
			"run_id", input.RunID,
			"topic", item.Topic,
			"error", err)
	}

	return verdict
}

// Aggregate filters verdicts to those requiring publication: an update is
// only actionable when replacement content exists.
func Aggregate(verdicts []Verdict) []Verdict {
	updates := []Verdict{}
	for _, v := range verdicts {
		if v.NeedsUpdate && v.UpdatedContent != "" && !v.Failed {
			updates = append(updates, v)
		}
	}
	return updates
}
