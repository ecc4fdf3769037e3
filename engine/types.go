// Package engine implements the update orchestration engine: it fans
// discovered work items out to bounded-concurrency evaluation agent calls,
// aggregates the verdicts, and drives the publishing agent once per run when
// any document needs replacing.
package engine

import "time"

// Run parameter bounds. Misconfigured inputs are clamped, never rejected:
// a zero-progress or runaway-cost run is worse than a conservatively
// clamped one.
const (
	// MinConcurrency is the lower clamp for MaxConcurrentEvaluations.
	MinConcurrency = 1

	// DefaultConcurrency bounds simultaneous evaluation agent calls when
	// the run input does not say otherwise. The ceiling exists because the
	// reasoning service rejects oversized request bursts.
	DefaultConcurrency = 3

	// DefaultTokenBudgetHint is the characters-per-token cost estimation
	// ratio used when the run input does not provide one.
	DefaultTokenBudgetHint = 4
)

// WorkItem is one unit of evaluation input: a single tracked document.
// Immutable once created; consumed by exactly one evaluation agent call.
type WorkItem struct {
	// Topic is the subject the document covers (directory name).
	Topic string `json:"topic"`

	// FilePath is the document path on disk.
	FilePath string `json:"file_path"`

	// Content is the full document text at discovery time.
	Content string `json:"content"`
}

// Verdict is the structured outcome of evaluating one work item.
type Verdict struct {
	// Topic and FilePath are stamped by the engine from the originating
	// work item; the agent's own claims for them are not trusted.
	Topic    string `json:"topic"`
	FilePath string `json:"file_path"`

	// NeedsUpdate reports whether the document drifted from its sources.
	NeedsUpdate bool `json:"needs_update"`

	// UpdatedContent is the complete replacement document, empty when no
	// update is needed.
	UpdatedContent string `json:"updated_content,omitempty"`

	// ChangeSummary is a short human-readable description of what changed.
	ChangeSummary string `json:"change_summary,omitempty"`

	// Failed marks a verdict synthesized for an evaluation that errored.
	// A failed item never aborts the run.
	Failed bool `json:"failed,omitempty"`

	// Error holds the evaluation failure message when Failed is set.
	Error string `json:"error,omitempty"`
}

// RunInput carries everything one audit run needs. Immutable for the run's
// lifetime.
type RunInput struct {
	// RunID identifies the run for checkpointing and resumption.
	RunID string `json:"run_id"`

	// WorkItems is the list of documents to evaluate.
	WorkItems []WorkItem `json:"work_items"`

	// MaxConcurrentEvaluations bounds simultaneous evaluation agent calls.
	MaxConcurrentEvaluations int `json:"max_concurrent_evaluations"`

	// TokenBudgetHint is the characters-per-token cost estimation ratio.
	TokenBudgetHint int `json:"token_budget_hint"`

	// TriggerTime is when the schedule fired.
	TriggerTime time.Time `json:"trigger_time"`
}

// Normalize clamps run parameters to sane bounds. Zero concurrency means
// unset and takes the default; a negative value is clamped to the floor.
func (in *RunInput) Normalize() {
	if in.MaxConcurrentEvaluations == 0 {
		in.MaxConcurrentEvaluations = DefaultConcurrency
	} else if in.MaxConcurrentEvaluations < MinConcurrency {
		in.MaxConcurrentEvaluations = MinConcurrency
	}
	if in.TokenBudgetHint < 1 {
		in.TokenBudgetHint = DefaultTokenBudgetHint
	}
}

// PublishResult is the outcome of the publishing agent call.
type PublishResult struct {
	// PRURL locates the opened change request.
	PRURL string `json:"pr_url"`
}
