// Package evaluator implements the evaluation agent contract: one work item
// in, one structured verdict out. The agent's internal reasoning is opaque;
// this package owns the instruction it receives and the validation of the
// JSON it returns.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/driftwatch/engine"
	"github.com/c360studio/driftwatch/frontmatter"
	"github.com/c360studio/driftwatch/llm"
)

// agentRunner abstracts the agent loop so the contract can be tested
// against scripted output.
type agentRunner interface {
	Run(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Evaluator invokes the evaluation agent once per work item.
type Evaluator struct {
	runner agentRunner
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// New creates an evaluator over the given agent loop.
func New(runner agentRunner, opts ...Option) *Evaluator {
	e := &Evaluator{
		runner: runner,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// verdictPayload is the JSON contract through which agent output re-enters
// the typed world. Field names are fixed by the agent boundary.
type verdictPayload struct {
	LanguageName   string `json:"languageName"`
	NeedsUpdate    *bool  `json:"needsUpdate"`
	UpdatedContent string `json:"updatedContent"`
	ChangeSummary  string `json:"changeSummary"`
	FilePath       string `json:"filePath"`
}

// Evaluate runs the agent for one work item and returns its verdict. Any
// transport error or malformed output is returned as an error; the engine
// isolates it to this item.
func (e *Evaluator) Evaluate(ctx context.Context, item engine.WorkItem) (engine.Verdict, error) {
	today := e.now().UTC().Format("2006-01-02")
	meta, _ := frontmatter.Parse(item.Content)
	userPrompt := fmt.Sprintf(userPromptTemplate,
		item.Topic, item.FilePath, today,
		meta.LanguageVersion, meta.LastChecked, meta.ResourceHash, meta.VersionSourceURL,
		formatReferenceURLs(frontmatter.ExtractReferenceURLs(item.Content)),
		item.Content)

	e.logger.Debug("Evaluating document", "topic", item.Topic, "file", item.FilePath,
		"version", meta.LanguageVersion, "lastChecked", meta.LastChecked)

	output, err := e.runner.Run(ctx, systemPrompt, userPrompt)
	if err != nil {
		return engine.Verdict{}, fmt.Errorf("evaluation agent: %w", err)
	}

	payload, err := parseVerdict(output)
	if err != nil {
		return engine.Verdict{}, fmt.Errorf("evaluation output for %s: %w", item.Topic, err)
	}

	return engine.Verdict{
		NeedsUpdate:    *payload.NeedsUpdate,
		UpdatedContent: payload.UpdatedContent,
		ChangeSummary:  payload.ChangeSummary,
	}, nil
}

// formatReferenceURLs renders the URL list for the prompt, one per line.
func formatReferenceURLs(urls []string) string {
	if len(urls) == 0 {
		return "  (none tracked)"
	}
	var sb strings.Builder
	for i, u := range urls {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("  - ")
		sb.WriteString(u)
	}
	return sb.String()
}

// parseVerdict extracts and validates the verdict JSON from agent output.
func parseVerdict(output string) (*verdictPayload, error) {
	raw := llm.ExtractJSON(output)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in agent output")
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("parse verdict JSON: %w", err)
	}

	// Required-field validation: a missing field is a per-item evaluation
	// fault, not a crash.
	if payload.NeedsUpdate == nil {
		return nil, fmt.Errorf("verdict missing required field needsUpdate")
	}
	if payload.ChangeSummary == "" {
		return nil, fmt.Errorf("verdict missing required field changeSummary")
	}
	if *payload.NeedsUpdate && payload.UpdatedContent == "" {
		return nil, fmt.Errorf("verdict claims update but has empty updatedContent")
	}

	return &payload, nil
}
