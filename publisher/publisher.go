// Package publisher implements the publishing agent contract: a batch of
// update verdicts in, one pull request URL out. The agent drives the remote
// repository tools itself; this package owns its instruction, the file
// manifest it receives, and the validation of the JSON it returns.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/driftwatch/engine"
	"github.com/c360studio/driftwatch/llm"
)

// agentRunner abstracts the agent loop so the contract can be tested
// against scripted output.
type agentRunner interface {
	Run(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Publisher invokes the publishing agent once per run.
type Publisher struct {
	runner  agentRunner
	docsDir string
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

// New creates a publisher over the given agent loop. docsDir is the local
// corpus root; file paths are made repository-relative against it.
func New(runner agentRunner, docsDir string, opts ...Option) *Publisher {
	p := &Publisher{
		runner:  runner,
		docsDir: docsDir,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// publishPayload is the JSON contract for the agent's final answer.
type publishPayload struct {
	PRURL string `json:"prUrl"`
}

// Publish runs the agent once over the given update verdicts and returns
// the created pull request URL.
func (p *Publisher) Publish(ctx context.Context, verdicts []engine.Verdict) (*engine.PublishResult, error) {
	if len(verdicts) == 0 {
		return nil, fmt.Errorf("nothing to publish")
	}

	branchHint := fmt.Sprintf("docs-update/%s-%s",
		p.now().UTC().Format("2006-01-02"),
		uuid.NewString()[:8])

	var manifest strings.Builder
	for _, v := range verdicts {
		manifest.WriteString(fmt.Sprintf(fileEntryTemplate,
			p.repoRelativePath(v.FilePath),
			v.ChangeSummary,
			v.UpdatedContent))
	}

	userPrompt := fmt.Sprintf(userPromptTemplate, branchHint, len(verdicts), manifest.String())

	p.logger.Info("Publishing documentation updates",
		"files", len(verdicts),
		"branch_hint", branchHint)

	output, err := p.runner.Run(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("publishing agent: %w", err)
	}

	payload, err := parsePublishResult(output)
	if err != nil {
		return nil, fmt.Errorf("publishing output: %w", err)
	}

	p.logger.Info("Pull request created", "url", payload.PRURL)

	return &engine.PublishResult{PRURL: payload.PRURL}, nil
}

// repoRelativePath strips the local corpus root so the agent pushes to the
// path the repository actually uses.
func (p *Publisher) repoRelativePath(filePath string) string {
	cleaned := path.Clean(strings.ReplaceAll(filePath, "\\", "/"))
	root := path.Clean(strings.ReplaceAll(p.docsDir, "\\", "/"))

	if root != "" && root != "." {
		if rel, ok := strings.CutPrefix(cleaned, root+"/"); ok {
			return rel
		}
	}
	return strings.TrimPrefix(cleaned, "/")
}

// parsePublishResult extracts and validates the PR URL from agent output.
func parsePublishResult(output string) (*publishPayload, error) {
	raw := llm.ExtractJSON(output)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in agent output")
	}

	var payload publishPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("parse publish JSON: %w", err)
	}

	if payload.PRURL == "" {
		return nil, fmt.Errorf("publish result missing required field prUrl")
	}
	if u, err := url.Parse(payload.PRURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("publish result has invalid prUrl %q", payload.PRURL)
	}

	return &payload, nil
}
