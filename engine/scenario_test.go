package engine_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/driftwatch/engine"
	"github.com/c360studio/driftwatch/evaluator"
	"github.com/c360studio/driftwatch/frontmatter"
	"github.com/c360studio/driftwatch/publisher"
)

// The full pipeline with stub agents: three topics go through real
// evaluator, engine, and publisher contracts. One document is current, one
// has version drift, one has a broken reference link. Exactly the two
// drifted documents reach the publishing agent, once, in a single batch.

// routingRunner plays the evaluation agent: it picks its scripted verdict
// by the topic named in the instruction it receives.
type routingRunner struct {
	mu      sync.Mutex
	outputs map[string]string // topic → verdict JSON
	prompts []string
}

func (r *routingRunner) Run(_ context.Context, _, userPrompt string) (string, error) {
	r.mu.Lock()
	r.prompts = append(r.prompts, userPrompt)
	r.mu.Unlock()
	for topic, out := range r.outputs {
		if strings.Contains(userPrompt, "Topic: "+topic+"\n") {
			return out, nil
		}
	}
	return "", fmt.Errorf("no scripted verdict matches instruction")
}

// countingRunner plays the publishing agent.
type countingRunner struct {
	calls      atomic.Int32
	lastPrompt string
}

func (c *countingRunner) Run(_ context.Context, _, userPrompt string) (string, error) {
	c.calls.Add(1)
	c.lastPrompt = userPrompt
	return `{"prUrl": "https://github.com/acme/docs/pull/42"}`, nil
}

func doc(version, lastChecked, hash, body string) string {
	return frontmatter.Serialize(frontmatter.Metadata{
		LanguageVersion:  version,
		LastChecked:      lastChecked,
		ResourceHash:     hash,
		VersionSourceURL: "https://example.com/releases",
	}, body)
}

func verdictJSON(t *testing.T, needsUpdate bool, content, summary string) string {
	t.Helper()
	out, err := json.Marshal(map[string]any{
		"needsUpdate":    needsUpdate,
		"updatedContent": content,
		"changeSummary":  summary,
	})
	require.NoError(t, err)
	return string(out)
}

func TestAuditPipelineThreeTopics(t *testing.T) {
	goDoc := doc("1.24", "2026-02-01", "aaa111",
		"# Go Best Practices\n\n## Resources\n\n- https://go.dev/doc/effective_go\n")
	pythonDoc := doc("3.12", "2026-01-15", "bbb222",
		"# Python Best Practices\n\n## Resources\n\n- https://docs.python.org/3/\n")
	rustDoc := doc("1.84", "2026-01-20", "ccc333",
		"# Rust Best Practices\n\n## Resources\n\n- https://old.rust-docs.example/gone\n")

	pythonUpdated := doc("3.13", "2026-03-07", "ddd444",
		"# Python Best Practices\n\nUse Python 3.13.\n\n## Resources\n\n- https://docs.python.org/3/\n")
	rustUpdated := doc("1.84", "2026-03-07", "ccc333",
		"# Rust Best Practices\n\n## Resources\n\n- https://doc.rust-lang.org/book/\n")

	evalRunner := &routingRunner{outputs: map[string]string{
		"go":     verdictJSON(t, false, "", "No update needed"),
		"python": verdictJSON(t, true, pythonUpdated, "New stable version 3.13 released"),
		"rust":   verdictJSON(t, true, rustUpdated, "Reference link https://old.rust-docs.example/gone is broken, replaced"),
	}}
	pubRunner := &countingRunner{}

	eval := evaluator.New(evalRunner)
	pub := publisher.New(pubRunner, "docs")

	e := engine.New(eval,
		engine.WithPublisher(pub),
		engine.WithCheckpoints(engine.NewMemoryCheckpointStore()))

	verdicts, result, err := e.Run(context.Background(), engine.RunInput{
		RunID: "scenario-1",
		WorkItems: []engine.WorkItem{
			{Topic: "go", FilePath: "docs/go/go-best-practices.md", Content: goDoc},
			{Topic: "python", FilePath: "docs/python/python-best-practices.md", Content: pythonDoc},
			{Topic: "rust", FilePath: "docs/rust/rust-best-practices.md", Content: rustDoc},
		},
		MaxConcurrentEvaluations: 2,
		TriggerTime:              time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Len(t, verdicts, 3)

	byTopic := map[string]engine.Verdict{}
	for _, v := range verdicts {
		byTopic[v.Topic] = v
	}

	assert.False(t, byTopic["go"].NeedsUpdate)
	assert.False(t, byTopic["go"].Failed)

	require.True(t, byTopic["python"].NeedsUpdate)
	meta, _ := frontmatter.Parse(byTopic["python"].UpdatedContent)
	assert.Equal(t, "3.13", meta.LanguageVersion)
	assert.Equal(t, "2026-03-07", meta.LastChecked)
	assert.NotEqual(t, "bbb222", meta.ResourceHash)

	require.True(t, byTopic["rust"].NeedsUpdate)
	assert.Contains(t, byTopic["rust"].ChangeSummary, "broken")

	// Exactly one publish, carrying exactly the two drifted documents.
	require.NotNil(t, result)
	assert.Equal(t, "https://github.com/acme/docs/pull/42", result.PRURL)
	assert.Equal(t, int32(1), pubRunner.calls.Load())
	assert.Contains(t, pubRunner.lastPrompt, "python/python-best-practices.md")
	assert.Contains(t, pubRunner.lastPrompt, "rust/rust-best-practices.md")
	assert.NotContains(t, pubRunner.lastPrompt, "go/go-best-practices.md")
	assert.Contains(t, pubRunner.lastPrompt, "New stable version 3.13 released")

	// Every document's metadata reached its evaluation instruction.
	require.Len(t, evalRunner.prompts, 3)
}
