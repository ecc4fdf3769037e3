package schedule

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/driftwatch/engine"
)

func writeDoc(t *testing.T, dir, topic, name, content string) string {
	t.Helper()
	topicDir := filepath.Join(dir, topic)
	require.NoError(t, os.MkdirAll(topicDir, 0o755))
	path := filepath.Join(topicDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDiscoverWorkItems(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "python", "python-best-practices.md", "# Python")
	writeDoc(t, dir, "go", "go-best-practices.md", "# Go")
	writeDoc(t, dir, "rust", "rust-best-practices.md", "# Rust")

	items, err := DiscoverWorkItems(dir, slog.Default())
	require.NoError(t, err)
	require.Len(t, items, 3)

	// Topic order is deterministic.
	assert.Equal(t, "go", items[0].Topic)
	assert.Equal(t, "python", items[1].Topic)
	assert.Equal(t, "rust", items[2].Topic)

	assert.Equal(t, "# Python", items[1].Content)
	assert.Equal(t, filepath.Join(dir, "python", "python-best-practices.md"), items[1].FilePath)
}

func TestDiscoverIgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "python", "python-best-practices.md", "# Python")
	writeDoc(t, dir, "python", "notes.md", "scratch")
	writeDoc(t, dir, "python", "python-cheatsheet.md", "cheatsheet")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("readme"), 0o644))

	items, err := DiscoverWorkItems(dir, slog.Default())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "python", items[0].Topic)
}

func TestDiscoverOneDocumentPerTopic(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "python", "async-best-practices.md", "# Async")
	writeDoc(t, dir, "python", "python-best-practices.md", "# Python")

	items, err := DiscoverWorkItems(dir, slog.Default())
	require.NoError(t, err)
	require.Len(t, items, 1)

	// Glob order within the directory makes the pick stable.
	assert.Equal(t, "# Async", items[0].Content)
}

func TestDiscoverEmptyCorpus(t *testing.T) {
	items, err := DiscoverWorkItems(t.TempDir(), slog.Default())
	require.NoError(t, err)
	assert.Empty(t, items)
}

type recordingRunner struct {
	input engine.RunInput
	calls int
}

func (r *recordingRunner) Run(_ context.Context, input engine.RunInput) ([]engine.Verdict, *engine.PublishResult, error) {
	r.calls++
	r.input = input
	return []engine.Verdict{}, nil, nil
}

func TestRunOnceBuildsRunInput(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "python", "python-best-practices.md", "# Python")
	writeDoc(t, dir, "go", "go-best-practices.md", "# Go")

	runner := &recordingRunner{}
	trigger := NewTrigger(runner, dir, WithConcurrency(5), WithTokenBudgetHint(4))

	_, _, err := trigger.RunOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, runner.calls)
	assert.NotEmpty(t, runner.input.RunID)
	assert.Len(t, runner.input.WorkItems, 2)
	assert.Equal(t, 5, runner.input.MaxConcurrentEvaluations)
	assert.Equal(t, 4, runner.input.TokenBudgetHint)
	assert.False(t, runner.input.TriggerTime.IsZero())
}

func TestRunOnceSkipsEmptyCorpus(t *testing.T) {
	runner := &recordingRunner{}
	trigger := NewTrigger(runner, t.TempDir())

	verdicts, result, err := trigger.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, verdicts)
	assert.Nil(t, result)
	assert.Zero(t, runner.calls)
}

func TestRunOnceFreshRunIDPerRun(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "python", "python-best-practices.md", "# Python")

	runner := &recordingRunner{}
	trigger := NewTrigger(runner, dir)

	_, _, err := trigger.RunOnce(context.Background())
	require.NoError(t, err)
	first := runner.input.RunID

	_, _, err = trigger.RunOnce(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first, runner.input.RunID)
}

func TestTriggerRejectsBadCronSpec(t *testing.T) {
	trigger := NewTrigger(&recordingRunner{}, t.TempDir(), WithCronSpec("not a cron spec"))

	err := trigger.Start(context.Background())
	require.Error(t, err)
}
