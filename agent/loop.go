// Package agent drives one tool-augmented model invocation: it offers a tool
// catalog to the model, executes the tool calls the model emits, feeds the
// results back, and returns the model's final text output.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/driftwatch/agentic"
	"github.com/c360studio/driftwatch/llm"
)

// DefaultMaxSteps bounds the number of model turns in one agent invocation.
// Each turn may carry several tool calls, so this is a ceiling on runaway
// loops, not on tool usage.
const DefaultMaxSteps = 16

// Loop is one agent invocation engine over a model client and a tool executor.
type Loop struct {
	client   *llm.Client
	executor agentic.Executor
	maxSteps int
	logger   *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxSteps overrides the model-turn ceiling.
func WithMaxSteps(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxSteps = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// New creates an agent loop over the given client and tool executor.
func New(client *llm.Client, executor agentic.Executor, opts ...Option) *Loop {
	l := &Loop{
		client:   client,
		executor: executor,
		maxSteps: DefaultMaxSteps,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes the agent loop with the given system and user prompts and
// returns the final assistant text. The model's tool-call sequence is
// unconstrained; the loop only bounds the number of turns.
func (l *Loop) Run(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	tools := l.executor.ListTools()

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	for step := 1; step <= l.maxSteps; step++ {
		resp, err := l.client.Complete(ctx, llm.Request{
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return "", fmt.Errorf("agent step %d: %w", step, err)
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			result, err := l.executor.Execute(ctx, call)
			if err != nil {
				// Programming faults and cancellation abort the invocation;
				// expected failures came back inside the result.
				return "", fmt.Errorf("execute tool %s: %w", call.Name, err)
			}

			content := result.Content
			if result.Error != "" {
				content = fmt.Sprintf(`{"error": %q}`, result.Error)
			}

			l.logger.Debug("Tool call executed",
				"tool", call.Name,
				"call_id", call.ID,
				"failed", result.Error != "")

			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    content,
				ToolCallID: call.ID,
			})
		}
	}

	return "", fmt.Errorf("agent did not produce a final answer within %d steps", l.maxSteps)
}
