package toolbelt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360studio/driftwatch/agentic"
)

// Tool names offered to the evaluation agent.
const (
	ToolCheckReachability   = "check_reachability"
	ToolFetchFullContent    = "fetch_full_content"
	ToolDetectLatestVersion = "detect_latest_stable_version"
	ToolCompareContentHash  = "compare_content_hash"
)

// Executor exposes the verification toolbelt to an evaluation agent.
type Executor struct {
	tools *Tools
}

// NewExecutor creates a toolbelt executor.
func NewExecutor(tools *Tools) *Executor {
	return &Executor{tools: tools}
}

// ListTools returns the tool definitions for document verification.
func (e *Executor) ListTools() []agentic.ToolDefinition {
	return []agentic.ToolDefinition{
		{
			Name:        ToolCheckReachability,
			Description: "Check whether reference URLs are reachable. Returns status code, accessibility, and a short content snippet per URL.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"urls": map[string]any{
						"type":        "string",
						"description": "URLs to check, one per line",
					},
				},
				"required": []string{"urls"},
			},
		},
		{
			Name:        ToolFetchFullContent,
			Description: "Fetch the full content of one URL as markdown text, truncated to 50KB. Use only when the reachability snippet is not enough.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{
						"type":        "string",
						"description": "Absolute URL to fetch",
					},
				},
				"required": []string{"url"},
			},
		},
		{
			Name:        ToolDetectLatestVersion,
			Description: "Scan the version source page for stable version candidates. Prerelease versions (alpha, beta, rc, nightly, ...) are already filtered out; compare the remaining candidates against the current version yourself.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"source_url": map[string]any{
						"type":        "string",
						"description": "The version source URL from the document metadata",
					},
					"current_version": map[string]any{
						"type":        "string",
						"description": "The version currently recorded in the document",
					},
					"topic": map[string]any{
						"type":        "string",
						"description": "The topic being audited, for logging",
					},
				},
				"required": []string{"source_url", "current_version"},
			},
		},
		{
			Name:        ToolCompareContentHash,
			Description: "Compute the SHA-256 hash of the given content and compare it to the stored hash from the document metadata.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"content": map[string]any{
						"type":        "string",
						"description": "Content to hash",
					},
					"stored_hash": map[string]any{
						"type":        "string",
						"description": "Previously stored hex digest, empty on first check",
					},
				},
				"required": []string{"content"},
			},
		},
	}
}

// Execute executes a verification tool call. Expected failures come back
// inside the result; only unknown tools are an error.
func (e *Executor) Execute(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	switch call.Name {
	case ToolCheckReachability:
		return e.checkReachability(ctx, call)
	case ToolFetchFullContent:
		return e.fetchFullContent(ctx, call)
	case ToolDetectLatestVersion:
		return e.detectLatestVersion(ctx, call)
	case ToolCompareContentHash:
		return e.compareContentHash(call)
	default:
		return agentic.ToolResult{
			CallID: call.ID,
			Error:  fmt.Sprintf("unknown tool: %s", call.Name),
		}, fmt.Errorf("unknown tool: %s", call.Name)
	}
}

func (e *Executor) checkReachability(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	raw, ok := call.Arguments["urls"].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return agentic.ToolResult{CallID: call.ID, Error: "urls argument is required"}, nil
	}

	urls := splitURLList(raw)
	results := e.tools.CheckReachability(ctx, urls)

	return marshalResult(call.ID, results)
}

func (e *Executor) fetchFullContent(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	url, ok := call.Arguments["url"].(string)
	if !ok || url == "" {
		return agentic.ToolResult{CallID: call.ID, Error: "url argument is required"}, nil
	}

	return marshalResult(call.ID, e.tools.FetchFullContent(ctx, url))
}

func (e *Executor) detectLatestVersion(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	sourceURL, ok := call.Arguments["source_url"].(string)
	if !ok || sourceURL == "" {
		return agentic.ToolResult{CallID: call.ID, Error: "source_url argument is required"}, nil
	}

	currentVersion, _ := call.Arguments["current_version"].(string)
	topic, _ := call.Arguments["topic"].(string)

	return marshalResult(call.ID, e.tools.DetectLatestStableVersion(ctx, sourceURL, currentVersion, topic))
}

func (e *Executor) compareContentHash(call agentic.ToolCall) (agentic.ToolResult, error) {
	content, ok := call.Arguments["content"].(string)
	if !ok {
		return agentic.ToolResult{CallID: call.ID, Error: "content argument is required"}, nil
	}

	storedHash, _ := call.Arguments["stored_hash"].(string)

	return marshalResult(call.ID, CompareContentHash(content, storedHash))
}

// splitURLList splits a newline- or comma-delimited URL list.
func splitURLList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == ',' || r == ' '
	})

	urls := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			urls = append(urls, f)
		}
	}
	return urls
}

func marshalResult(callID string, v any) (agentic.ToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return agentic.ToolResult{CallID: callID}, fmt.Errorf("marshal tool result: %w", err)
	}
	return agentic.ToolResult{CallID: callID, Content: string(data)}, nil
}
