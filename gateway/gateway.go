// Package gateway provides a thin, lazily-initialized client to a remote
// MCP tool-execution endpoint. It exposes only the three tools the
// publishing flow needs; offering a reasoning call the endpoint's full
// catalog measurably degrades that call's reliability.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/driftwatch/agentic"
	"github.com/c360studio/driftwatch/llm"
)

// The only remote operations offered to the publishing agent.
const (
	ToolCreateBranch      = "create_branch"
	ToolPushFiles         = "push_files"
	ToolCreatePullRequest = "create_pull_request"
)

// allowedTools is the catalog filter applied to the remote tool list.
var allowedTools = map[string]bool{
	ToolCreateBranch:      true,
	ToolPushFiles:         true,
	ToolCreatePullRequest: true,
}

// protocolVersion is the MCP protocol revision spoken to the endpoint.
const protocolVersion = "2025-03-26"

// maxResponseSize limits remote tool response bodies.
const maxResponseSize = 4 * 1024 * 1024

// Gateway is a thread-safe client to one remote tool endpoint. The session
// is established lazily on first use, guarded by one initialization lock,
// and cached for the process lifetime.
type Gateway struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	session *session
	reqID   atomic.Int64
}

// session holds the established connection state.
type session struct {
	id    string
	tools []agentic.ToolDefinition
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// New creates a gateway to the given MCP endpoint, authenticating with the
// bearer token. No connection is made until first use.
func New(endpoint, token string, opts ...Option) *Gateway {
	g := &Gateway{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Connect establishes the session if it does not exist yet. Safe to call
// concurrently; only one caller initializes.
func (g *Gateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session != nil {
		return nil
	}

	sess, err := g.initialize(ctx)
	if err != nil {
		return fmt.Errorf("connect to tool endpoint: %w", err)
	}

	g.session = sess
	g.logger.Info("Connected to remote tool endpoint",
		"endpoint", g.endpoint,
		"tools", len(sess.tools))

	return nil
}

// initialize performs the MCP handshake and fetches the filtered tool list.
func (g *Gateway) initialize(ctx context.Context) (*session, error) {
	initResult, sessionID, err := g.call(ctx, "", "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"clientInfo": map[string]any{
			"name":    "driftwatch",
			"version": "1.0",
		},
		"capabilities": map[string]any{},
	})
	if err != nil {
		return nil, err
	}
	_ = initResult

	listResult, _, err := g.call(ctx, sessionID, "tools/list", map[string]any{})
	if err != nil {
		return nil, err
	}

	var list struct {
		Tools []struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(listResult, &list); err != nil {
		return nil, fmt.Errorf("parse tool list: %w", err)
	}

	// Restrict the upstream catalog to exactly the publishing tools.
	var tools []agentic.ToolDefinition
	for _, t := range list.Tools {
		if !allowedTools[t.Name] {
			continue
		}
		tools = append(tools, agentic.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
	}

	if len(tools) == 0 {
		return nil, fmt.Errorf("endpoint offers none of the required tools")
	}

	return &session{id: sessionID, tools: tools}, nil
}

// ListTools returns the filtered remote tool catalog. Empty until Connect
// has succeeded.
func (g *Gateway) ListTools() []agentic.ToolDefinition {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session == nil {
		return nil
	}
	return g.session.tools
}

// Execute runs one remote tool call through the established session,
// connecting lazily if needed.
func (g *Gateway) Execute(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	if err := g.Connect(ctx); err != nil {
		return agentic.ToolResult{CallID: call.ID}, err
	}

	if !allowedTools[call.Name] {
		return agentic.ToolResult{
			CallID: call.ID,
			Error:  fmt.Sprintf("tool %s is not exposed by this gateway", call.Name),
		}, nil
	}

	g.mu.Lock()
	sessionID := g.session.id
	g.mu.Unlock()

	result, _, err := g.call(ctx, sessionID, "tools/call", map[string]any{
		"name":      call.Name,
		"arguments": call.Arguments,
	})
	if err != nil {
		// Remote tool failures are expected failures from the agent's view.
		return agentic.ToolResult{CallID: call.ID, Error: err.Error()}, nil
	}

	content, isError := parseToolContent(result)
	if isError {
		return agentic.ToolResult{CallID: call.ID, Error: content}, nil
	}
	return agentic.ToolResult{CallID: call.ID, Content: content}, nil
}

// Close releases the session. The gateway may be reconnected afterwards.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.session = nil
	g.httpClient.CloseIdleConnections()
}

// rpcRequest is a JSON-RPC 2.0 request frame.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response frame.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// call performs one JSON-RPC exchange with the endpoint and returns the raw
// result plus the session ID echoed by the server.
func (g *Gateway) call(ctx context.Context, sessionID, method string, params any) (json.RawMessage, string, error) {
	frame := rpcRequest{
		JSONRPC: "2.0",
		ID:      g.reqID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(frame)
	if err != nil {
		return nil, "", fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("create %s request: %w", method, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, "", llm.NewTransientError(fmt.Errorf("%s: %w", method, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, "", llm.NewTransientError(fmt.Errorf("read %s response: %w", method, err))
	}

	if resp.StatusCode != http.StatusOK {
		// Same failure taxonomy as model calls: server-side trouble is
		// retryable, a rejected request is not.
		httpErr := fmt.Errorf("%s: HTTP %d: %s", method, resp.StatusCode, truncate(string(respBody), 200))
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return nil, "", llm.NewTransientError(httpErr)
		}
		return nil, "", llm.NewFatalError(httpErr)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, "", fmt.Errorf("parse %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return nil, "", fmt.Errorf("%s: remote error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}

	newSessionID := resp.Header.Get("Mcp-Session-Id")
	if newSessionID == "" {
		newSessionID = sessionID
	}

	return rpcResp.Result, newSessionID, nil
}

// parseToolContent extracts the text content from a tools/call result.
func parseToolContent(result json.RawMessage) (string, bool) {
	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return string(result), false
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		text = string(result)
	}

	return text, parsed.IsError
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
