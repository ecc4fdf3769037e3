package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/driftwatch/agentic"
	"github.com/c360studio/driftwatch/llm"
)

// newMCPServer returns a test server speaking enough of the MCP HTTP
// protocol for the gateway: initialize, tools/list, tools/call.
func newMCPServer(t *testing.T, initCount *atomic.Int32, toolNames []string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var frame struct {
			ID     int64          `json:"id"`
			Method string         `json:"method"`
			Params map[string]any `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&frame))

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Mcp-Session-Id", "sess-1")

		switch frame.Method {
		case "initialize":
			if initCount != nil {
				initCount.Add(1)
			}
			writeRPC(w, frame.ID, map[string]any{
				"protocolVersion": protocolVersion,
				"serverInfo":      map[string]any{"name": "mock"},
			})
		case "tools/list":
			tools := make([]map[string]any, 0, len(toolNames))
			for _, name := range toolNames {
				tools = append(tools, map[string]any{
					"name":        name,
					"description": "mock " + name,
					"inputSchema": map[string]any{"type": "object"},
				})
			}
			writeRPC(w, frame.ID, map[string]any{"tools": tools})
		case "tools/call":
			require.Equal(t, "sess-1", r.Header.Get("Mcp-Session-Id"))
			name, _ := frame.Params["name"].(string)
			writeRPC(w, frame.ID, map[string]any{
				"content": []map[string]any{
					{"type": "text", "text": "ok: " + name},
				},
			})
		default:
			t.Fatalf("unexpected method %s", frame.Method)
		}
	}))
}

func writeRPC(w http.ResponseWriter, id int64, result any) {
	json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}

func TestConnectFiltersToolCatalog(t *testing.T) {
	server := newMCPServer(t, nil, []string{
		"create_branch",
		"push_files",
		"create_pull_request",
		"delete_repository",
		"list_issues",
	})
	defer server.Close()

	g := New(server.URL, "test-token")
	defer g.Close()

	require.NoError(t, g.Connect(context.Background()))

	tools := g.ListTools()
	require.Len(t, tools, 3)

	names := make(map[string]bool)
	for _, tool := range tools {
		names[tool.Name] = true
	}
	assert.True(t, names[ToolCreateBranch])
	assert.True(t, names[ToolPushFiles])
	assert.True(t, names[ToolCreatePullRequest])
	assert.False(t, names["delete_repository"])
}

func TestConnectInitializesOnce(t *testing.T) {
	var initCount atomic.Int32
	server := newMCPServer(t, &initCount, []string{"create_branch"})
	defer server.Close()

	g := New(server.URL, "test-token")
	defer g.Close()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, g.Connect(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), initCount.Load())
}

func TestConnectFailsWhenNoRequiredTools(t *testing.T) {
	server := newMCPServer(t, nil, []string{"list_issues", "get_file"})
	defer server.Close()

	g := New(server.URL, "test-token")
	defer g.Close()

	err := g.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required tools")
}

func TestConnectFailsOnBadCredential(t *testing.T) {
	server := newMCPServer(t, nil, []string{"create_branch"})
	defer server.Close()

	g := New(server.URL, "wrong-token")
	defer g.Close()

	err := g.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.True(t, llm.IsFatal(err))
}

func TestConnectClassifiesServerTroubleTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	g := New(server.URL, "test-token")
	defer g.Close()

	err := g.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, llm.IsTransient(err))
}

func TestExecuteConnectsLazily(t *testing.T) {
	server := newMCPServer(t, nil, []string{"create_branch", "push_files", "create_pull_request"})
	defer server.Close()

	g := New(server.URL, "test-token")
	defer g.Close()

	result, err := g.Execute(context.Background(), agentic.ToolCall{
		ID:        "call-1",
		Name:      "push_files",
		Arguments: map[string]any{"branch": "update/docs"},
	})
	require.NoError(t, err)
	assert.Equal(t, "call-1", result.CallID)
	assert.Equal(t, "ok: push_files", result.Content)
	assert.Empty(t, result.Error)
}

func TestExecuteRejectsUnknownTool(t *testing.T) {
	server := newMCPServer(t, nil, []string{"create_branch"})
	defer server.Close()

	g := New(server.URL, "test-token")
	defer g.Close()

	result, err := g.Execute(context.Background(), agentic.ToolCall{
		ID:   "call-2",
		Name: "delete_repository",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Error, "not exposed")
}

func TestExecuteSurfacesRemoteToolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var frame struct {
			ID     int64  `json:"id"`
			Method string `json:"method"`
		}
		json.NewDecoder(r.Body).Decode(&frame)
		w.Header().Set("Mcp-Session-Id", "sess-1")

		switch frame.Method {
		case "initialize":
			writeRPC(w, frame.ID, map[string]any{"protocolVersion": protocolVersion})
		case "tools/list":
			writeRPC(w, frame.ID, map[string]any{"tools": []map[string]any{
				{"name": "create_branch", "description": "x", "inputSchema": map[string]any{"type": "object"}},
			}})
		case "tools/call":
			writeRPC(w, frame.ID, map[string]any{
				"content": []map[string]any{{"type": "text", "text": "branch already exists"}},
				"isError": true,
			})
		}
	}))
	defer server.Close()

	g := New(server.URL, "")
	defer g.Close()

	result, err := g.Execute(context.Background(), agentic.ToolCall{ID: "c", Name: "create_branch"})
	require.NoError(t, err)
	assert.Equal(t, "branch already exists", result.Error)
	assert.Empty(t, result.Content)
}

func TestListToolsEmptyBeforeConnect(t *testing.T) {
	g := New("http://127.0.0.1:0", "tok")
	assert.Empty(t, g.ListTools())
}

func TestCloseAllowsReconnect(t *testing.T) {
	var initCount atomic.Int32
	server := newMCPServer(t, &initCount, []string{"create_branch"})
	defer server.Close()

	g := New(server.URL, "test-token")
	require.NoError(t, g.Connect(context.Background()))
	g.Close()
	assert.Empty(t, g.ListTools())

	require.NoError(t, g.Connect(context.Background()))
	assert.Equal(t, int32(2), initCount.Load())
	g.Close()
}
