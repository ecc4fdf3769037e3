package toolbelt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/driftwatch/agentic"
)

func testTools() *Tools {
	return NewTools(WithFetcher(NewFetcher(5*time.Second, DefaultUserAgent)))
}

func TestCompareContentHash(t *testing.T) {
	sum := sha256.Sum256([]byte("hello"))
	helloHash := hex.EncodeToString(sum[:])

	t.Run("unchanged content", func(t *testing.T) {
		result := CompareContentHash("hello", helloHash)
		assert.False(t, result.HasChanged)
		assert.False(t, result.IsFirstCheck)
		assert.Equal(t, helloHash, result.NewHash)
	})

	t.Run("changed content", func(t *testing.T) {
		result := CompareContentHash("goodbye", helloHash)
		assert.True(t, result.HasChanged)
		assert.False(t, result.IsFirstCheck)
	})

	t.Run("stored hash case is ignored", func(t *testing.T) {
		result := CompareContentHash("hello", strings.ToUpper(helloHash))
		assert.False(t, result.HasChanged)
	})

	t.Run("first check never reports change", func(t *testing.T) {
		result := CompareContentHash("anything", "")
		assert.False(t, result.HasChanged)
		assert.True(t, result.IsFirstCheck)
		assert.NotEmpty(t, result.NewHash)
	})
}

func TestExtractStableVersions(t *testing.T) {
	page := `
Python 3.13.1 is now available. Download Python 3.14.0b1 (beta) or
try the 2.0.0-rc1 release candidate. Nightly build 1.9.0-nightly is
also published. Older releases: 3.12.8, 3.13.1 (again), 3.11.
Ruby 3.3.6-preview and Go 1.23.4 round things out.
`
	versions := ExtractStableVersions(page)

	assert.Contains(t, versions, "3.13.1")
	assert.Contains(t, versions, "3.12.8")
	assert.Contains(t, versions, "1.23.4")

	assert.NotContains(t, versions, "3.14.0b1")
	assert.NotContains(t, versions, "2.0.0-rc1")
	assert.NotContains(t, versions, "1.9.0-nightly")
	assert.NotContains(t, versions, "3.3.6-preview")

	// Deduplication: 3.13.1 appears twice on the page, once in the list.
	count := 0
	for _, v := range versions {
		if v == "3.13.1" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtractStableVersionsEmpty(t *testing.T) {
	assert.Empty(t, ExtractStableVersions("no versions here"))
}

func TestCheckReachability(t *testing.T) {
	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><head><title>Python Docs</title></head><body>Welcome to the documentation.</body></html>"))
	}))
	defer okServer.Close()

	goneServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer goneServer.Close()

	tools := testTools()
	results := tools.CheckReachability(context.Background(), []string{
		okServer.URL,
		goneServer.URL,
		"http://127.0.0.1:1/unreachable",
	})
	require.Len(t, results, 3)

	assert.True(t, results[0].Accessible)
	assert.Equal(t, http.StatusOK, results[0].StatusCode)
	assert.Contains(t, results[0].Snippet, "Python Docs")
	assert.LessOrEqual(t, len(results[0].Snippet), snippetMaxBytes)

	assert.False(t, results[1].Accessible)
	assert.Equal(t, http.StatusNotFound, results[1].StatusCode)

	// Connection failures land in the result, never abort the batch.
	assert.False(t, results[2].Accessible)
	assert.NotEmpty(t, results[2].Error)
}

func TestFetchFullContentConvertsHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><article><h1>Release Notes</h1><p>Version 3.13.1 fixes a <strong>security</strong> issue.</p></article></body></html>`))
	}))
	defer server.Close()

	result := testTools().FetchFullContent(context.Background(), server.URL)
	assert.Empty(t, result.Error)
	assert.Contains(t, result.Content, "Release Notes")
	assert.Contains(t, result.Content, "3.13.1")
	assert.NotContains(t, result.Content, "<article>")
}

func TestFetchFullContentPlainText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("plain changelog text"))
	}))
	defer server.Close()

	result := testTools().FetchFullContent(context.Background(), server.URL)
	assert.Empty(t, result.Error)
	assert.Equal(t, "plain changelog text", result.Content)
}

func TestFetchFullContentTruncates(t *testing.T) {
	big := strings.Repeat("x", contentMaxBytes*2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(big))
	}))
	defer server.Close()

	result := testTools().FetchFullContent(context.Background(), server.URL)
	assert.True(t, result.Truncated)
	assert.LessOrEqual(t, len(result.Content), contentMaxBytes)
}

func TestDetectLatestStableVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1>Downloads</h1><ul><li>Python 3.13.1</li><li>Python 3.14.0b1</li></ul></body></html>`))
	}))
	defer server.Close()

	result := testTools().DetectLatestStableVersion(context.Background(), server.URL, "3.12.8", "python")
	assert.Empty(t, result.Error)
	assert.Equal(t, "3.12.8", result.CurrentVersion)
	assert.Contains(t, result.StableVersionsFound, "3.13.1")
	assert.NotContains(t, result.StableVersionsFound, "3.14.0b1")
	assert.NotEmpty(t, result.PageSnippet)
}

func TestDetectLatestStableVersionUnreachable(t *testing.T) {
	result := testTools().DetectLatestStableVersion(context.Background(), "http://127.0.0.1:1/versions", "1.0.0", "x")
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.StableVersionsFound)
}

func TestExecutorListTools(t *testing.T) {
	e := NewExecutor(testTools())

	tools := e.ListTools()
	require.Len(t, tools, 4)

	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.Name] = true
		assert.NotEmpty(t, tool.Description)
		assert.NotNil(t, tool.Parameters)
	}
	assert.True(t, names[ToolCheckReachability])
	assert.True(t, names[ToolFetchFullContent])
	assert.True(t, names[ToolDetectLatestVersion])
	assert.True(t, names[ToolCompareContentHash])
}

func TestExecutorCompareContentHash(t *testing.T) {
	e := NewExecutor(testTools())

	result, err := e.Execute(context.Background(), agentic.ToolCall{
		ID:   "c1",
		Name: ToolCompareContentHash,
		Arguments: map[string]any{
			"content":     "hello",
			"stored_hash": "",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", result.CallID)

	var parsed HashResult
	require.NoError(t, json.Unmarshal([]byte(result.Content), &parsed))
	assert.True(t, parsed.IsFirstCheck)
	assert.False(t, parsed.HasChanged)
}

func TestExecutorCheckReachability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	e := NewExecutor(testTools())
	result, err := e.Execute(context.Background(), agentic.ToolCall{
		ID:        "c2",
		Name:      ToolCheckReachability,
		Arguments: map[string]any{"urls": server.URL + "\n" + server.URL + "/two"},
	})
	require.NoError(t, err)

	var parsed []ReachabilityResult
	require.NoError(t, json.Unmarshal([]byte(result.Content), &parsed))
	assert.Len(t, parsed, 2)
}

func TestExecutorMissingArguments(t *testing.T) {
	e := NewExecutor(testTools())

	tests := []struct {
		name string
		call agentic.ToolCall
	}{
		{"reachability without urls", agentic.ToolCall{ID: "x", Name: ToolCheckReachability, Arguments: map[string]any{}}},
		{"fetch without url", agentic.ToolCall{ID: "x", Name: ToolFetchFullContent, Arguments: map[string]any{}}},
		{"version without source_url", agentic.ToolCall{ID: "x", Name: ToolDetectLatestVersion, Arguments: map[string]any{}}},
		{"hash without content", agentic.ToolCall{ID: "x", Name: ToolCompareContentHash, Arguments: map[string]any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Execute(context.Background(), tt.call)
			require.NoError(t, err)
			assert.NotEmpty(t, result.Error)
		})
	}
}

func TestExecutorUnknownTool(t *testing.T) {
	e := NewExecutor(testTools())

	result, err := e.Execute(context.Background(), agentic.ToolCall{ID: "x", Name: "launch_rocket"})
	require.Error(t, err)
	assert.Contains(t, result.Error, "unknown tool")
}

func TestSplitURLList(t *testing.T) {
	urls := splitURLList("https://a.example\nhttps://b.example, https://c.example")
	assert.Equal(t, []string{"https://a.example", "https://b.example", "https://c.example"}, urls)
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, validateURL("https://example.com/docs"))
	assert.NoError(t, validateURL("http://localhost:8080/x"))
	assert.Error(t, validateURL("ftp://example.com/file"))
	assert.Error(t, validateURL("not-a-url"))
	assert.Error(t, validateURL(""))
}

func TestIsHTML(t *testing.T) {
	assert.True(t, IsHTML("text/html"))
	assert.True(t, IsHTML("text/html; charset=utf-8"))
	assert.True(t, IsHTML("application/xhtml+xml"))
	assert.False(t, IsHTML("text/plain"))
	assert.False(t, IsHTML("application/json"))
}
