package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/driftwatch/agentic"
)

// echoProvider is a minimal test provider: the request body carries the
// model name, and responses are parsed as {"content": "...", "done": true}.
type echoProvider struct{}

func (echoProvider) Name() string                 { return "echo" }
func (echoProvider) BuildURL(baseURL string) string { return baseURL }
func (echoProvider) SetHeaders(req *http.Request) {}

func (echoProvider) BuildRequestBody(model string, messages []Message, _ *float64, _ int,
	tools []agentic.ToolDefinition) ([]byte, error) {
	return json.Marshal(map[string]any{
		"model":    model,
		"messages": len(messages),
		"tools":    len(tools),
	})
}

func (echoProvider) ParseResponse(body []byte, model string) (*Response, error) {
	var parsed struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, NewFatalError(fmt.Errorf("parse response: %w", err))
	}
	return &Response{Content: parsed.Content, Model: model, FinishReason: "stop"}, nil
}

func init() {
	RegisterProvider(echoProvider{})
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 1.0,
		MaxBackoff:        5 * time.Millisecond,
	}
}

func userRequest() Request {
	return Request{Messages: []Message{{Role: "user", Content: "hi"}}}
}

func TestCompleteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content": "hello there"}`))
	}))
	defer server.Close()

	client := NewClient([]EndpointConfig{{Provider: "echo", URL: server.URL, Model: "m1"}})

	resp, err := client.Complete(context.Background(), userRequest())
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, "m1", resp.Model)
	assert.NotEmpty(t, resp.RequestID)
}

func TestCompleteRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"content": "recovered"}`))
	}))
	defer server.Close()

	client := NewClient(
		[]EndpointConfig{{Provider: "echo", URL: server.URL, Model: "m1"}},
		WithRetryConfig(fastRetry()))

	resp, err := client.Complete(context.Background(), userRequest())
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCompleteFallsBackToNextEndpoint(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content": "from fallback"}`))
	}))
	defer up.Close()

	client := NewClient(
		[]EndpointConfig{
			{Provider: "echo", URL: down.URL, Model: "primary"},
			{Provider: "echo", URL: up.URL, Model: "fallback"},
		},
		WithRetryConfig(fastRetry()))

	resp, err := client.Complete(context.Background(), userRequest())
	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Content)
	assert.Equal(t, "fallback", resp.Model)
}

func TestCompleteFatalErrorSkipsFallback(t *testing.T) {
	var authCalls atomic.Int32
	unauthorized := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer unauthorized.Close()

	var fallbackCalls atomic.Int32
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackCalls.Add(1)
		w.Write([]byte(`{"content": "should not be reached"}`))
	}))
	defer fallback.Close()

	client := NewClient(
		[]EndpointConfig{
			{Provider: "echo", URL: unauthorized.URL, Model: "m1"},
			{Provider: "echo", URL: fallback.URL, Model: "m2"},
		},
		WithRetryConfig(fastRetry()))

	_, err := client.Complete(context.Background(), userRequest())
	require.Error(t, err)
	assert.True(t, IsFatal(err))

	// Auth errors neither retry nor fall back.
	assert.Equal(t, int32(1), authCalls.Load())
	assert.Zero(t, fallbackCalls.Load())
}

func TestCompleteAllEndpointsFailed(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	client := NewClient(
		[]EndpointConfig{{Provider: "echo", URL: down.URL, Model: "m1"}},
		WithRetryConfig(fastRetry()))

	_, err := client.Complete(context.Background(), userRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all endpoints failed")
}

func TestCompleteValidation(t *testing.T) {
	client := NewClient([]EndpointConfig{{Provider: "echo", URL: "http://x", Model: "m"}})
	_, err := client.Complete(context.Background(), Request{})
	require.Error(t, err)

	client = NewClient(nil)
	_, err = client.Complete(context.Background(), userRequest())
	require.Error(t, err)
}

func TestCompleteUnknownProviderIsFatal(t *testing.T) {
	client := NewClient([]EndpointConfig{{Provider: "no-such-provider", URL: "http://x", Model: "m"}})

	_, err := client.Complete(context.Background(), userRequest())
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}

func TestClassifyHTTPError(t *testing.T) {
	assert.True(t, IsTransient(classifyHTTPError(http.StatusTooManyRequests, nil)))
	assert.True(t, IsTransient(classifyHTTPError(http.StatusInternalServerError, nil)))
	assert.True(t, IsTransient(classifyHTTPError(http.StatusBadGateway, nil)))
	assert.True(t, IsFatal(classifyHTTPError(http.StatusUnauthorized, nil)))
	assert.True(t, IsFatal(classifyHTTPError(http.StatusForbidden, nil)))
	assert.True(t, IsFatal(classifyHTTPError(http.StatusBadRequest, nil)))
}

func TestCalculateBackoffBounded(t *testing.T) {
	client := NewClient(nil, WithRetryConfig(RetryConfig{
		MaxAttempts:       5,
		BackoffBase:       100 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        time.Second,
	}))

	for attempt := 1; attempt <= 10; attempt++ {
		backoff := client.calculateBackoff(attempt)
		// Jitter is +/- 25% around the capped base.
		assert.LessOrEqual(t, backoff, time.Second+time.Second/4)
		assert.Positive(t, backoff)
	}
}
