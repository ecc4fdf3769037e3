package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// CallsBucket is the KV bucket name for storing LLM call records.
const CallsBucket = "DRIFTWATCH_LLM_CALLS"

// DefaultCallsTTL is the default TTL for call records (7 days).
const DefaultCallsTTL = 7 * 24 * time.Hour

// maxStoredResponse bounds the response text persisted per record.
const maxStoredResponse = 2048

// CallRecord represents a single LLM API call for post-run inspection.
type CallRecord struct {
	// RequestID uniquely identifies this LLM call.
	RequestID string `json:"request_id"`

	// Provider is the LLM provider (anthropic, ollama, openai).
	Provider string `json:"provider"`

	// Model is the actual model that was used for this call.
	Model string `json:"model"`

	// Response is the generated content, truncated for storage.
	Response string `json:"response,omitempty"`

	// ToolCalls is the number of tool invocations the model requested.
	ToolCalls int `json:"tool_calls,omitempty"`

	// TotalTokens is the total tokens consumed (prompt + completion).
	TotalTokens int `json:"total_tokens"`

	// FinishReason indicates why generation stopped.
	FinishReason string `json:"finish_reason,omitempty"`

	// StartedAt is when the LLM call began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the LLM call finished.
	CompletedAt time.Time `json:"completed_at"`

	// DurationMs is the call duration in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// Error contains any error message if the call failed.
	Error string `json:"error,omitempty"`
}

// CallStore persists LLM call records to a JetStream KV bucket.
type CallStore struct {
	bucket jetstream.KeyValue
	logger *slog.Logger
}

// NewCallStore creates the call store, creating the KV bucket if needed.
func NewCallStore(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) (*CallStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      CallsBucket,
		Description: "LLM call records for drift audit runs",
		TTL:         DefaultCallsTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("create calls bucket: %w", err)
	}

	return &CallStore{bucket: bucket, logger: logger}, nil
}

// Store persists one call record keyed by its request ID.
func (s *CallStore) Store(ctx context.Context, record *CallRecord) error {
	if record.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}

	if len(record.Response) > maxStoredResponse {
		truncated := *record
		truncated.Response = record.Response[:maxStoredResponse]
		record = &truncated
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal call record: %w", err)
	}

	if _, err := s.bucket.Put(ctx, record.RequestID, data); err != nil {
		return fmt.Errorf("store call record: %w", err)
	}

	s.logger.Debug("Recorded LLM call",
		"request_id", record.RequestID,
		"provider", record.Provider,
		"duration_ms", record.DurationMs)

	return nil
}
