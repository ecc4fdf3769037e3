package agentic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// ToolCallsBucket is the KV bucket name for tool call records.
const ToolCallsBucket = "DRIFTWATCH_TOOL_CALLS"

// DefaultToolCallsTTL expires tool call records after 7 days.
const DefaultToolCallsTTL = 7 * 24 * time.Hour

// maxRecordedParams bounds the serialized arguments stored per record.
const maxRecordedParams = 1000

// maxRecordedResult bounds the result content stored per record.
const maxRecordedResult = 2000

// ToolCallRecord captures one tool execution for post-run inspection.
type ToolCallRecord struct {
	CallID      string    `json:"call_id"`
	ToolName    string    `json:"tool_name"`
	Parameters  string    `json:"parameters,omitempty"`
	Result      string    `json:"result,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// ToolCallStore persists tool call records to a JetStream KV bucket.
type ToolCallStore struct {
	bucket jetstream.KeyValue
	logger *slog.Logger
}

// NewToolCallStore creates the store, creating the KV bucket if needed.
func NewToolCallStore(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) (*ToolCallStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      ToolCallsBucket,
		Description: "Tool call records for drift audit runs",
		TTL:         DefaultToolCallsTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("create tool calls bucket: %w", err)
	}

	return &ToolCallStore{bucket: bucket, logger: logger}, nil
}

// Store persists one record keyed by its call ID.
func (s *ToolCallStore) Store(ctx context.Context, record *ToolCallRecord) error {
	if record.CallID == "" {
		return fmt.Errorf("call_id is required")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal tool call record: %w", err)
	}

	if _, err := s.bucket.Put(ctx, record.CallID, data); err != nil {
		return fmt.Errorf("store tool call record: %w", err)
	}

	return nil
}

// RecordingExecutor wraps an Executor and records each call to a
// ToolCallStore. A nil store passes calls through without recording.
type RecordingExecutor struct {
	inner  Executor
	store  *ToolCallStore
	logger *slog.Logger
}

// NewRecordingExecutor wraps an executor with tool call recording.
func NewRecordingExecutor(inner Executor, store *ToolCallStore, logger *slog.Logger) *RecordingExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordingExecutor{inner: inner, store: store, logger: logger}
}

// ListTools delegates to the inner executor.
func (r *RecordingExecutor) ListTools() []ToolDefinition {
	return r.inner.ListTools()
}

// Execute runs the underlying executor and records the call.
func (r *RecordingExecutor) Execute(ctx context.Context, call ToolCall) (ToolResult, error) {
	startedAt := time.Now()

	result, execErr := r.inner.Execute(ctx, call)

	completedAt := time.Now()

	// Recording happens off the hot path; a slow store must not slow the
	// agent down.
	go r.recordCall(call, result, execErr, startedAt, completedAt)

	return result, execErr
}

func (r *RecordingExecutor) recordCall(call ToolCall, result ToolResult, execErr error, startedAt, completedAt time.Time) {
	if r.store == nil {
		return
	}

	status := "success"
	var errMsg string
	if execErr != nil {
		status = "error"
		errMsg = execErr.Error()
	} else if result.Error != "" {
		status = "error"
		errMsg = result.Error
	}

	resultPreview := result.Content
	if len(resultPreview) > maxRecordedResult {
		resultPreview = resultPreview[:maxRecordedResult] + "..."
	}

	record := &ToolCallRecord{
		CallID:      call.ID,
		ToolName:    call.Name,
		Parameters:  truncateJSON(call.Arguments, maxRecordedParams),
		Result:      resultPreview,
		Status:      status,
		Error:       errMsg,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		DurationMs:  completedAt.Sub(startedAt).Milliseconds(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.store.Store(ctx, record); err != nil {
		r.logger.Warn("Failed to record tool call",
			"tool", call.Name,
			"call_id", call.ID,
			"error", err)
	}
}

// truncateJSON marshals a map to JSON and truncates to maxLen.
func truncateJSON(m map[string]any, maxLen int) string {
	if m == nil {
		return "{}"
	}

	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}

	s := string(data)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
