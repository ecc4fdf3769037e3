package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// VerdictsBucket is the KV bucket name for verdict checkpoints.
const VerdictsBucket = "DRIFTWATCH_VERDICTS"

// DefaultCheckpointTTL expires checkpoints after completed runs age out.
const DefaultCheckpointTTL = 14 * 24 * time.Hour

// CheckpointStore persists per-item verdicts as they complete, so a resumed
// run never re-executes an evaluation that already finished.
type CheckpointStore interface {
	// Store checkpoints one completed verdict for the run.
	Store(ctx context.Context, runID string, verdict Verdict) error

	// Load returns all checkpointed verdicts for the run, keyed by topic.
	Load(ctx context.Context, runID string) (map[string]Verdict, error)
}

// unsafeKeyChars matches characters not permitted in KV keys.
var unsafeKeyChars = regexp.MustCompile(`[^-/_=A-Za-z0-9]`)

// KVCheckpointStore checkpoints verdicts in a JetStream KV bucket, keyed
// "<runID>.<topic>".
type KVCheckpointStore struct {
	bucket jetstream.KeyValue
}

// NewKVCheckpointStore creates the store, creating the bucket if needed.
func NewKVCheckpointStore(ctx context.Context, js jetstream.JetStream) (*KVCheckpointStore, error) {
	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      VerdictsBucket,
		Description: "Per-item verdict checkpoints for drift audit runs",
		TTL:         DefaultCheckpointTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("create verdicts bucket: %w", err)
	}
	return &KVCheckpointStore{bucket: bucket}, nil
}

// Store checkpoints one verdict.
func (s *KVCheckpointStore) Store(ctx context.Context, runID string, verdict Verdict) error {
	data, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}

	key := checkpointKey(runID, verdict.Topic)
	if _, err := s.bucket.Put(ctx, key, data); err != nil {
		return fmt.Errorf("store verdict checkpoint: %w", err)
	}
	return nil
}

// Load returns all checkpointed verdicts for a run.
func (s *KVCheckpointStore) Load(ctx context.Context, runID string) (map[string]Verdict, error) {
	verdicts := make(map[string]Verdict)

	keys, err := s.bucket.ListKeysFiltered(ctx, sanitizeKeyPart(runID)+".*")
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return verdicts, nil
		}
		return nil, fmt.Errorf("list verdict checkpoints: %w", err)
	}

	for key := range keys.Keys() {
		entry, err := s.bucket.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load verdict checkpoint %s: %w", key, err)
		}

		var v Verdict
		if err := json.Unmarshal(entry.Value(), &v); err != nil {
			return nil, fmt.Errorf("unmarshal verdict checkpoint %s: %w", key, err)
		}
		verdicts[v.Topic] = v
	}

	return verdicts, nil
}

// checkpointKey builds the KV key for one run/topic pair.
func checkpointKey(runID, topic string) string {
	return sanitizeKeyPart(runID) + "." + sanitizeKeyPart(topic)
}

// sanitizeKeyPart makes an identifier safe for use in a KV key.
func sanitizeKeyPart(s string) string {
	s = strings.ReplaceAll(s, ".", "_")
	return unsafeKeyChars.ReplaceAllString(s, "_")
}

// MemoryCheckpointStore is an in-process CheckpointStore for tests and for
// running without NATS. Resumption then only survives within the process.
type MemoryCheckpointStore struct {
	mu   sync.Mutex
	runs map[string]map[string]Verdict
}

// NewMemoryCheckpointStore creates an empty in-memory store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{runs: make(map[string]map[string]Verdict)}
}

// Store checkpoints one verdict.
func (s *MemoryCheckpointStore) Store(_ context.Context, runID string, verdict Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runs[runID] == nil {
		s.runs[runID] = make(map[string]Verdict)
	}
	s.runs[runID][verdict.Topic] = verdict
	return nil
}

// Load returns all checkpointed verdicts for a run.
func (s *MemoryCheckpointStore) Load(_ context.Context, runID string) (map[string]Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	verdicts := make(map[string]Verdict, len(s.runs[runID]))
	for topic, v := range s.runs[runID] {
		verdicts[topic] = v
	}
	return verdicts, nil
}
