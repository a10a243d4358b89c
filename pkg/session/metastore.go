package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sandboxlab/sandbox-core/pkg/executor"
	"github.com/sandboxlab/sandbox-core/pkg/sblog"
)

// metadataRecord is the durable, serialized projection of a Session
// sufficient to rebuild it, matching spec.md §3's "Session metadata
// record". Persisted under key "session:<session_id>" with a TTL
// refreshed on every successful activity.
type metadataRecord struct {
	SessionID    string        `json:"session_id"`
	BackendKind  executor.Kind `json:"backend_kind"`
	SchemaText   string        `json:"schema_text"`
	SeedText     string        `json:"seed_text"`
	IsolationID  string        `json:"isolation_id"`
	CreatedAt    time.Time     `json:"created_at"`
	OwningUserID string        `json:"owning_user_id"`
}

// MetadataStore wraps the dedicated session-metadata Redis instance.
// A MetadataStore with a nil client is valid and makes every operation a
// silent no-op, mirroring the Python manager's behavior when it cannot
// reach its session-metadata Redis: cross-process session recovery is
// disabled, but the rest of the system keeps working.
type MetadataStore struct {
	client *redis.Client
	ttl    time.Duration
	log    sblog.Logger
}

// NewMetadataStore connects to the dedicated session-metadata Redis
// instance. A connection failure is logged and yields a disabled (nil
// client) store rather than an error, since durable recovery is a
// resilience feature, not a hard dependency.
func NewMetadataStore(ctx context.Context, host string, port int, ttl time.Duration, log sblog.Logger) *MetadataStore {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", host, port),
	})
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		log.Warn("session metadata store unreachable; cross-process session recovery disabled", "error", err.Error())
		_ = client.Close()
		return &MetadataStore{ttl: ttl, log: log}
	}
	return &MetadataStore{client: client, ttl: ttl, log: log}
}

// NewDisabledMetadataStore returns a store with no backing Redis
// connection; every operation is a no-op. Useful for tests and for
// deployments that accept losing cross-process session recovery.
func NewDisabledMetadataStore() *MetadataStore {
	return &MetadataStore{}
}

func metaKey(sessionID string) string {
	return "session:" + sessionID
}

// Save writes the session's durable metadata with a fresh TTL.
func (m *MetadataStore) Save(ctx context.Context, sess *Session) {
	if m.client == nil {
		return
	}
	rec := metadataRecord{
		SessionID:    sess.SessionID,
		BackendKind:  sess.BackendKind,
		SchemaText:   sess.SchemaText,
		SeedText:     sess.SeedText,
		IsolationID:  sess.IsolationID,
		CreatedAt:    sess.CreatedAt,
		OwningUserID: sess.OwningUserID,
	}
	blob, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := m.client.Set(ctx, metaKey(sess.SessionID), blob, m.ttl).Err(); err != nil {
		m.log.Warn("failed to save session metadata", "session_id", sess.SessionID, "error", err.Error())
	}
}

// Touch refreshes the TTL on an existing metadata record without
// rewriting its body.
func (m *MetadataStore) Touch(ctx context.Context, sessionID string) {
	if m.client == nil {
		return
	}
	_ = m.client.Expire(ctx, metaKey(sessionID), m.ttl).Err()
}

// Delete removes a session's durable metadata.
func (m *MetadataStore) Delete(ctx context.Context, sessionID string) {
	if m.client == nil {
		return
	}
	_ = m.client.Del(ctx, metaKey(sessionID)).Err()
}

// Get reads back a session's durable metadata, if present and unexpired.
func (m *MetadataStore) Get(ctx context.Context, sessionID string) (metadataRecord, bool) {
	if m.client == nil {
		return metadataRecord{}, false
	}
	blob, err := m.client.Get(ctx, metaKey(sessionID)).Bytes()
	if err != nil {
		return metadataRecord{}, false
	}
	var rec metadataRecord
	if err := json.Unmarshal(blob, &rec); err != nil {
		return metadataRecord{}, false
	}
	return rec, true
}

// Close releases the underlying Redis connection, if any.
func (m *MetadataStore) Close() {
	if m.client != nil {
		_ = m.client.Close()
	}
}
