// Package session implements the Session Manager (C4): per-session
// backend isolation, ownership enforcement, idle expiry, and recovery
// from durable metadata after a process restart.
//
// There is no package-level singleton here. A Manager is built with New
// and must be passed around explicitly by its caller (the Pool), unlike
// the module-level get_session_manager() this component is grounded on.
package session

import (
	"sync"
	"time"

	"github.com/sandboxlab/sandbox-core/pkg/executor"
)

// Session is one live, isolated sandbox tied to a session_id.
type Session struct {
	SessionID    string
	OwningUserID string
	BackendKind  executor.Kind
	SchemaText   string
	SeedText     string
	IsolationID  string
	Executor     executor.Executor
	CreatedAt    time.Time
	LastUsedAt   time.Time

	// execMu serializes execute calls against this session only; other
	// sessions proceed without contending on it.
	execMu sync.Mutex
}

// GetOrCreateRequest is the input to Manager.GetOrCreate.
type GetOrCreateRequest struct {
	SessionID    string
	BackendKind  executor.Kind
	SchemaText   string
	SeedText     string
	OwningUserID string
}
