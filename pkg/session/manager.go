package session

import (
	"context"
	"sync"
	"time"

	"github.com/sandboxlab/sandbox-core/pkg/executor"
	"github.com/sandboxlab/sandbox-core/pkg/sberrors"
	"github.com/sandboxlab/sandbox-core/pkg/sbconfig"
	"github.com/sandboxlab/sandbox-core/pkg/sblog"
)

// Manager is the Session Manager (C4). Exactly two lock classes exist:
// mu guards the session table as a mapping and is never held across
// I/O; each Session's own execMu serializes execute calls against that
// session while every other session proceeds in parallel.
type Manager struct {
	cfg  sbconfig.Config
	log  sblog.Logger
	meta *MetadataStore

	mu       sync.Mutex
	sessions map[string]*Session

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Manager. Call Start to begin the expiry ticker and Stop
// to shut it down. There is no package-level instance: the caller
// (typically the Pool) owns and threads this value explicitly.
func New(cfg sbconfig.Config, log sblog.Logger, meta *MetadataStore) *Manager {
	return &Manager{
		cfg:      cfg,
		log:      log,
		meta:     meta,
		sessions: make(map[string]*Session),
		stopCh:   make(chan struct{}),
	}
}

func (m *Manager) Start() {
	m.wg.Add(1)
	go m.cleanupLoop()
}

func (m *Manager) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

// GetOrCreate implements the double-checked get-or-create protocol of
// spec.md §4.4.2. Heavy I/O (teardown, rebuild, creation) always runs
// outside the manager lock.
func (m *Manager) GetOrCreate(ctx context.Context, req GetOrCreateRequest) (*Session, error) {
	m.mu.Lock()
	existing, ok := m.sessions[req.SessionID]
	var stale *Session
	if ok {
		if existing.BackendKind == req.BackendKind {
			if existing.OwningUserID != req.OwningUserID {
				m.mu.Unlock()
				return nil, sberrors.NewNotOwner()
			}
			existing.LastUsedAt = time.Now()
			m.mu.Unlock()
			m.meta.Touch(ctx, req.SessionID)
			return existing, nil
		}
		stale = existing
		delete(m.sessions, req.SessionID)
	} else if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, sberrors.NewTooManySessions(m.cfg.MaxSessions)
	}
	m.mu.Unlock()

	if stale != nil {
		m.teardown(ctx, stale)
		m.meta.Delete(ctx, stale.SessionID)
	}

	if rebuilt, ok := m.rebuildFromMetadata(ctx, req); ok {
		m.mu.Lock()
		if racer, ok := m.sessions[req.SessionID]; ok {
			m.mu.Unlock()
			m.teardown(ctx, rebuilt)
			return racer, nil
		}
		m.sessions[req.SessionID] = rebuilt
		m.mu.Unlock()
		m.meta.Save(ctx, rebuilt)
		return rebuilt, nil
	}

	created, err := m.createSession(ctx, req)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if racer, ok := m.sessions[req.SessionID]; ok {
		m.mu.Unlock()
		m.teardown(ctx, created)
		return racer, nil
	}
	m.sessions[req.SessionID] = created
	m.mu.Unlock()
	m.meta.Save(ctx, created)
	return created, nil
}

// rebuildFromMetadata recreates a session from its durable metadata
// record when one exists for the same backend kind, per spec.md §4.4.4.
// Rebuilt sessions only restore the declared schema and seed, never
// ad-hoc mutations made after the original session was seeded.
func (m *Manager) rebuildFromMetadata(ctx context.Context, req GetOrCreateRequest) (*Session, bool) {
	rec, ok := m.meta.Get(ctx, req.SessionID)
	if !ok || rec.BackendKind != req.BackendKind {
		return nil, false
	}

	rebuildReq := GetOrCreateRequest{
		SessionID:    req.SessionID,
		BackendKind:  rec.BackendKind,
		SchemaText:   rec.SchemaText,
		SeedText:     rec.SeedText,
		OwningUserID: rec.OwningUserID,
	}
	sess, err := m.createSessionWithIsolationID(ctx, rebuildReq, rec.IsolationID)
	if err != nil {
		return nil, false
	}
	sess.CreatedAt = rec.CreatedAt
	return sess, true
}

// Execute runs query against sessionID's executor, per spec.md §4.4.5.
func (m *Manager) Execute(ctx context.Context, sessionID, userID, query string, timeout int) (executor.Result, error) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return executor.Result{}, sberrors.NewSessionExpired()
	}
	if sess.OwningUserID != userID {
		m.mu.Unlock()
		return executor.Result{}, sberrors.NewNotOwner()
	}
	sess.LastUsedAt = time.Now()
	m.mu.Unlock()
	m.meta.Touch(ctx, sessionID)

	sess.execMu.Lock()
	defer sess.execMu.Unlock()

	if !sess.Executor.IsConnected(ctx) {
		if err := sess.Executor.Connect(ctx); err != nil {
			return executor.Result{Success: false, ErrorMessage: "failed to reconnect: " + err.Error()}, nil
		}
		if pg, ok := sess.Executor.(*executor.PostgresExecutor); ok {
			if err := pg.SetSearchPath(ctx, sess.IsolationID); err != nil {
				return executor.Result{Success: false, ErrorMessage: "failed to restore isolation after reconnect: " + err.Error()}, nil
			}
		}
	}

	return sess.Executor.Execute(ctx, query, timeout)
}

// Reset wipes a session's backend-side data and reapplies its declared
// schema and seed, keeping the session entry itself alive. Resetting a
// session that no longer exists is a no-op success.
func (m *Manager) Reset(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	sess.execMu.Lock()
	defer sess.execMu.Unlock()

	sess.Executor.Reset(ctx)
	req := GetOrCreateRequest{SchemaText: sess.SchemaText, SeedText: sess.SeedText}
	return applySchemaAndSeed(ctx, sess.Executor, req)
}

// Destroy removes sessionID from the table and tears down its backend
// resources. A non-existent session is a no-op.
func (m *Manager) Destroy(ctx context.Context, sessionID string) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.teardown(ctx, sess)
	m.meta.Delete(ctx, sessionID)
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupExpired()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) cleanupExpired() {
	now := time.Now()
	var expired []*Session

	m.mu.Lock()
	for id, sess := range m.sessions {
		if now.Sub(sess.LastUsedAt) > m.cfg.SessionTTL {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	ctx := context.Background()
	for _, sess := range expired {
		m.teardown(ctx, sess)
		m.meta.Delete(ctx, sess.SessionID)
	}
}
