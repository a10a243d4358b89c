// Package pool implements the Sandbox Pool (C3): a thin facade that
// multiplexes callers onto a fresh one-shot executor or onto the Session
// Manager, while tracking backend availability in the background.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/sandboxlab/sandbox-core/pkg/dataset"
	"github.com/sandboxlab/sandbox-core/pkg/executor"
	"github.com/sandboxlab/sandbox-core/pkg/sbconfig"
	"github.com/sandboxlab/sandbox-core/pkg/sberrors"
	"github.com/sandboxlab/sandbox-core/pkg/sblog"
	"github.com/sandboxlab/sandbox-core/pkg/session"
	"github.com/sandboxlab/sandbox-core/pkg/validator"
)

// Request is the uniform input to every Pool operation, matching
// spec.md §3's Query request. When DatasetID is non-empty, SchemaText
// and SeedText are resolved from the dataset store and any
// client-supplied values in those fields are ignored, per spec.md §6.
type Request struct {
	BackendKind  executor.Kind
	QueryText    string
	SchemaText   string
	SeedText     string
	DatasetID    string
	Timeout      int
	SessionID    string
	OwningUserID string
}

// Pool holds no per-user state; construct one explicitly per process
// (no package-level singleton, per spec.md §9).
type Pool struct {
	cfg      sbconfig.Config
	log      sblog.Logger
	sessions *session.Manager
	datasets dataset.Store

	mu           sync.RWMutex
	availability map[executor.Kind]bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Pool. datasets may be nil if no request will ever carry a
// DatasetID. Call Start to begin the background health-check loop and
// Stop to shut it down cleanly.
func New(cfg sbconfig.Config, log sblog.Logger, sessions *session.Manager, datasets dataset.Store) *Pool {
	availability := make(map[executor.Kind]bool, 5)
	for _, kind := range probedKinds {
		availability[kind] = false
	}
	return &Pool{
		cfg:          cfg,
		log:          log,
		sessions:     sessions,
		datasets:     datasets,
		availability: availability,
		stopCh:       make(chan struct{}),
	}
}

// resolveDataset fills req.SchemaText/SeedText from the dataset store
// when req.DatasetID is set, overriding any client-supplied values.
func (p *Pool) resolveDataset(ctx context.Context, req Request) (Request, error) {
	if req.DatasetID == "" {
		return req, nil
	}
	if p.datasets == nil {
		return req, sberrors.NewNotFound("dataset not found: " + req.DatasetID)
	}
	ds, err := p.datasets.Get(ctx, req.DatasetID)
	if err != nil {
		return req, err
	}
	req.SchemaText = ds.SchemaSQL
	req.SeedText = ds.SeedSQL
	return req, nil
}

// probedKinds are the backends health-checked periodically. The
// embedded engine needs no network probe; IsAvailable reports it
// unconditionally available.
var probedKinds = []executor.Kind{
	executor.KindPostgreSQL,
	executor.KindMariaDB,
	executor.KindMongoDB,
	executor.KindRedis,
}

// Start launches the periodic health-check goroutine and runs one probe
// round immediately so IsAvailable has data before the first tick.
func (p *Pool) Start(ctx context.Context) {
	p.probeAll(ctx)

	p.wg.Add(1)
	go p.healthCheckLoop(ctx)
}

// Stop halts the health-check goroutine. Safe to call once.
func (p *Pool) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Pool) healthCheckLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.probeAll(ctx)
		case <-p.stopCh:
			return
		}
	}
}

func (p *Pool) probeAll(ctx context.Context) {
	for _, kind := range probedKinds {
		healthy := p.probe(ctx, kind)
		p.mu.Lock()
		p.availability[kind] = healthy
		p.mu.Unlock()
	}
}

func (p *Pool) probe(ctx context.Context, kind executor.Kind) bool {
	backendCfg := p.cfg.Backends[string(kind)]
	exec := executor.New(kind, connParams(backendCfg), "")
	if exec == nil {
		return false
	}

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := exec.Connect(pctx); err != nil {
		return false
	}
	exec.Disconnect()
	return true
}

// IsAvailable returns true without probing for the embedded engine,
// since it needs no network connection; otherwise the last known health
// check result.
func (p *Pool) IsAvailable(kind executor.Kind) bool {
	if kind == executor.KindSQLite {
		return true
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.availability[kind]
}

// ExecuteStateless validates the query, then acquires a fresh executor,
// applies reset + schema + seed, executes, and releases. Used by the
// free-form sandbox endpoint where the caller supplies its own
// schema/seed on every call.
func (p *Pool) ExecuteStateless(ctx context.Context, req Request) (executor.Result, error) {
	if err := validator.Validate(req.BackendKind, req.QueryText); err != nil {
		return executor.Result{}, err
	}
	req, err := p.resolveDataset(ctx, req)
	if err != nil {
		return executor.Result{}, err
	}

	backendCfg := p.cfg.Backends[string(req.BackendKind)]
	exec := executor.New(req.BackendKind, connParams(backendCfg), "")
	if exec == nil {
		return executor.Result{}, nil
	}

	if err := exec.Connect(ctx); err != nil {
		return executor.Result{}, err
	}
	defer exec.Disconnect()

	exec.Reset(ctx)
	if req.SchemaText != "" {
		if r := exec.InitSchema(ctx, req.SchemaText); !r.Success {
			return r, nil
		}
	}
	if req.SeedText != "" {
		if r := exec.LoadSeed(ctx, req.SeedText); !r.Success {
			return r, nil
		}
	}

	timeout := clampTimeout(req.Timeout, p.cfg.MaxQueryTime)
	return exec.Execute(ctx, req.QueryText, timeout)
}

// ExecuteInSession validates the query, then delegates to the Session
// Manager, creating the session on first use.
func (p *Pool) ExecuteInSession(ctx context.Context, req Request) (executor.Result, error) {
	if err := validator.Validate(req.BackendKind, req.QueryText); err != nil {
		return executor.Result{}, err
	}
	req, err := p.resolveDataset(ctx, req)
	if err != nil {
		return executor.Result{}, err
	}

	sess, err := p.sessions.GetOrCreate(ctx, session.GetOrCreateRequest{
		SessionID:    req.SessionID,
		BackendKind:  req.BackendKind,
		SchemaText:   req.SchemaText,
		SeedText:     req.SeedText,
		OwningUserID: req.OwningUserID,
	})
	if err != nil {
		return executor.Result{}, err
	}

	timeout := clampTimeout(req.Timeout, p.cfg.MaxQueryTime)
	return p.sessions.Execute(ctx, sess.SessionID, req.OwningUserID, req.QueryText, timeout)
}

// ResetSession delegates to the Session Manager.
func (p *Pool) ResetSession(ctx context.Context, sessionID string) error {
	return p.sessions.Reset(ctx, sessionID)
}

// DestroySession delegates to the Session Manager.
func (p *Pool) DestroySession(ctx context.Context, sessionID string) {
	p.sessions.Destroy(ctx, sessionID)
}

func connParams(cfg sbconfig.BackendConfig) executor.ConnParams {
	return executor.ConnParams{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: cfg.Database,
		User:     cfg.User,
		Password: cfg.Password,
	}
}

func clampTimeout(requested int, max time.Duration) int {
	maxSeconds := int(max / time.Second)
	if requested <= 0 || requested > maxSeconds {
		return maxSeconds
	}
	return requested
}
