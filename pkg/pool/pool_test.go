package pool

import (
	"context"
	"testing"
	"time"

	"github.com/sandboxlab/sandbox-core/pkg/dataset"
	"github.com/sandboxlab/sandbox-core/pkg/executor"
	"github.com/sandboxlab/sandbox-core/pkg/sbconfig"
	"github.com/sandboxlab/sandbox-core/pkg/sberrors"
	"github.com/sandboxlab/sandbox-core/pkg/sblog"
	"github.com/sandboxlab/sandbox-core/pkg/session"
)

func testPool(t *testing.T) *Pool {
	t.Helper()
	cfg := sbconfig.Defaults()
	cfg.MaxSessions = 5
	cfg.SessionTTL = time.Minute
	cfg.CleanupInterval = time.Minute
	cfg.MaxQueryTime = 5 * time.Second
	log := sblog.New(nil, "error")
	mgr := session.New(cfg, log, session.NewDisabledMetadataStore())
	return New(cfg, log, mgr, nil)
}

func TestPool_IsAvailable_SQLiteAlwaysTrue(t *testing.T) {
	p := testPool(t)
	if !p.IsAvailable(executor.KindSQLite) {
		t.Fatal("expected embedded engine to always be available")
	}
}

func TestPool_IsAvailable_UnprobedBackendDefaultsFalse(t *testing.T) {
	p := testPool(t)
	if p.IsAvailable(executor.KindPostgreSQL) {
		t.Fatal("expected unprobed backend to default to unavailable")
	}
}

func TestPool_ExecuteStateless_RunsSchemaSeedThenQuery(t *testing.T) {
	ctx := context.Background()
	p := testPool(t)

	req := Request{
		BackendKind: executor.KindSQLite,
		SchemaText:  "CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT);",
		SeedText:    "INSERT INTO t (id, v) VALUES (1, 'hello');",
		QueryText:   "SELECT v FROM t WHERE id = 1",
		Timeout:     5,
	}
	result, err := p.ExecuteStateless(ctx, req)
	if err != nil {
		t.Fatalf("execute stateless: %v", err)
	}
	if !result.Success || result.Rows[0][0] != "hello" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPool_ExecuteStateless_RejectsBlockedQuery(t *testing.T) {
	ctx := context.Background()
	p := testPool(t)

	req := Request{
		BackendKind: executor.KindSQLite,
		QueryText:   "ATTACH DATABASE '/etc/passwd' AS pwned",
		Timeout:     5,
	}
	_, err := p.ExecuteStateless(ctx, req)
	if !sberrors.Is(err, sberrors.CodeBlocked) {
		t.Fatalf("expected Blocked, got %v", err)
	}
}

func TestPool_ExecuteInSession_CreatesAndReusesSession(t *testing.T) {
	ctx := context.Background()
	p := testPool(t)

	req := Request{
		BackendKind:  executor.KindSQLite,
		SessionID:    "sess-1",
		OwningUserID: "user-1",
		SchemaText:   "CREATE TABLE counters (id INTEGER PRIMARY KEY, n INTEGER);",
		SeedText:     "INSERT INTO counters (id, n) VALUES (1, 0);",
		QueryText:    "UPDATE counters SET n = n + 1 WHERE id = 1",
		Timeout:      5,
	}
	if _, err := p.ExecuteInSession(ctx, req); err != nil {
		t.Fatalf("first execute: %v", err)
	}

	req.QueryText = "UPDATE counters SET n = n + 1 WHERE id = 1"
	if _, err := p.ExecuteInSession(ctx, req); err != nil {
		t.Fatalf("second execute: %v", err)
	}

	req.QueryText = "SELECT n FROM counters WHERE id = 1"
	result, err := p.ExecuteInSession(ctx, req)
	if err != nil {
		t.Fatalf("read-back execute: %v", err)
	}
	if result.Rows[0][0] != int64(2) {
		t.Fatalf("expected session state to persist across calls, got %v", result.Rows[0][0])
	}
}

func TestPool_ResetSession_ReappliesSeed(t *testing.T) {
	ctx := context.Background()
	p := testPool(t)

	req := Request{
		BackendKind:  executor.KindSQLite,
		SessionID:    "sess-1",
		OwningUserID: "user-1",
		SchemaText:   "CREATE TABLE counters (id INTEGER PRIMARY KEY, n INTEGER);",
		SeedText:     "INSERT INTO counters (id, n) VALUES (1, 0);",
		QueryText:    "UPDATE counters SET n = n + 1 WHERE id = 1",
		Timeout:      5,
	}
	if _, err := p.ExecuteInSession(ctx, req); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if err := p.ResetSession(ctx, "sess-1"); err != nil {
		t.Fatalf("reset session: %v", err)
	}

	req.QueryText = "SELECT n FROM counters WHERE id = 1"
	result, err := p.ExecuteInSession(ctx, req)
	if err != nil {
		t.Fatalf("execute after reset: %v", err)
	}
	if result.Rows[0][0] != int64(0) {
		t.Fatalf("expected reset to restore seed value, got %v", result.Rows[0][0])
	}
}

func TestPool_DestroySession_RemovesSessionState(t *testing.T) {
	ctx := context.Background()
	p := testPool(t)

	req := Request{
		BackendKind:  executor.KindSQLite,
		SessionID:    "sess-1",
		OwningUserID: "user-1",
		SchemaText:   "CREATE TABLE t (id INTEGER PRIMARY KEY);",
		QueryText:    "SELECT 1",
		Timeout:      5,
	}
	if _, err := p.ExecuteInSession(ctx, req); err != nil {
		t.Fatalf("execute: %v", err)
	}

	p.DestroySession(ctx, "sess-1")

	_, err := p.ExecuteInSession(ctx, req)
	if err != nil {
		t.Fatalf("expected destroy to allow a fresh session to be created, got %v", err)
	}
}

func TestPool_ExecuteStateless_ResolvesDatasetAndIgnoresInlineSchema(t *testing.T) {
	ctx := context.Background()
	cfg := sbconfig.Defaults()
	cfg.MaxQueryTime = 5 * time.Second
	log := sblog.New(nil, "error")
	mgr := session.New(cfg, log, session.NewDisabledMetadataStore())
	store := dataset.NewStaticStore([]dataset.Dataset{
		{
			ID: "ds-1", BackendKind: executor.KindSQLite,
			SchemaSQL: "CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT);",
			SeedSQL:   "INSERT INTO t (id, v) VALUES (1, 'from-dataset');",
		},
	})
	p := New(cfg, log, mgr, store)

	req := Request{
		BackendKind: executor.KindSQLite,
		DatasetID:   "ds-1",
		SchemaText:  "CREATE TABLE wrong (id INTEGER);",
		QueryText:   "SELECT v FROM t WHERE id = 1",
		Timeout:     5,
	}
	result, err := p.ExecuteStateless(ctx, req)
	if err != nil {
		t.Fatalf("execute stateless: %v", err)
	}
	if !result.Success || result.Rows[0][0] != "from-dataset" {
		t.Fatalf("expected dataset schema/seed to be used over inline values, got %+v", result)
	}
}

func TestPool_ExecuteStateless_UnknownDatasetIsNotFound(t *testing.T) {
	p := testPool(t)
	_, err := p.ExecuteStateless(context.Background(), Request{
		BackendKind: executor.KindSQLite,
		DatasetID:   "missing",
		QueryText:   "SELECT 1",
		Timeout:     5,
	})
	if !sberrors.Is(err, sberrors.CodeNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestClampTimeout(t *testing.T) {
	max := 10 * time.Second
	cases := []struct {
		requested int
		want      int
	}{
		{requested: 0, want: 10},
		{requested: -1, want: 10},
		{requested: 5, want: 5},
		{requested: 100, want: 10},
	}
	for _, c := range cases {
		if got := clampTimeout(c.requested, max); got != c.want {
			t.Errorf("clampTimeout(%d, %s) = %d, want %d", c.requested, max, got, c.want)
		}
	}
}
