package executor

import (
	"context"
	"testing"

	"github.com/sandboxlab/sandbox-core/pkg/sberrors"
)

func TestSQLiteExecutor_SchemaSeedQueryReset(t *testing.T) {
	ctx := context.Background()
	e := NewSQLiteExecutor("test-db-1")
	if err := e.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer e.Disconnect()

	if r := e.InitSchema(ctx, "CREATE TABLE students (id INTEGER PRIMARY KEY, name TEXT);"); !r.Success {
		t.Fatalf("init schema failed: %s", r.ErrorMessage)
	}
	if r := e.LoadSeed(ctx, "INSERT INTO students (id, name) VALUES (1, 'Ada'); INSERT INTO students (id, name) VALUES (2, 'Lin');"); !r.Success {
		t.Fatalf("load seed failed: %s", r.ErrorMessage)
	}

	result, err := e.Execute(ctx, "SELECT id, name FROM students ORDER BY id", 5)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success || result.RowCount != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Columns[0] != "id" || result.Columns[1] != "name" {
		t.Fatalf("unexpected columns: %v", result.Columns)
	}

	e.Reset(ctx)
	after, err := e.Execute(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'", 5)
	if err != nil {
		t.Fatalf("execute after reset: %v", err)
	}
	if after.RowCount != 0 {
		t.Fatalf("expected no tables after reset, got %+v", after)
	}
}

func TestSQLiteExecutor_SyntaxErrorIsClassified(t *testing.T) {
	ctx := context.Background()
	e := NewSQLiteExecutor("test-db-2")
	if err := e.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer e.Disconnect()

	_, err := e.Execute(ctx, "SELEKT * FROM nowhere", 5)
	if err == nil {
		t.Fatal("expected a syntax error")
	}
	if !sberrors.Is(err, sberrors.CodeSyntaxError) {
		t.Fatalf("expected CodeSyntaxError, got %v", err)
	}
}

func TestSQLiteExecutor_AffectedRowsForNonQueryStatements(t *testing.T) {
	ctx := context.Background()
	e := NewSQLiteExecutor("test-db-3")
	if err := e.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer e.Disconnect()

	if r := e.InitSchema(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, v INTEGER);"); !r.Success {
		t.Fatalf("init schema failed: %s", r.ErrorMessage)
	}
	if r := e.LoadSeed(ctx, "INSERT INTO t (id, v) VALUES (1, 10); INSERT INTO t (id, v) VALUES (2, 20);"); !r.Success {
		t.Fatalf("load seed failed: %s", r.ErrorMessage)
	}

	result, err := e.Execute(ctx, "UPDATE t SET v = v + 1 WHERE id = 1", 5)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success || result.AffectedRows != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}
