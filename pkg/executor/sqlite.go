package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sandboxlab/sandbox-core/pkg/sberrors"
)

// SQLiteExecutor implements Executor over a private in-memory SQLite
// database. It opens no sockets and dies with the process — the
// simplest of the five adapters, matching spec.md's "Embedded engine".
//
// A single pooled connection is kept open (MaxOpenConns=1) because
// ":memory:" databases are private per-connection in SQLite; without
// pinning to one connection, a second query could silently land on a
// fresh, empty database.
type SQLiteExecutor struct {
	db   *sql.DB
	name string
}

// NewSQLiteExecutor builds an adapter with a unique private in-memory
// database name so multiple concurrent executors never collide.
func NewSQLiteExecutor(name string) *SQLiteExecutor {
	return &SQLiteExecutor{name: name}
}

func (e *SQLiteExecutor) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=private&_journal_mode=MEMORY&_foreign_keys=on&_busy_timeout=30000", e.name)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return sberrors.NewConnectionFailed("failed to create sqlite database", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return sberrors.NewConnectionFailed("failed to create sqlite database", err)
	}
	e.db = db
	return nil
}

func (e *SQLiteExecutor) Disconnect() {
	if e.db != nil {
		_ = e.db.Close()
		e.db = nil
	}
}

func (e *SQLiteExecutor) IsConnected(ctx context.Context) bool {
	if e.db == nil {
		return false
	}
	return e.db.PingContext(ctx) == nil
}

func (e *SQLiteExecutor) Execute(ctx context.Context, query string, timeout int) (Result, error) {
	if e.db == nil {
		return Result{}, sberrors.NewConnectionFailed("not connected to database", nil)
	}

	qctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(qctx, query)
	if err != nil {
		if qctx.Err() == context.DeadlineExceeded {
			return Result{}, sberrors.NewTimeout(fmt.Sprintf("query exceeded %ds timeout", timeout))
		}
		if isSyntaxError(err) {
			return Result{}, sberrors.NewSyntaxError(err.Error())
		}
		// Not a row-returning statement; try Exec instead.
		res, execErr := e.db.ExecContext(qctx, query)
		if execErr != nil {
			return Failed(err.Error()), nil
		}
		affected, _ := res.RowsAffected()
		return OkAffected(int(affected), time.Since(start).Milliseconds()), nil
	}
	if cols, colErr := rows.Columns(); colErr == nil && len(cols) == 0 {
		// A statement without result columns (DDL/DML) is closed unread
		// and run through Exec, so its affected row count is reported.
		rows.Close()
		res, execErr := e.db.ExecContext(qctx, query)
		if execErr != nil {
			return Failed(execErr.Error()), nil
		}
		affected, _ := res.RowsAffected()
		return OkAffected(int(affected), time.Since(start).Milliseconds()), nil
	}
	defer rows.Close()

	result, scanErr := scanRows(rows, start)
	if scanErr != nil {
		return Failed(scanErr.Error()), nil
	}
	return result, nil
}

func (e *SQLiteExecutor) InitSchema(ctx context.Context, schemaSQL string) Result {
	return e.runScript(ctx, schemaSQL, "Schema initialization failed")
}

func (e *SQLiteExecutor) LoadSeed(ctx context.Context, seedSQL string) Result {
	return e.runScript(ctx, seedSQL, "Data loading failed")
}

func (e *SQLiteExecutor) runScript(ctx context.Context, script, failurePrefix string) Result {
	if strings.TrimSpace(script) == "" {
		return Result{Success: true}
	}
	if e.db == nil {
		return Failed(failurePrefix + ": not connected")
	}
	for _, stmt := range splitSQLStatements(script) {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return Failed(fmt.Sprintf("%s: %v", failurePrefix, err))
		}
	}
	return Result{Success: true}
}

func (e *SQLiteExecutor) Reset(ctx context.Context) {
	if e.db == nil {
		return
	}
	rows, err := e.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return
	}
	var tables []string
	for rows.Next() {
		var name string
		if rows.Scan(&name) == nil {
			tables = append(tables, name)
		}
	}
	rows.Close()

	for _, table := range tables {
		_, _ = e.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, strings.ReplaceAll(table, `"`, `""`)))
	}
}

func isSyntaxError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "syntax error") || strings.Contains(msg, " near ")
}
