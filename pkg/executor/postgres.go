package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/sandboxlab/sandbox-core/pkg/sberrors"
)

// PostgresConfig holds the connection parameters for one PostgreSQL
// executor instance.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

func (c PostgresConfig) dsn() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=10",
		c.Host, c.Port, c.Database, c.User, c.Password, sslMode)
}

// PostgresExecutor implements Executor against a PostgreSQL-family
// server, matching spec.md's "Relational server A": autocommit isolation
// and a fallback per-connection statement_timeout (the role-level
// timeout for the restricted student role takes precedence when set).
type PostgresExecutor struct {
	cfg PostgresConfig
	db  *sql.DB
}

func NewPostgresExecutor(cfg PostgresConfig) *PostgresExecutor {
	return &PostgresExecutor{cfg: cfg}
}

func (e *PostgresExecutor) Connect(ctx context.Context) error {
	db, err := sql.Open("postgres", e.cfg.dsn())
	if err != nil {
		return sberrors.NewConnectionFailed("failed to connect to postgresql", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return sberrors.NewConnectionFailed("failed to connect to postgresql", err)
	}
	e.db = db
	return nil
}

func (e *PostgresExecutor) Disconnect() {
	if e.db != nil {
		_ = e.db.Close()
		e.db = nil
	}
}

func (e *PostgresExecutor) IsConnected(ctx context.Context) bool {
	if e.db == nil {
		return false
	}
	return e.db.PingContext(ctx) == nil
}

// SetSearchPath sets the session's search_path to the given isolation
// schema. Called once after session creation and again after any
// reconnect, per spec.md §4.4.5.
func (e *PostgresExecutor) SetSearchPath(ctx context.Context, schema string) error {
	if e.db == nil {
		return sberrors.NewConnectionFailed("not connected to database", nil)
	}
	_, err := e.db.ExecContext(ctx, fmt.Sprintf(`SET search_path TO %s`, quoteIdent(schema)))
	return err
}

func (e *PostgresExecutor) Execute(ctx context.Context, query string, timeout int) (Result, error) {
	if e.db == nil {
		return Result{}, sberrors.NewConnectionFailed("not connected to database", nil)
	}

	// statement_timeout is set per connection as a fallback; the
	// restricted student role normally carries its own role-level
	// timeout, which takes precedence.
	_, _ = e.db.ExecContext(ctx, fmt.Sprintf("SET statement_timeout = %d", timeout*1000))

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return e.classifyError(ctx, query, err, timeout)
	}
	defer rows.Close()

	result, scanErr := scanRows(rows, start)
	if scanErr != nil {
		return Failed(firstLine(scanErr.Error())), nil
	}
	return result, nil
}

func (e *PostgresExecutor) classifyError(ctx context.Context, query string, err error, timeout int) (Result, error) {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "canceling statement due to statement timeout"):
		return Result{}, sberrors.NewTimeout(fmt.Sprintf("query exceeded %ds timeout", timeout))
	case strings.Contains(lower, "syntax error"):
		return Result{}, sberrors.NewSyntaxError(firstLine(msg))
	default:
		// The driver's Query path rejects statements with no result set
		// (DDL/DML); retry via Exec before giving up.
		start := time.Now()
		res, execErr := e.db.ExecContext(ctx, query)
		if execErr != nil {
			return Failed(firstLine(msg)), nil
		}
		affected, _ := res.RowsAffected()
		return OkAffected(int(affected), time.Since(start).Milliseconds()), nil
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func (e *PostgresExecutor) InitSchema(ctx context.Context, schemaSQL string) Result {
	return e.exec(ctx, schemaSQL, "Schema initialization failed")
}

func (e *PostgresExecutor) LoadSeed(ctx context.Context, seedSQL string) Result {
	return e.exec(ctx, seedSQL, "Data loading failed")
}

func (e *PostgresExecutor) exec(ctx context.Context, script, failurePrefix string) Result {
	if strings.TrimSpace(script) == "" {
		return Result{Success: true}
	}
	if e.db == nil {
		return Failed(failurePrefix + ": not connected")
	}
	if _, err := e.db.ExecContext(ctx, script); err != nil {
		return Failed(fmt.Sprintf("%s: %v", failurePrefix, err))
	}
	return Result{Success: true}
}

func (e *PostgresExecutor) Reset(ctx context.Context) {
	if e.db == nil {
		return
	}
	rows, err := e.db.QueryContext(ctx, `SELECT tablename FROM pg_tables WHERE schemaname = current_schema()`)
	if err == nil {
		var tables []string
		for rows.Next() {
			var name string
			if rows.Scan(&name) == nil {
				tables = append(tables, name)
			}
		}
		rows.Close()
		for _, t := range tables {
			_, _ = e.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", quoteIdent(t)))
		}
	}

	seqRows, err := e.db.QueryContext(ctx, `SELECT sequencename FROM pg_sequences WHERE schemaname = current_schema()`)
	if err == nil {
		var seqs []string
		for seqRows.Next() {
			var name string
			if seqRows.Scan(&name) == nil {
				seqs = append(seqs, name)
			}
		}
		seqRows.Close()
		for _, s := range seqs {
			_, _ = e.db.ExecContext(ctx, fmt.Sprintf("DROP SEQUENCE IF EXISTS %s CASCADE", quoteIdent(s)))
		}
	}
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
