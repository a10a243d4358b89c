// Package executor implements one adapter per supported backend kind,
// each normalizing its backend's results into the common Result shape.
// The five adapters share no base state: each is a standalone type
// satisfying Executor.
package executor

import "context"

// MaxResultRows caps the number of rows any adapter returns from a
// single query; rows beyond this are dropped and Result.Truncated is set.
const MaxResultRows = 1000

// Kind identifies one of the five supported backend kinds.
type Kind string

const (
	KindSQLite     Kind = "sqlite"
	KindPostgreSQL Kind = "postgresql"
	KindMariaDB    Kind = "mariadb"
	KindMongoDB    Kind = "mongodb"
	KindRedis      Kind = "redis"
)

// Result is the normalized, tabular shape every backend's output is
// mapped into.
type Result struct {
	Success         bool            `json:"success"`
	Columns         []string        `json:"columns"`
	Rows            [][]interface{} `json:"rows"`
	RowCount        int             `json:"row_count"`
	AffectedRows    int             `json:"affected_rows"`
	ExecutionTimeMs int64           `json:"execution_time_ms"`
	ErrorMessage    string          `json:"error_message"`
	Truncated       bool            `json:"truncated"`
}

// Failed builds a Result carrying only an error message; success is false.
func Failed(message string) Result {
	return Result{Success: false, ErrorMessage: message}
}

// Ok builds a successful Result and applies the MaxResultRows cap.
func Ok(columns []string, rows [][]interface{}, elapsedMs int64) Result {
	truncated := false
	if len(rows) > MaxResultRows {
		rows = rows[:MaxResultRows]
		truncated = true
	}
	return Result{
		Success:         true,
		Columns:         columns,
		Rows:            rows,
		RowCount:        len(rows),
		ExecutionTimeMs: elapsedMs,
		Truncated:       truncated,
	}
}

// OkAffected builds a successful non-tabular Result (an INSERT/UPDATE/DELETE).
func OkAffected(affected int, elapsedMs int64) Result {
	return Result{Success: true, AffectedRows: affected, ExecutionTimeMs: elapsedMs}
}

// Executor is the uniform operation set every backend adapter implements.
// Implementations must be usable as a scoped resource: Disconnect must be
// safe to call unconditionally and must never return an error (it is
// idempotent and best-effort), mirroring spec.md's lifecycle contract.
type Executor interface {
	// Connect establishes the backend connection. Must fail with a
	// sberrors ConnectionFailed error, never panic.
	Connect(ctx context.Context) error

	// Disconnect closes the connection. Idempotent; never propagates errors.
	Disconnect()

	// IsConnected performs a cheap liveness probe.
	IsConnected(ctx context.Context) bool

	// Execute runs a single query/command with the given timeout and
	// returns a normalized Result. Backend errors are reported as
	// Result{Success:false}; only Timeout/SyntaxError/ConnectionFailed
	// are returned as errors (see spec.md §4.2).
	Execute(ctx context.Context, query string, timeout int) (Result, error)

	// InitSchema applies a (possibly multi-statement) schema script.
	InitSchema(ctx context.Context, schemaSQL string) Result

	// LoadSeed applies a (possibly multi-statement) seed data script.
	LoadSeed(ctx context.Context, seedSQL string) Result

	// Reset drops every object the current connection's user can see,
	// best-effort; errors are suppressed.
	Reset(ctx context.Context)
}
