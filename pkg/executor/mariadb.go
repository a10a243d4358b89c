package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/sandboxlab/sandbox-core/pkg/sberrors"
)

// MariaDBConfig holds the connection parameters for one MariaDB/MySQL
// executor instance.
type MariaDBConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

func (c MariaDBConfig) dsn() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?timeout=10s&readTimeout=30s&writeTimeout=30s&parseTime=true",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// MariaDBExecutor implements Executor against a MariaDB/MySQL-family
// server, matching spec.md's "Relational server B": autocommit, a
// per-statement max_execution_time applied before each query, and
// quote-aware statement splitting for multi-statement scripts.
type MariaDBExecutor struct {
	cfg MariaDBConfig
	db  *sql.DB
}

func NewMariaDBExecutor(cfg MariaDBConfig) *MariaDBExecutor {
	return &MariaDBExecutor{cfg: cfg}
}

func (e *MariaDBExecutor) Connect(ctx context.Context) error {
	db, err := sql.Open("mysql", e.cfg.dsn())
	if err != nil {
		return sberrors.NewConnectionFailed("failed to connect to mariadb", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return sberrors.NewConnectionFailed("failed to connect to mariadb", err)
	}
	e.db = db
	return nil
}

func (e *MariaDBExecutor) Disconnect() {
	if e.db != nil {
		_ = e.db.Close()
		e.db = nil
	}
}

func (e *MariaDBExecutor) IsConnected(ctx context.Context) bool {
	if e.db == nil {
		return false
	}
	return e.db.PingContext(ctx) == nil
}

func (e *MariaDBExecutor) Execute(ctx context.Context, query string, timeout int) (Result, error) {
	if e.db == nil {
		return Result{}, sberrors.NewConnectionFailed("not connected to database", nil)
	}

	if _, err := e.db.ExecContext(ctx, fmt.Sprintf("SET max_execution_time = %d", timeout*1000)); err != nil {
		// Some MariaDB builds lack the session variable; proceed, the
		// context-level deadline below still bounds the call.
	}

	qctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(qctx, query)
	if err != nil {
		return e.classifyError(qctx, query, err, timeout)
	}
	defer rows.Close()

	result, scanErr := scanRows(rows, start)
	if scanErr != nil {
		return Failed(scanErr.Error()), nil
	}
	return result, nil
}

func (e *MariaDBExecutor) classifyError(ctx context.Context, query string, err error, timeout int) (Result, error) {
	msg := strings.ToLower(err.Error())
	switch {
	case ctx.Err() == context.DeadlineExceeded || strings.Contains(msg, "max_execution_time"):
		return Result{}, sberrors.NewTimeout(fmt.Sprintf("query exceeded %ds timeout", timeout))
	case strings.Contains(msg, "syntax"):
		return Result{}, sberrors.NewSyntaxError(err.Error())
	default:
		start := time.Now()
		res, execErr := e.db.ExecContext(ctx, query)
		if execErr != nil {
			return Failed(err.Error()), nil
		}
		affected, _ := res.RowsAffected()
		return OkAffected(int(affected), time.Since(start).Milliseconds()), nil
	}
}

func (e *MariaDBExecutor) InitSchema(ctx context.Context, schemaSQL string) Result {
	return e.runScript(ctx, schemaSQL, "Schema initialization failed")
}

func (e *MariaDBExecutor) LoadSeed(ctx context.Context, seedSQL string) Result {
	return e.runScript(ctx, seedSQL, "Data loading failed")
}

func (e *MariaDBExecutor) runScript(ctx context.Context, script, failurePrefix string) Result {
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

func (e *MariaDBExecutor) Reset(ctx context.Context) {
	if e.db == nil {
		return
	}
	_, _ = e.db.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0")

	rows, err := e.db.QueryContext(ctx, "SHOW TABLES")
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
			_, _ = e.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS `%s`", strings.ReplaceAll(t, "`", "``")))
		}
	}

	_, _ = e.db.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1")
}
