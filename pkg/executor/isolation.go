package executor

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandboxlab/sandbox-core/pkg/sberrors"
)

// CreatePostgresSchema opens an administrative connection, creates the
// isolation schema, and grants the restricted student role access to it
// (including default privileges for future tables/sequences), matching
// spec.md §4.4.3's Relational server A isolation procedure.
func CreatePostgresSchema(ctx context.Context, admin PostgresConfig, schema, studentRole string) error {
	db, err := sql.Open("postgres", admin.dsn())
	if err != nil {
		return sberrors.NewCreationFailed("failed to open admin connection", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdent(schema))); err != nil {
		return sberrors.NewCreationFailed("failed to create schema", err)
	}

	if studentRole != "" {
		stmts := []string{
			fmt.Sprintf("GRANT ALL ON SCHEMA %s TO %s", quoteIdent(schema), quoteIdent(studentRole)),
			fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA %s GRANT ALL ON TABLES TO %s", quoteIdent(schema), quoteIdent(studentRole)),
			fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA %s GRANT ALL ON SEQUENCES TO %s", quoteIdent(schema), quoteIdent(studentRole)),
		}
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return sberrors.NewCreationFailed("failed to grant schema privileges", err)
			}
		}
	}
	return nil
}

// DropPostgresSchema drops an isolation schema and everything in it,
// best-effort.
func DropPostgresSchema(ctx context.Context, admin PostgresConfig, schema string) error {
	db, err := sql.Open("postgres", admin.dsn())
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", quoteIdent(schema)))
	return err
}

// CreateMariaDBDatabase opens a root/admin connection, creates the
// isolation database, and grants both the application user and the
// restricted student user access, matching spec.md §4.4.3's Relational
// server B isolation procedure.
func CreateMariaDBDatabase(ctx context.Context, root MariaDBConfig, database, appUser, studentUser string) error {
	db, err := sql.Open("mysql", root.dsn())
	if err != nil {
		return sberrors.NewCreationFailed("failed to open admin connection", err)
	}
	defer db.Close()

	safeDB := quoteBacktick(database)
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", safeDB)); err != nil {
		return sberrors.NewCreationFailed("failed to create database", err)
	}

	grants := []string{
		fmt.Sprintf("GRANT ALL PRIVILEGES ON %s.* TO '%s'@'%%'", safeDB, appUser),
	}
	if studentUser != "" {
		grants = append(grants, fmt.Sprintf("GRANT ALL PRIVILEGES ON %s.* TO '%s'@'%%'", safeDB, studentUser))
	}
	for _, stmt := range grants {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return sberrors.NewCreationFailed("failed to grant database privileges", err)
		}
	}
	_, err = db.ExecContext(ctx, "FLUSH PRIVILEGES")
	if err != nil {
		return sberrors.NewCreationFailed("failed to flush privileges", err)
	}
	return nil
}

// DropMariaDBDatabase drops an isolation database, best-effort.
func DropMariaDBDatabase(ctx context.Context, root MariaDBConfig, database string) error {
	db, err := sql.Open("mysql", root.dsn())
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", quoteBacktick(database)))
	return err
}

func quoteBacktick(ident string) string {
	out := make([]byte, 0, len(ident)+2)
	out = append(out, '`')
	for i := 0; i < len(ident); i++ {
		if ident[i] == '`' {
			out = append(out, '`', '`')
		} else {
			out = append(out, ident[i])
		}
	}
	out = append(out, '`')
	return string(out)
}
