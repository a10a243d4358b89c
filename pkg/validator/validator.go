package validator

import "github.com/sandboxlab/sandbox-core/pkg/executor"

// Validate dispatches to the rule set for the given backend kind. SQLite,
// PostgreSQL, and MariaDB share the relational blocklist; MongoDB and
// Redis each have their own rule set per spec.md §4.1.
func Validate(kind executor.Kind, query string) error {
	switch kind {
	case executor.KindSQLite, executor.KindPostgreSQL, executor.KindMariaDB:
		return ValidateSQL(query)
	case executor.KindMongoDB:
		return ValidateMongo(query)
	case executor.KindRedis:
		return ValidateRedis(query)
	default:
		return nil
	}
}
