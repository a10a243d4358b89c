package executor

import "github.com/google/uuid"

// ConnParams is the generic connection parameter set a caller supplies;
// which fields apply depends on Kind (the embedded engine ignores all of
// them).
type ConnParams struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// New builds a fresh, not-yet-connected Executor for kind. When
// isolationID is non-empty it names the session-scoped isolation unit:
// the in-memory database name for the embedded engine, the database for
// MariaDB/MongoDB, or the key prefix for Redis. PostgreSQL's isolation
// unit is a schema applied separately via SetSearchPath, since its
// student-role connection still targets params.Database.
func New(kind Kind, params ConnParams, isolationID string) Executor {
	switch kind {
	case KindSQLite:
		name := isolationID
		if name == "" {
			name = uuid.NewString()
		}
		return NewSQLiteExecutor(name)

	case KindPostgreSQL:
		return NewPostgresExecutor(PostgresConfig{
			Host:     params.Host,
			Port:     params.Port,
			Database: params.Database,
			User:     params.User,
			Password: params.Password,
		})

	case KindMariaDB:
		database := params.Database
		if isolationID != "" {
			database = isolationID
		}
		return NewMariaDBExecutor(MariaDBConfig{
			Host:     params.Host,
			Port:     params.Port,
			Database: database,
			User:     params.User,
			Password: params.Password,
		})

	case KindMongoDB:
		database := params.Database
		if isolationID != "" {
			database = isolationID
		}
		return NewMongoDBExecutor(params.Host, params.Port, database)

	case KindRedis:
		return NewRedisExecutor(params.Host, params.Port, isolationID)

	default:
		return nil
	}
}
