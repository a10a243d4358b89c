package session

import (
	"context"

	"github.com/sandboxlab/sandbox-core/pkg/executor"
)

// teardown disconnects a session's executor and drops its backend-side
// isolation object, best-effort. A failed schema/database drop, or a
// failed connect for the Mongo/Redis cleanup, is logged; nothing is
// returned. A failed drop must never prevent the in-memory entry from
// being removed by the caller, or the session cap becomes unreachable.
func (m *Manager) teardown(ctx context.Context, sess *Session) {
	log := m.log.WithSession(sess.SessionID).WithBackend(string(sess.BackendKind))

	if sess.Executor != nil {
		sess.Executor.Disconnect()
	}

	backendCfg := m.cfg.Backends[string(sess.BackendKind)]

	switch sess.BackendKind {
	case executor.KindSQLite:
		// In-process memory; nothing further to drop.

	case executor.KindPostgreSQL:
		adminCfg := executor.PostgresConfig{
			Host: backendCfg.Host, Port: backendCfg.Port, Database: backendCfg.Database,
			User: backendCfg.AdminUser, Password: backendCfg.AdminPassword,
		}
		if err := executor.DropPostgresSchema(ctx, adminCfg, sess.IsolationID); err != nil {
			log.Warn("failed to drop isolation schema", "error", err.Error())
		}

	case executor.KindMariaDB:
		rootCfg := executor.MariaDBConfig{
			Host: backendCfg.Host, Port: backendCfg.Port, Database: backendCfg.Database,
			User: backendCfg.AdminUser, Password: backendCfg.AdminPassword,
		}
		if err := executor.DropMariaDBDatabase(ctx, rootCfg, sess.IsolationID); err != nil {
			log.Warn("failed to drop isolation database", "error", err.Error())
		}

	case executor.KindMongoDB:
		exec := executor.NewMongoDBExecutor(backendCfg.Host, backendCfg.Port, sess.IsolationID)
		if err := exec.Connect(ctx); err != nil {
			log.Warn("failed to connect to drop isolation database", "error", err.Error())
			break
		}
		exec.Reset(ctx)
		exec.Disconnect()

	case executor.KindRedis:
		exec := executor.NewRedisExecutor(backendCfg.Host, backendCfg.Port, sess.IsolationID)
		if err := exec.Connect(ctx); err != nil {
			log.Warn("failed to connect to clear isolation keys", "error", err.Error())
			break
		}
		exec.Reset(ctx)
		exec.Disconnect()
	}
}
