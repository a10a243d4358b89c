package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sandboxlab/sandbox-core/pkg/executor"
	"github.com/sandboxlab/sandbox-core/pkg/sberrors"
	"github.com/sandboxlab/sandbox-core/pkg/sbconfig"
)

// newIsolationID generates a fresh isolation identifier of the form
// "s_<12 hex chars>", per spec.md §4.4.3.
func newIsolationID() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "s_" + hex.EncodeToString(buf), nil
}

// createSession builds a brand-new Session with a freshly generated
// isolation id. On any failure it tears down whatever it created before
// returning.
func (m *Manager) createSession(ctx context.Context, req GetOrCreateRequest) (*Session, error) {
	isolationID, err := newIsolationID()
	if err != nil {
		return nil, sberrors.NewCreationFailed("failed to generate isolation id", err)
	}
	return m.createSessionWithIsolationID(ctx, req, isolationID)
}

// createSessionWithIsolationID builds a Session whose backend-specific
// isolation object (schema, database, or key prefix) is created under
// isolationID rather than a freshly generated one. This lets
// rebuildFromMetadata recreate a session's isolation object under the
// same id recorded in its durable metadata, so the rebuilt Session's
// IsolationID always matches what was actually created on the backend.
// Postgres and MariaDB creation is idempotent (CREATE SCHEMA/DATABASE IF
// NOT EXISTS), and Mongo/Redis isolation is just connecting into an
// existing namespace, so reusing an id here is safe whether or not
// backend state from the prior process still exists.
func (m *Manager) createSessionWithIsolationID(ctx context.Context, req GetOrCreateRequest, isolationID string) (*Session, error) {
	backendCfg := m.cfg.Backends[string(req.BackendKind)]

	var exec executor.Executor
	var err error
	switch req.BackendKind {
	case executor.KindSQLite:
		exec, err = m.createSQLiteSession(ctx, isolationID, req)
	case executor.KindPostgreSQL:
		exec, err = m.createPostgresSession(ctx, backendCfg, isolationID, req)
	case executor.KindMariaDB:
		exec, err = m.createMariaDBSession(ctx, backendCfg, isolationID, req)
	case executor.KindMongoDB:
		exec, err = m.createMongoSession(ctx, backendCfg, isolationID, req)
	case executor.KindRedis:
		exec, err = m.createRedisSession(ctx, backendCfg, isolationID, req)
	default:
		return nil, sberrors.NewCreationFailed(fmt.Sprintf("unsupported backend kind %q", req.BackendKind), nil)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Session{
		SessionID:    req.SessionID,
		OwningUserID: req.OwningUserID,
		BackendKind:  req.BackendKind,
		SchemaText:   req.SchemaText,
		SeedText:     req.SeedText,
		IsolationID:  isolationID,
		Executor:     exec,
		CreatedAt:    now,
		LastUsedAt:   now,
	}, nil
}

func (m *Manager) createSQLiteSession(ctx context.Context, isolationID string, req GetOrCreateRequest) (executor.Executor, error) {
	exec := executor.New(executor.KindSQLite, executor.ConnParams{}, isolationID)
	if err := exec.Connect(ctx); err != nil {
		return nil, sberrors.NewCreationFailed("failed to open embedded database", err)
	}
	if err := applySchemaAndSeed(ctx, exec, req); err != nil {
		exec.Disconnect()
		return nil, err
	}
	return exec, nil
}

func (m *Manager) createPostgresSession(ctx context.Context, cfg sbconfig.BackendConfig, isolationID string, req GetOrCreateRequest) (executor.Executor, error) {
	adminCfg := executor.PostgresConfig{
		Host: cfg.Host, Port: cfg.Port, Database: cfg.Database,
		User: cfg.AdminUser, Password: cfg.AdminPassword,
	}
	if err := executor.CreatePostgresSchema(ctx, adminCfg, isolationID, cfg.StudentUser); err != nil {
		return nil, err
	}

	studentCfg := executor.PostgresConfig{
		Host: cfg.Host, Port: cfg.Port, Database: cfg.Database,
		User: cfg.StudentUser, Password: cfg.StudentPassword,
	}
	exec := executor.NewPostgresExecutor(studentCfg)
	if err := exec.Connect(ctx); err != nil {
		_ = executor.DropPostgresSchema(ctx, adminCfg, isolationID)
		return nil, sberrors.NewCreationFailed("failed to connect as student role", err)
	}
	if err := exec.SetSearchPath(ctx, isolationID); err != nil {
		exec.Disconnect()
		_ = executor.DropPostgresSchema(ctx, adminCfg, isolationID)
		return nil, sberrors.NewCreationFailed("failed to set search_path", err)
	}
	if err := applySchemaAndSeed(ctx, exec, req); err != nil {
		exec.Disconnect()
		_ = executor.DropPostgresSchema(ctx, adminCfg, isolationID)
		return nil, err
	}
	return exec, nil
}

func (m *Manager) createMariaDBSession(ctx context.Context, cfg sbconfig.BackendConfig, isolationID string, req GetOrCreateRequest) (executor.Executor, error) {
	rootCfg := executor.MariaDBConfig{
		Host: cfg.Host, Port: cfg.Port, Database: cfg.Database,
		User: cfg.AdminUser, Password: cfg.AdminPassword,
	}
	if err := executor.CreateMariaDBDatabase(ctx, rootCfg, isolationID, cfg.User, cfg.StudentUser); err != nil {
		return nil, err
	}

	adminCfg := executor.MariaDBConfig{
		Host: cfg.Host, Port: cfg.Port, Database: isolationID,
		User: cfg.AdminUser, Password: cfg.AdminPassword,
	}
	admin := executor.NewMariaDBExecutor(adminCfg)
	if err := admin.Connect(ctx); err != nil {
		_ = executor.DropMariaDBDatabase(ctx, rootCfg, isolationID)
		return nil, sberrors.NewCreationFailed("failed to open admin connection for schema load", err)
	}
	if err := applySchemaAndSeed(ctx, admin, req); err != nil {
		admin.Disconnect()
		_ = executor.DropMariaDBDatabase(ctx, rootCfg, isolationID)
		return nil, err
	}
	admin.Disconnect()

	studentCfg := executor.MariaDBConfig{
		Host: cfg.Host, Port: cfg.Port, Database: isolationID,
		User: cfg.StudentUser, Password: cfg.StudentPassword,
	}
	student := executor.NewMariaDBExecutor(studentCfg)
	if err := student.Connect(ctx); err != nil {
		_ = executor.DropMariaDBDatabase(ctx, rootCfg, isolationID)
		return nil, sberrors.NewCreationFailed("failed to connect as student user", err)
	}
	return student, nil
}

func (m *Manager) createMongoSession(ctx context.Context, cfg sbconfig.BackendConfig, isolationID string, req GetOrCreateRequest) (executor.Executor, error) {
	exec := executor.NewMongoDBExecutor(cfg.Host, cfg.Port, isolationID)
	if err := exec.Connect(ctx); err != nil {
		return nil, sberrors.NewCreationFailed("failed to connect to mongodb", err)
	}
	if err := applySchemaAndSeed(ctx, exec, req); err != nil {
		exec.Reset(ctx)
		exec.Disconnect()
		return nil, err
	}
	return exec, nil
}

func (m *Manager) createRedisSession(ctx context.Context, cfg sbconfig.BackendConfig, isolationID string, req GetOrCreateRequest) (executor.Executor, error) {
	exec := executor.NewRedisExecutor(cfg.Host, cfg.Port, isolationID)
	if err := exec.Connect(ctx); err != nil {
		return nil, sberrors.NewCreationFailed("failed to connect to redis", err)
	}
	exec.Reset(ctx)
	if err := applySchemaAndSeed(ctx, exec, req); err != nil {
		exec.Reset(ctx)
		exec.Disconnect()
		return nil, err
	}
	return exec, nil
}

func applySchemaAndSeed(ctx context.Context, exec executor.Executor, req GetOrCreateRequest) error {
	if req.SchemaText != "" {
		if r := exec.InitSchema(ctx, req.SchemaText); !r.Success {
			return sberrors.NewCreationFailed("schema initialization failed: "+r.ErrorMessage, nil)
		}
	}
	if req.SeedText != "" {
		if r := exec.LoadSeed(ctx, req.SeedText); !r.Success {
			return sberrors.NewCreationFailed("seed loading failed: "+r.ErrorMessage, nil)
		}
	}
	return nil
}
