// Package audit appends trail entries to the per-entity-type log
// tables. Writes are best-effort: a failed write is logged and never
// fails the operation that produced it.
package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/veldtec/authgate/internal/models"
)

// Logger defines the contract for recording audit entries.
type Logger interface {
	Log(ctx context.Context, entry models.AuditLog)
}

// Store is the slice of the storage layer the writer needs.
type Store interface {
	InsertAuditLog(ctx context.Context, entry models.AuditLog) error
}

// DBLogger implements Logger against the logs schema.
type DBLogger struct {
	store  Store
	logger *slog.Logger
}

func NewDBLogger(store Store, logger *slog.Logger) *DBLogger {
	return &DBLogger{store: store, logger: logger}
}

func (l *DBLogger) Log(ctx context.Context, entry models.AuditLog) {
	if err := l.store.InsertAuditLog(ctx, entry); err != nil {
		l.logger.Error("audit_write_failed",
			"entity_type", string(entry.EntityType),
			"entity_id", entry.EntityID,
			"action", string(entry.Action),
			"error", err,
		)
	}
}

// MockLogger records entries in memory for tests.
type MockLogger struct {
	mu      sync.Mutex
	Entries []models.AuditLog
}

func (m *MockLogger) Log(_ context.Context, entry models.AuditLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
}

// ByAction filters the recorded entries.
func (m *MockLogger) ByAction(action models.AuditLogAction) []models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditLog
	for _, e := range m.Entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
