package store

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"gorm.io/gorm"
)

// Module owns the database connection shared by the other modules.
type Module struct {
	db     *gorm.DB
	store  *Store
	dbPath string
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a store module backed by the SQLite file at dbPath.
func NewModule(dbPath string) *Module {
	return &Module{dbPath: dbPath}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Start opens and migrates the database and clears presence left over
// from a previous run.
func (m *Module) Start(ctx context.Context) error {
	db, err := Open(m.dbPath)
	if err != nil {
		return err
	}
	st := New(db)
	reset, err := st.ResetPresence(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset presence: %w", err)
	}
	m.db = db
	m.store = st
	log.Printf("[store] Module started (database: %s, stale online users: %d)", m.dbPath, reset)
	return nil
}

// Stop closes the database.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[store] Module stopped")
	return nil
}

// Health pings the database.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.store == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}
	if err := m.store.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.dbPath,
		},
	}
}

// Store returns the store. It is nil until Start has run.
func (m *Module) Store() *Store {
	return m.store
}
