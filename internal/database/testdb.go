package database

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"shopilent/internal/config"
)

var testDBSeq atomic.Int64

// OpenTest opens a migrated in-memory SQLite database private to t.
func OpenTest(t testing.TB) *DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, testDBSeq.Add(1))

	db, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: dsn, AutoMigrate: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
