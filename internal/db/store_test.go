package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpen_ValidationErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		dbPath      string
		expectedErr string
	}{
		{"empty_path", "", "empty database path"},
		{"whitespace_path", "   ", "empty database path"},
		{"tabs_path", "\t\t", "empty database path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(ctx, tt.dbPath)
			assert.Nil(t, store)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestOpen_DirectoryCreation(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "deep", "test.db")

	store, err := Open(ctx, dbPath)
	assert.NoError(t, err)
	assert.NotNil(t, store)
	assert.DirExists(t, filepath.Dir(dbPath))
	assert.NoError(t, store.Close())
}

func TestOpen_FilePermissions(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(ctx, dbPath)
	assert.NoError(t, err)
	defer store.Close()

	info, err := os.Stat(dbPath)
	assert.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestOpen_ExistingFile(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "existing.db")

	store1, err := Open(ctx, dbPath)
	assert.NoError(t, err)
	assert.NoError(t, store1.Close())

	store2, err := Open(ctx, dbPath)
	assert.NoError(t, err)
	assert.NoError(t, store2.Close())
}

func TestClose_NilStore(t *testing.T) {
	var store *Store
	assert.NoError(t, store.Close())
}

func TestClose_NilDB(t *testing.T) {
	store := &Store{db: nil}
	assert.NoError(t, store.Close())
}

func TestDB_Getter(t *testing.T) {
	store := newTestDB(t)
	db := store.DB()
	assert.NotNil(t, db)
	assert.IsType(t, &sql.DB{}, db)
}

func TestMigrations(t *testing.T) {
	ctx := context.Background()
	store := newTestDB(t)

	expectedTables := []string{"search_index", "saved_queries"}
	for _, table := range expectedTables {
		var name string
		err := store.db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}

	var version int
	assert.NoError(t, store.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version))
	assert.Equal(t, 2, version)
}

func TestPragmas_Configuration(t *testing.T) {
	ctx := context.Background()
	store := newTestDB(t)

	var journalMode string
	assert.NoError(t, store.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var foreignKeys int
	assert.NoError(t, store.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)

	var syncMode string
	assert.NoError(t, store.db.QueryRowContext(ctx, "PRAGMA synchronous").Scan(&syncMode))
	assert.True(t, syncMode == "1" || syncMode == "NORMAL")
}

func TestDatabase_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "concurrent.db")

	store, err := Open(ctx, dbPath)
	assert.NoError(t, err)
	defer store.Close()

	// WAL mode allows a second connection to the same file.
	store2, err := Open(ctx, dbPath)
	assert.NoError(t, err)
	defer store2.Close()

	var version1, version2 int
	assert.NoError(t, store.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version1))
	assert.NoError(t, store2.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version2))
	assert.Equal(t, version1, version2)
}
