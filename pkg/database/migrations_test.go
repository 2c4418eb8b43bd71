package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db"), MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_second.sql": {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"001_first.sql":  {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"README.md":      {Data: []byte("ignored")},
	}

	migrations, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, 2, migrations[1].Version)
}

func TestLoadMigrations_Invalid(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{"initial.sql": {Data: []byte("SELECT 1;")}})
	assert.Error(t, err)

	_, err = LoadMigrations(fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"1_b.sql":   {Data: []byte("SELECT 1;")},
	})
	assert.ErrorContains(t, err, "duplicate migration version 1")
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())
	fsys := fstest.MapFS{
		"001_sections.sql": {Data: []byte("CREATE TABLE sections (id INTEGER PRIMARY KEY, name TEXT);")},
	}

	require.NoError(t, m.RunMigrations(fsys))
	require.NoError(t, m.RunMigrations(fsys))

	applied, err := m.AppliedVersions()
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: true}, applied)

	_, err = db.Exec("INSERT INTO sections (name) VALUES ('Cutting')")
	assert.NoError(t, err)
}

func TestRunMigrations_FailureRollsBack(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	err := m.RunMigrations(fstest.MapFS{
		"001_broken.sql": {Data: []byte("CREATE TABLE broken (;")},
	})
	require.Error(t, err)

	applied, err := m.AppliedVersions()
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestDSN(t *testing.T) {
	dsn := DSN(Config{Path: "data/receipts.db"})
	assert.Contains(t, dsn, "file:data/receipts.db?")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "_foreign_keys=on")
	assert.Contains(t, dsn, "_busy_timeout=5000")
}
