package database

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadMigrations_SortsByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"002_add_index.sql":       {Data: []byte("CREATE INDEX x ON t(a);")},
		"001_purchase_orders.sql": {Data: []byte("CREATE TABLE t (a INTEGER);")},
		"README.md":               {Data: []byte("ignored")},
	}

	migrations, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "purchase_orders", migrations[0].Name)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, "add_index", migrations[1].Name)
}

func TestLoadMigrations_Rejects(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{
			name: "no version prefix",
			fsys: fstest.MapFS{"schema.sql": {Data: []byte("")}},
		},
		{
			name: "zero version",
			fsys: fstest.MapFS{"000_init.sql": {Data: []byte("")}},
		},
		{
			name: "duplicate version",
			fsys: fstest.MapFS{
				"001_a.sql": {Data: []byte("")},
				"001_b.sql": {Data: []byte("")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMigrations(tt.fsys)
			assert.Error(t, err)
		})
	}
}

func TestRunMigrations_SkipsApplied(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	fsys := fstest.MapFS{
		"001_purchase_orders.sql": {Data: []byte("CREATE TABLE purchase_orders (id INTEGER);")},
		"002_lines.sql":           {Data: []byte("CREATE TABLE purchase_order_lines (id INTEGER);")},
	}
	loaded, err := LoadMigrations(fsys)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, name, checksum FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "name", "checksum"}).
			AddRow(1, "purchase_orders", loaded[0].Checksum))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE purchase_order_lines")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).
		WithArgs(2, "lines", loaded[1].Checksum).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	migrator := NewMigrator(Wrap(sqlDB, zap.NewNop()), zap.NewNop())
	applied, err := migrator.RunMigrations(context.Background(), fsys)

	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_DetectsEditedMigration(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	fsys := fstest.MapFS{
		"001_purchase_orders.sql": {Data: []byte("CREATE TABLE purchase_orders (id INTEGER, note TEXT);")},
	}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, name, checksum FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "name", "checksum"}).
			AddRow(1, "purchase_orders", "stale"))

	migrator := NewMigrator(Wrap(sqlDB, zap.NewNop()), zap.NewNop())
	applied, err := migrator.RunMigrations(context.Background(), fsys)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "changed after it was applied")
	assert.Equal(t, 0, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_RollsBackFailedMigration(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	fsys := fstest.MapFS{
		"001_broken.sql": {Data: []byte("CREATE TABLE oops (")},
	}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, name, checksum FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "name", "checksum"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE oops")).
		WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	migrator := NewMigrator(Wrap(sqlDB, zap.NewNop()), zap.NewNop())
	_, err = migrator.RunMigrations(context.Background(), fsys)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply migration 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_EmbeddedSchemaOnSQLite(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "po.db")}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"001_orders.sql": {Data: []byte("CREATE TABLE orders (id INTEGER PRIMARY KEY, status TEXT NOT NULL);")},
	}

	migrator := NewMigrator(db, zap.NewNop())
	applied, err := migrator.RunMigrations(context.Background(), fsys)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	applied, err = migrator.RunMigrations(context.Background(), fsys)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	recorded, err := migrator.Applied(context.Background())
	require.NoError(t, err)
	require.Contains(t, recorded, 1)
	assert.Equal(t, "orders", recorded[1].Name)
	assert.Len(t, recorded[1].Checksum, 64)
}

func TestNew_MemoryDatabase(t *testing.T) {
	db, err := New(Config{Path: MemoryPath, MaxOpenConns: 10}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{}, zap.NewNop())
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"file:data/po.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL",
		DSN(Config{Path: "data/po.db"}))
	assert.Equal(t,
		"file:data/po.db?_busy_timeout=250&_foreign_keys=on&_journal_mode=WAL",
		DSN(Config{Path: "data/po.db", BusyTimeout: 250 * time.Millisecond}))
}
