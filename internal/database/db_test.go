package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuildConnectionString(t *testing.T) {
	ledger := buildConnectionString("/data/history.db", ProfileLedger)
	assert.Contains(t, ledger, "/data/history.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, ledger, "synchronous(FULL)")

	cache := buildConnectionString("/data/cache.db", ProfileCache)
	assert.Contains(t, cache, "synchronous(OFF)")

	memory := buildConnectionString("file:test?mode=memory", ProfileStandard)
	assert.Contains(t, memory, "file:test?mode=memory&_pragma=journal_mode(WAL)")
	assert.Contains(t, memory, "synchronous(NORMAL)")
}

func TestMigrate_CreatesTables(t *testing.T) {
	tests := []struct {
		name    string
		profile DatabaseProfile
		tables  []string
	}{
		{NamePortfolio, ProfileStandard, []string{"portfolio_assets", "portfolio_cash", "portfolio_settings"}},
		{NameHistory, ProfileLedger, []string{"rebalance_runs"}},
		{NameCache, ProfileCache, []string{"exchangerate", "current_prices"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t, tt.name, tt.profile)
			require.NoError(t, db.Migrate())
			// Applying twice is harmless
			require.NoError(t, db.Migrate())

			for _, table := range tt.tables {
				var found string
				err := db.Conn().QueryRow(
					"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
				).Scan(&found)
				require.NoError(t, err, "table %s", table)
				assert.Equal(t, table, found)
			}
		})
	}
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := newTestDB(t, "scratch", ProfileStandard)
	assert.NoError(t, db.Migrate())
}

func TestSchema_Unknown(t *testing.T) {
	_, err := Schema("nope")
	assert.Error(t, err)
}

func TestWithTransaction(t *testing.T) {
	db := newTestDB(t, "scratch", ProfileStandard)
	_, err := db.Conn().Exec("CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO t (v) VALUES (1)")
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO t (v) VALUES (2)"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("kaboom")
	})
	assert.ErrorContains(t, err, "panic in transaction")

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM t").Scan(&count))
	assert.Equal(t, 1, count)

	assert.Error(t, WithTransaction(nil, func(tx *sql.Tx) error { return nil }))
}

func TestHealthCheckAndCheckpoint(t *testing.T) {
	db := newTestDB(t, NamePortfolio, ProfileStandard)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, db.WALCheckpoint(""))
	assert.Error(t, db.WALCheckpoint("DROP TABLE"))
}
