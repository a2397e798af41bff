package clientdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/aristath/rebalancer/internal/database"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := database.Schema(database.NameCache)
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	return db
}

func insertEntry(t *testing.T, db *sql.DB, table Table, key string, expiresAt int64) {
	t.Helper()
	col, err := keyColumn(table)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO "+string(table)+" ("+col+", data, expires_at) VALUES (?, ?, ?)", key, `{"v":1}`, expiresAt)
	require.NoError(t, err)
}

type cachedRate struct {
	Rate float64 `json:"rate"`
}

func TestStoreAndGetIfFresh(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, TableExchangeRates, "USD:CAD", cachedRate{Rate: 1.35}, time.Hour))

	data, err := repo.GetIfFresh(ctx, TableExchangeRates, "USD:CAD")
	require.NoError(t, err)
	require.NotNil(t, data)

	var got cachedRate
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 1.35, got.Rate)
}

func TestStoreReplacesExistingEntry(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, TableCurrentPrices, "ITOT", cachedRate{Rate: 1}, time.Hour))
	require.NoError(t, repo.Store(ctx, TableCurrentPrices, "ITOT", cachedRate{Rate: 2}, time.Hour))

	data, err := repo.Get(ctx, TableCurrentPrices, "ITOT")
	require.NoError(t, err)
	assert.JSONEq(t, `{"rate":2}`, string(data))
}

func TestExpiredEntryIsStaleButReadable(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	insertEntry(t, db, TableExchangeRates, "GBP:CAD", time.Now().Add(-time.Minute).Unix())

	fresh, err := repo.GetIfFresh(ctx, TableExchangeRates, "GBP:CAD")
	require.NoError(t, err)
	assert.Nil(t, fresh)

	stale, err := repo.Get(ctx, TableExchangeRates, "GBP:CAD")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(stale))
}

func TestMissingEntry(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	data, err := repo.GetIfFresh(ctx, TableCurrentPrices, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = repo.Get(ctx, TableCurrentPrices, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestInvalidTableIsRejected(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	bad := Table("exchangerate; DROP TABLE exchangerate")

	assert.Error(t, repo.Store(ctx, bad, "k", 1, time.Hour))
	_, err := repo.Get(ctx, bad, "k")
	assert.Error(t, err)
	_, err = repo.GetIfFresh(ctx, bad, "k")
	assert.Error(t, err)
	assert.Error(t, repo.Delete(ctx, bad, "k"))
	_, err = repo.DeleteExpired(ctx, bad)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, TableCurrentPrices, "IEFA", cachedRate{}, time.Hour))
	require.NoError(t, repo.Delete(ctx, TableCurrentPrices, "IEFA"))

	data, err := repo.Get(ctx, TableCurrentPrices, "IEFA")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestDeleteAllExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	past := time.Now().Add(-time.Hour).Unix()
	future := time.Now().Add(time.Hour).Unix()
	insertEntry(t, db, TableExchangeRates, "USD:CAD", past)
	insertEntry(t, db, TableExchangeRates, "GBP:CAD", future)
	insertEntry(t, db, TableCurrentPrices, "ITOT", past)
	insertEntry(t, db, TableCurrentPrices, "IEMG", past)

	results, err := repo.DeleteAllExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), results[TableExchangeRates])
	assert.Equal(t, int64(2), results[TableCurrentPrices])

	var remaining int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM exchangerate").Scan(&remaining))
	assert.Equal(t, 1, remaining)
}
