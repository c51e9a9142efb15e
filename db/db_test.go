package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect_Rebind(t *testing.T) {
	q := "UPDATE t SET a = ? WHERE b = ? AND c = ?"

	assert.Equal(t, q, MySQL.Rebind(q))
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, "UPDATE t SET a = $1 WHERE b = $2 AND c = $3", Postgres.Rebind(q))
}

func TestDialect_InsertIgnore(t *testing.T) {
	assert.Equal(t, "INSERT IGNORE INTO t (a, b) VALUES (?, ?)", MySQL.InsertIgnore("t", "a", "b"))
	assert.Equal(t, "INSERT OR IGNORE INTO t (a, b) VALUES (?, ?)", SQLite.InsertIgnore("t", "a", "b"))
	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2) ON CONFLICT DO NOTHING", Postgres.InsertIgnore("t", "a", "b"))
}

func TestDialect_Upsert(t *testing.T) {
	keys := []string{"k"}
	updates := []string{"v", "w"}

	assert.Equal(t,
		"INSERT INTO t (k, v, w) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v), w = VALUES(w)",
		MySQL.Upsert("t", keys, updates))
	assert.Equal(t,
		"INSERT INTO t (k, v, w) VALUES (?, ?, ?) ON CONFLICT (k) DO UPDATE SET v = excluded.v, w = excluded.w",
		SQLite.Upsert("t", keys, updates))
	assert.Equal(t,
		"INSERT INTO t (k, v, w) VALUES ($1, $2, $3) ON CONFLICT (k) DO UPDATE SET v = excluded.v, w = excluded.w",
		Postgres.Upsert("t", keys, updates))
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	_, err = DialectFor("mssql")
	assert.Error(t, err)
}

func TestMigrate_SQLiteIdempotent(t *testing.T) {
	conn, dialect, err := Open("sqlite", ":memory:", PoolOptions{})
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, conn, dialect))
	require.NoError(t, Migrate(ctx, conn, dialect))

	for _, table := range []string{"selection_storage", "negotiation_counters", "negotiation_logs"} {
		var name string
		err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestQueries_MySQLInlinesIndex(t *testing.T) {
	queries := MySQL.Queries()
	assert.Len(t, queries, 3)
	assert.Contains(t, queries[2], "INDEX idx_negotiation_logs_negotiation")
	assert.Len(t, SQLite.Queries(), 4)
}
