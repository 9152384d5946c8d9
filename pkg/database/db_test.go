package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.db")
	db, err := Open(Config{Driver: DriverSQLite, DSN: path})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db))
	// idempotent
	require.NoError(t, Migrate(db))

	var tables []string
	require.NoError(t, db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`))
	assert.Equal(t, []string{"finished_raters", "ratings", "rounds", "songs", "users"}, tables)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("RATE_DB_DRIVER", "postgres")
	t.Setenv("RATE_DB_DSN", "postgres://localhost/rate")
	assert.Equal(t, Config{Driver: "postgres", DSN: "postgres://localhost/rate"}, DefaultConfig())

	t.Setenv("RATE_DB_DSN", "")
	t.Setenv("RATE_DB_DRIVER", "")
	cfg := DefaultConfig()
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, "data.db", filepath.Base(cfg.DSN))
}
