package migrations

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/thing-service/pkg/config"
	"go.uber.org/zap"
)

func openSQLite(t *testing.T) (*Migrator, string) {
	t.Helper()
	settings := &config.DatabaseSettings{
		Adapter:  config.AdapterSQLite,
		Database: filepath.Join(t.TempDir(), "migrate.sqlite3"),
	}
	m, err := Open(settings, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m, settings.Database
}

func tableExists(t *testing.T, path, table string) bool {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&count))
	return count > 0
}

func TestAvailable(t *testing.T) {
	for _, adapter := range []string{config.AdapterPostgres, config.AdapterMySQL, config.AdapterSQLite} {
		t.Run(adapter, func(t *testing.T) {
			all, err := Available(adapter)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, Migration{Version: 1, Name: "create_things"}, all[0])
			assert.Equal(t, Migration{Version: 2, Name: "create_users"}, all[1])
		})
	}

	_, err := Available("oracle")
	assert.Error(t, err)
}

func TestMigrator_UpAndRollback(t *testing.T) {
	m, path := openSQLite(t)

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, m.Up())
	require.NoError(t, m.Up(), "running up twice is a no-op")

	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.True(t, tableExists(t, path, "things"))
	assert.True(t, tableExists(t, path, "users"))
	assert.True(t, tableExists(t, path, TableName))

	require.NoError(t, m.Rollback(1))
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, tableExists(t, path, "users"))
	assert.True(t, tableExists(t, path, "things"))

	status, err := m.Status()
	require.NoError(t, err)
	assert.True(t, status[0].Applied)
	assert.False(t, status[1].Applied)
}

func TestMigrator_StepsForward(t *testing.T) {
	m, path := openSQLite(t)

	require.NoError(t, m.Steps(1))
	version, _, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, tableExists(t, path, "users"))

	require.NoError(t, m.Steps(5), "asking for more steps than exist applies the rest")
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestMigrator_RejectsNonPositiveSteps(t *testing.T) {
	m, _ := openSQLite(t)
	assert.Error(t, m.Steps(0))
	assert.Error(t, m.Rollback(-1))
}

func TestNew_UnsupportedAdapter(t *testing.T) {
	_, err := Open(&config.DatabaseSettings{Adapter: "oracle", Database: "x"}, zap.NewNop())
	assert.Error(t, err)
}
