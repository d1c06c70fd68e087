package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

const sampleDatabaseYAML = `
default: &default
  adapter: postgresql
  host: ${THINGS_TEST_DB_HOST:-localhost}
  username: things
  password: ${THINGS_TEST_DB_PASSWORD}
  pool: 10
  timeout: 5000

development:
  <<: *default
  database: things_development

test:
  <<: *default
  database: things_test
  pool: 2

sqlite:
  adapter: sqlite3
  database: db/test.sqlite3
  timeout: 2000

mysql:
  <<: *default
  adapter: mysql2
  database: things_mysql
  conn_max_lifetime: 30m
`

func writeDatabaseYAML(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "database.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadDatabaseSettings_MergesAnchors(t *testing.T) {
	t.Setenv("THINGS_TEST_DB_PASSWORD", "s3cret")
	path := writeDatabaseYAML(t, sampleDatabaseYAML)

	settings, err := LoadDatabaseSettings(path, "development", "")
	require.NoError(t, err)

	assert.Equal(t, AdapterPostgres, settings.Adapter)
	assert.Equal(t, "localhost", settings.Host)
	assert.Equal(t, 5432, settings.Port)
	assert.Equal(t, "things", settings.Username)
	assert.Equal(t, "s3cret", settings.Password)
	assert.Equal(t, "things_development", settings.Database)
	assert.Equal(t, 10, settings.Pool)
	assert.Equal(t, "development", settings.Environment)
}

func TestLoadDatabaseSettings_EnvironmentOverridesAnchor(t *testing.T) {
	path := writeDatabaseYAML(t, sampleDatabaseYAML)

	settings, err := LoadDatabaseSettings(path, "test", "")
	require.NoError(t, err)

	assert.Equal(t, "things_test", settings.Database)
	assert.Equal(t, 2, settings.Pool)
	assert.Equal(t, 2, settings.Idle)
}

func TestLoadDatabaseSettings_ExpandsDefaults(t *testing.T) {
	t.Setenv("THINGS_TEST_DB_HOST", "db.internal")
	path := writeDatabaseYAML(t, sampleDatabaseYAML)

	settings, err := LoadDatabaseSettings(path, "test", "")
	require.NoError(t, err)
	assert.Equal(t, "db.internal", settings.Host)
}

func TestLoadDatabaseSettings_UnknownEnvironment(t *testing.T) {
	path := writeDatabaseYAML(t, sampleDatabaseYAML)

	_, err := LoadDatabaseSettings(path, "staging", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"staging"`)
}

func TestLoadDatabaseSettings_UnsupportedAdapter(t *testing.T) {
	path := writeDatabaseYAML(t, "development:\n  adapter: oracle\n  database: x\n")

	_, err := LoadDatabaseSettings(path, "development", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported adapter")
}

func TestLoadDatabaseSettings_MissingFile(t *testing.T) {
	_, err := LoadDatabaseSettings(filepath.Join(t.TempDir(), "missing.yml"), "development", "")
	require.Error(t, err)
}

func TestLoadDatabaseSettings_DatabaseURLWithoutFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yml")

	settings, err := LoadDatabaseSettings(missing, "production", "postgres://app:pw@db.example.com:6543/things_prod?sslmode=require")
	require.NoError(t, err)

	assert.Equal(t, AdapterPostgres, settings.Adapter)
	assert.Equal(t, "db.example.com", settings.Host)
	assert.Equal(t, 6543, settings.Port)
	assert.Equal(t, "app", settings.Username)
	assert.Equal(t, "pw", settings.Password)
	assert.Equal(t, "things_prod", settings.Database)
	assert.Equal(t, "require", settings.SSLMode)
}

func TestLoadDatabaseSettings_DatabaseURLOverridesFile(t *testing.T) {
	path := writeDatabaseYAML(t, sampleDatabaseYAML)

	settings, err := LoadDatabaseSettings(path, "development", "sqlite3:db/override.sqlite3")
	require.NoError(t, err)

	assert.Equal(t, AdapterSQLite, settings.Adapter)
	assert.Equal(t, "db/override.sqlite3", settings.Database)
}

func TestDatabaseSettings_PostgresDSN(t *testing.T) {
	s := &DatabaseSettings{Adapter: "postgres", Host: "localhost", Username: "things", Password: "pa ss", Database: "things_dev", Timeout: 5000}
	require.NoError(t, s.normalize())

	assert.Equal(t, "host=localhost port=5432 user=things password='pa ss' dbname=things_dev sslmode=disable connect_timeout=5", s.DSN())
	assert.Equal(t, "host=localhost port=5432 user=things password='pa ss' dbname=postgres sslmode=disable connect_timeout=5", s.ServerDSN())
}

func TestDatabaseSettings_PostgresDSNOmitsEmptyPassword(t *testing.T) {
	s := &DatabaseSettings{Adapter: AdapterPostgres, Username: "things", Database: "things_dev"}
	require.NoError(t, s.normalize())

	assert.NotContains(t, s.DSN(), "password=")
}

func TestDatabaseSettings_MySQLDSN(t *testing.T) {
	path := writeDatabaseYAML(t, sampleDatabaseYAML)
	settings, err := LoadDatabaseSettings(path, "mysql", "")
	require.NoError(t, err)

	assert.Equal(t, AdapterMySQL, settings.Adapter)
	assert.Equal(t, 3306, settings.Port)
	assert.Equal(t, 30*time.Minute, settings.ConnMaxLifetime)
	assert.Contains(t, settings.DSN(), "things@tcp(localhost:3306)/things_mysql")
	assert.Contains(t, settings.DSN(), "charset=utf8mb4")
	assert.Contains(t, settings.DSN(), "parseTime=true")
	assert.Contains(t, settings.ServerDSN(), "tcp(localhost:3306)/?")
}

func TestDatabaseSettings_SQLiteDSN(t *testing.T) {
	path := writeDatabaseYAML(t, sampleDatabaseYAML)
	settings, err := LoadDatabaseSettings(path, "sqlite", "")
	require.NoError(t, err)

	assert.Equal(t, "db/test.sqlite3?_busy_timeout=2000", settings.DSN())
	assert.Equal(t, "sqlite3:db/test.sqlite3", settings.String())
}

func TestDatabaseSettings_GormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, (&DatabaseSettings{Environment: "development"}).GormLogLevel())
	assert.Equal(t, logger.Error, (&DatabaseSettings{Environment: "production"}).GormLogLevel())
	assert.Equal(t, logger.Silent, (&DatabaseSettings{Environment: "test", LogLevel: "silent"}).GormLogLevel())
}

func TestExpandEnv_EscapedDollar(t *testing.T) {
	assert.Equal(t, "pa$word", expandEnv("pa$$word"))
	assert.Equal(t, "${NAME}", expandEnv("$${NAME}"))
}

func TestExpandEnv_OnlyBracedReferences(t *testing.T) {
	t.Setenv("THINGS_TEST_DB_USER", "things")
	t.Setenv("word1", "expanded")

	assert.Equal(t, "things", expandEnv("${THINGS_TEST_DB_USER}"))
	assert.Equal(t, "fallback", expandEnv("${THINGS_TEST_UNSET_VAR:-fallback}"))
	for _, literal := range []string{"pa$word1", "u$1x", "a$@b", "$*", "cost $5", "${not closed"} {
		assert.Equal(t, literal, expandEnv(literal))
	}
}

func TestLoadDatabaseSettings_LiteralDollarInValues(t *testing.T) {
	path := writeDatabaseYAML(t, `
test:
  adapter: postgresql
  database: things_test
  username: u$1x
  password: pa$word1
`)
	settings, err := LoadDatabaseSettings(path, "test", "")
	require.NoError(t, err)
	assert.Equal(t, "u$1x", settings.Username)
	assert.Equal(t, "pa$word1", settings.Password)
}

func TestShippedDatabaseYAML(t *testing.T) {
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_POOL", "")
	path := filepath.Join("..", "..", "config", "database.yml")

	dev, err := LoadDatabaseSettings(path, "development", "")
	require.NoError(t, err)
	assert.Equal(t, AdapterPostgres, dev.Adapter)
	assert.Equal(t, "things_development", dev.Database)
	assert.Equal(t, 5, dev.Pool)

	test, err := LoadDatabaseSettings(path, "test", "")
	require.NoError(t, err)
	assert.Equal(t, "things_test", test.Database)
	assert.Equal(t, logger.Silent, test.GormLogLevel())

	local, err := LoadDatabaseSettings(path, "local", "")
	require.NoError(t, err)
	assert.Equal(t, AdapterSQLite, local.Adapter)
}
