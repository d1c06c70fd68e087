// Package migrations applies the versioned schema changes embedded in the binary.
// Each adapter has its own SQL directory; versions are shared across adapters.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/suteetoe/thing-service/pkg/config"
	"go.uber.org/zap"
)

//go:embed sql
var migrationsFS embed.FS

// TableName is where applied versions are tracked
const TableName = "schema_migrations"

var migrationFile = regexp.MustCompile(`^(\d+)_(.+)\.up\.sql$`)

// Migration is one embedded schema change
type Migration struct {
	Version uint
	Name    string
	Applied bool
}

// Migrator runs the embedded migrations against one database
type Migrator struct {
	m       *migrate.Migrate
	adapter string
	log     *zap.Logger
}

// Open connects with database/sql using settings and returns a Migrator that
// owns the connection.
func Open(settings *config.DatabaseSettings, log *zap.Logger) (*Migrator, error) {
	driverName, err := sqlDriverName(settings.Adapter)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, settings.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	m, err := New(db, settings.Adapter, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// New wraps db. Closing the Migrator closes db.
func New(db *sql.DB, adapter string, log *zap.Logger) (*Migrator, error) {
	var (
		driver database.Driver
		err    error
	)
	switch adapter {
	case config.AdapterPostgres:
		driver, err = migratepostgres.WithInstance(db, &migratepostgres.Config{MigrationsTable: TableName})
	case config.AdapterMySQL:
		driver, err = migratemysql.WithInstance(db, &migratemysql.Config{MigrationsTable: TableName})
	case config.AdapterSQLite:
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: TableName})
	default:
		return nil, fmt.Errorf("unsupported database adapter: %s", adapter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	dir, _ := sourceDir(adapter)
	sourceDriver, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, adapter, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	m.Log = &migrateLogger{log: log}

	return &Migrator{m: m, adapter: adapter, log: log}, nil
}

// Up applies every pending migration
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Steps applies n pending migrations
func (mg *Migrator) Steps(n int) error {
	if n <= 0 {
		return fmt.Errorf("steps must be positive, got %d", n)
	}
	return mg.steps(n)
}

// Rollback reverts the last n applied migrations
func (mg *Migrator) Rollback(n int) error {
	if n <= 0 {
		return fmt.Errorf("steps must be positive, got %d", n)
	}
	return mg.steps(-n)
}

func (mg *Migrator) steps(n int) error {
	err := mg.m.Steps(n)
	var short migrate.ErrShortLimit
	switch {
	case err == nil, errors.Is(err, migrate.ErrNoChange), errors.As(err, &short):
		return nil
	case errors.Is(err, fs.ErrNotExist):
		// nothing left in that direction
		return nil
	default:
		return fmt.Errorf("failed to migrate %d steps: %w", n, err)
	}
}

// Version returns the current schema version; 0 means nothing applied
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Status lists every embedded migration and whether it has been applied
func (mg *Migrator) Status() ([]Migration, error) {
	all, err := Available(mg.adapter)
	if err != nil {
		return nil, err
	}
	current, _, err := mg.Version()
	if err != nil {
		return nil, err
	}
	for i := range all {
		all[i].Applied = all[i].Version <= current
	}
	return all, nil
}

// Close releases the source and database connections
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// Available lists the embedded migrations for adapter in version order
func Available(adapter string) ([]Migration, error) {
	dir, err := sourceDir(adapter)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		match := migrationFile.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		version, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad migration version in %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: uint(version), Name: match[2]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func sourceDir(adapter string) (string, error) {
	switch adapter {
	case config.AdapterPostgres:
		return path.Join("sql", "postgres"), nil
	case config.AdapterMySQL:
		return path.Join("sql", "mysql"), nil
	case config.AdapterSQLite:
		return path.Join("sql", "sqlite3"), nil
	}
	return "", fmt.Errorf("unsupported database adapter: %s", adapter)
}

func sqlDriverName(adapter string) (string, error) {
	switch adapter {
	case config.AdapterPostgres:
		return "postgres", nil
	case config.AdapterMySQL:
		return "mysql", nil
	case config.AdapterSQLite:
		return "sqlite3", nil
	}
	return "", fmt.Errorf("unsupported database adapter: %s", adapter)
}

type migrateLogger struct {
	log *zap.Logger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Info(fmt.Sprintf(format, v...))
}

func (l *migrateLogger) Verbose() bool {
	return false
}
