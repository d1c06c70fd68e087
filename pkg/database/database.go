package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/suteetoe/thing-service/pkg/config"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the database described by settings and applies the pool settings
func Open(settings *config.DatabaseSettings, log *zap.Logger) (*gorm.DB, error) {
	db, err := open(settings, settings.DSN(), settings.GormLogLevel())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database object: %w", err)
	}

	sqlDB.SetMaxIdleConns(settings.Idle)
	sqlDB.SetMaxOpenConns(settings.Pool)
	sqlDB.SetConnMaxLifetime(settings.ConnMaxLifetime)

	log.Info("Database connected",
		zap.String("database", settings.String()),
		zap.Int("pool", settings.Pool))

	return db, nil
}

func open(settings *config.DatabaseSettings, dsn string, level logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch settings.Adapter {
	case config.AdapterPostgres:
		dialector = postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true, // Disables implicit prepared statement usage
		})
	case config.AdapterMySQL:
		dialector = mysql.Open(dsn)
	case config.AdapterSQLite:
		if err := ensureDir(settings.Database); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database adapter: %s", settings.Adapter)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", settings.String(), err)
	}
	return db, nil
}

// Create creates the configured database. It reports false when the database
// already exists.
func Create(settings *config.DatabaseSettings) (bool, error) {
	if settings.Adapter == config.AdapterSQLite {
		return createSQLite(settings.Database)
	}

	db, err := open(settings, settings.ServerDSN(), logger.Silent)
	if err != nil {
		return false, err
	}
	defer Close(db)

	exists, err := databaseExists(db, settings)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	var stmt string
	switch settings.Adapter {
	case config.AdapterPostgres:
		stmt = fmt.Sprintf("CREATE DATABASE %s", quotePostgres(settings.Database))
	case config.AdapterMySQL:
		stmt = fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s CHARACTER SET %s", quoteMySQL(settings.Database), settings.Encoding)
	}
	if err := db.Exec(stmt).Error; err != nil {
		return false, fmt.Errorf("failed to create database '%s': %w", settings.Database, err)
	}
	return true, nil
}

// Drop removes the configured database. Missing databases are not an error.
func Drop(settings *config.DatabaseSettings) error {
	if settings.Adapter == config.AdapterSQLite {
		if err := os.Remove(settings.Database); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove database file '%s': %w", settings.Database, err)
		}
		return nil
	}

	db, err := open(settings, settings.ServerDSN(), logger.Silent)
	if err != nil {
		return err
	}
	defer Close(db)

	var stmt string
	switch settings.Adapter {
	case config.AdapterPostgres:
		stmt = fmt.Sprintf("DROP DATABASE IF EXISTS %s", quotePostgres(settings.Database))
	case config.AdapterMySQL:
		stmt = fmt.Sprintf("DROP DATABASE IF EXISTS %s", quoteMySQL(settings.Database))
	}
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to drop database '%s': %w", settings.Database, err)
	}
	return nil
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

// Ping checks the connection is alive
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func databaseExists(db *gorm.DB, settings *config.DatabaseSettings) (bool, error) {
	var count int64
	var err error
	switch settings.Adapter {
	case config.AdapterPostgres:
		err = db.Raw("SELECT count(*) FROM pg_database WHERE datname = ?", settings.Database).Scan(&count).Error
	case config.AdapterMySQL:
		err = db.Raw("SELECT count(*) FROM information_schema.schemata WHERE schema_name = ?", settings.Database).Scan(&count).Error
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up database '%s': %w", settings.Database, err)
	}
	return count > 0, nil
}

func createSQLite(path string) (bool, error) {
	if err := ensureDir(path); err != nil {
		return false, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create database file '%s': %w", path, err)
	}
	return true, f.Close()
}

func ensureDir(path string) error {
	if path == "" || strings.HasPrefix(path, ":memory:") || strings.HasPrefix(path, "file:") {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory '%s': %w", dir, err)
		}
	}
	return nil
}

func quotePostgres(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteMySQL(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
