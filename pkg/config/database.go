package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm/logger"
)

// Supported database adapters. Names follow database.yml conventions.
const (
	AdapterPostgres = "postgresql"
	AdapterMySQL    = "mysql2"
	AdapterSQLite   = "sqlite3"
)

var adapterAliases = map[string]string{
	"postgresql": AdapterPostgres,
	"postgres":   AdapterPostgres,
	"pgsql":      AdapterPostgres,
	"mysql2":     AdapterMySQL,
	"mysql":      AdapterMySQL,
	"sqlite3":    AdapterSQLite,
	"sqlite":     AdapterSQLite,
}

// DatabaseSettings is one environment section of database.yml
type DatabaseSettings struct {
	Environment     string        `yaml:"-"`
	Adapter         string        `yaml:"adapter"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	Encoding        string        `yaml:"encoding"`
	Pool            int           `yaml:"pool"`
	Idle            int           `yaml:"idle"`
	Timeout         int           `yaml:"timeout"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	LogLevel        string        `yaml:"log_level"`
}

// LoadDatabaseSettings reads the section for env from the YAML file at path.
// ${VAR} and ${VAR:-default} references are expanded before parsing.
// A non-empty databaseURL is merged over the file settings; when it is set the
// file may be absent.
func LoadDatabaseSettings(path, env, databaseURL string) (*DatabaseSettings, error) {
	settings := &DatabaseSettings{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		sections, err := ParseDatabaseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		section, ok := sections[env]
		if !ok {
			if databaseURL == "" {
				return nil, fmt.Errorf("environment %q is not configured in %s", env, path)
			}
		} else {
			settings = section
		}
	case errors.Is(err, os.ErrNotExist) && databaseURL != "":
	default:
		return nil, fmt.Errorf("failed to read database config: %w", err)
	}

	if databaseURL != "" {
		if err := settings.applyURL(databaseURL); err != nil {
			return nil, err
		}
	}

	settings.Environment = env
	if err := settings.normalize(); err != nil {
		return nil, fmt.Errorf("invalid database config for %q: %w", env, err)
	}

	return settings, nil
}

// ParseDatabaseYAML decodes every environment section of a database.yml document
func ParseDatabaseYAML(data []byte) (map[string]*DatabaseSettings, error) {
	expanded := expandEnv(string(data))

	sections := map[string]*DatabaseSettings{}
	if err := yaml.Unmarshal([]byte(expanded), &sections); err != nil {
		return nil, err
	}
	for env, section := range sections {
		if section == nil {
			sections[env] = &DatabaseSettings{}
			continue
		}
		section.Environment = env
	}
	return sections, nil
}

var envReference = regexp.MustCompile(`\$\$|\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*)?\}`)

// expandEnv resolves ${VAR} and ${VAR:-default} and turns "$$" into "$".
// Any other "$" is kept as written.
func expandEnv(text string) string {
	return envReference.ReplaceAllStringFunc(text, func(ref string) string {
		if ref == "$$" {
			return "$"
		}
		match := envReference.FindStringSubmatch(ref)
		key, fallback := match[1], strings.TrimPrefix(match[2], ":-")
		hasDefault := match[2] != ""
		if value, ok := os.LookupEnv(key); ok && (value != "" || !hasDefault) {
			return value
		}
		return fallback
	})
}

func (s *DatabaseSettings) applyURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	adapter, ok := adapterAliases[u.Scheme]
	if !ok {
		return fmt.Errorf("unsupported DATABASE_URL scheme %q", u.Scheme)
	}
	s.Adapter = adapter

	if adapter == AdapterSQLite {
		// sqlite3:db/dev.sqlite3 or sqlite3:///abs/path.sqlite3
		if u.Opaque != "" {
			s.Database = u.Opaque
		} else {
			s.Database = u.Path
		}
		return nil
	}

	if host := u.Hostname(); host != "" {
		s.Host = host
	}
	if port := u.Port(); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid DATABASE_URL port %q: %w", port, err)
		}
		s.Port = p
	}
	if u.User != nil {
		s.Username = u.User.Username()
		if password, ok := u.User.Password(); ok {
			s.Password = password
		}
	}
	if name := strings.TrimPrefix(u.Path, "/"); name != "" {
		s.Database = name
	}

	query := u.Query()
	if v := query.Get("sslmode"); v != "" {
		s.SSLMode = v
	}
	if v := query.Get("pool"); v != "" {
		if pool, err := strconv.Atoi(v); err == nil {
			s.Pool = pool
		}
	}
	if v := query.Get("encoding"); v != "" {
		s.Encoding = v
	}

	return nil
}

func (s *DatabaseSettings) normalize() error {
	adapter, ok := adapterAliases[strings.ToLower(s.Adapter)]
	if !ok {
		if s.Adapter == "" {
			return errors.New("adapter is required")
		}
		return fmt.Errorf("unsupported adapter %q", s.Adapter)
	}
	s.Adapter = adapter

	if s.Database == "" {
		return errors.New("database is required")
	}
	if s.Pool <= 0 {
		s.Pool = 5
	}
	if s.Idle <= 0 || s.Idle > s.Pool {
		s.Idle = s.Pool
	}
	if s.ConnMaxLifetime <= 0 {
		s.ConnMaxLifetime = time.Hour
	}

	switch s.Adapter {
	case AdapterPostgres:
		if s.Host == "" {
			s.Host = "localhost"
		}
		if s.Port == 0 {
			s.Port = 5432
		}
		if s.SSLMode == "" {
			s.SSLMode = "disable"
		}
	case AdapterMySQL:
		if s.Host == "" {
			s.Host = "localhost"
		}
		if s.Port == 0 {
			s.Port = 3306
		}
		if s.Encoding == "" {
			s.Encoding = "utf8mb4"
		}
	}
	return nil
}

// DSN returns the driver connection string for the configured database
func (s *DatabaseSettings) DSN() string {
	return s.dsn(s.Database)
}

// ServerDSN returns a connection string that does not select the application
// database. It is used to create and drop it.
func (s *DatabaseSettings) ServerDSN() string {
	switch s.Adapter {
	case AdapterPostgres:
		return s.dsn("postgres")
	case AdapterMySQL:
		return s.dsn("")
	default:
		return s.DSN()
	}
}

func (s *DatabaseSettings) dsn(database string) string {
	switch s.Adapter {
	case AdapterPostgres:
		parts := []string{
			"host=" + quoteDSNValue(s.Host),
			"port=" + strconv.Itoa(s.Port),
		}
		if s.Username != "" {
			parts = append(parts, "user="+quoteDSNValue(s.Username))
		}
		if s.Password != "" {
			parts = append(parts, "password="+quoteDSNValue(s.Password))
		}
		if database != "" {
			parts = append(parts, "dbname="+quoteDSNValue(database))
		}
		parts = append(parts, "sslmode="+quoteDSNValue(s.SSLMode))
		if s.Timeout > 0 {
			parts = append(parts, "connect_timeout="+strconv.Itoa(max(1, s.Timeout/1000)))
		}
		return strings.Join(parts, " ")
	case AdapterMySQL:
		cfg := mysql.NewConfig()
		cfg.User = s.Username
		cfg.Passwd = s.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
		cfg.DBName = database
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		cfg.Params = map[string]string{"charset": s.Encoding}
		if s.Timeout > 0 {
			cfg.Timeout = time.Duration(s.Timeout) * time.Millisecond
		}
		return cfg.FormatDSN()
	case AdapterSQLite:
		if s.Timeout > 0 {
			return fmt.Sprintf("%s?_busy_timeout=%d", database, s.Timeout)
		}
		return database
	}
	return ""
}

// GormLogLevel maps log_level to the gorm logger level. Development defaults
// to info, everything else to error.
func (s *DatabaseSettings) GormLogLevel() logger.LogLevel {
	defaultLevel := logger.Error
	if s.Environment == "development" {
		defaultLevel = logger.Info
	}
	return parseLogLevel(s.LogLevel, defaultLevel)
}

// String describes the settings without credentials
func (s *DatabaseSettings) String() string {
	if s.Adapter == AdapterSQLite {
		return fmt.Sprintf("%s:%s", s.Adapter, s.Database)
	}
	return fmt.Sprintf("%s://%s:%d/%s", s.Adapter, s.Host, s.Port, s.Database)
}

func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
