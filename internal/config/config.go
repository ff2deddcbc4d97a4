// Package config loads the rowmap command configuration from a YAML file
// with environment overrides. Secrets come from the environment only.
package config

import (
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/koustreak/rowmap/internal/database"
	"github.com/koustreak/rowmap/internal/errs"
	"github.com/koustreak/rowmap/internal/filestore"
	"github.com/koustreak/rowmap/internal/logger"
)

// Config is the full command configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Store    StoreConfig    `yaml:"store"`
	Schema   SchemaConfig   `yaml:"schema"`
	Server   ServerConfig   `yaml:"server"`
}

// LogConfig mirrors logger.Config.
type LogConfig struct {
	Level  string `yaml:"level" env:"ROWMAP_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"ROWMAP_LOG_FORMAT" env-default:"json"`
}

// DatabaseConfig selects and tunes the SQL backend. Leaving both DSN and
// Host empty disables the database.
type DatabaseConfig struct {
	Driver         string        `yaml:"driver" env:"ROWMAP_DB_DRIVER" env-default:"postgres"`
	DSN            string        `yaml:"-" env:"ROWMAP_DB_DSN"`
	Host           string        `yaml:"host" env:"ROWMAP_DB_HOST"`
	Port           int           `yaml:"port" env:"ROWMAP_DB_PORT"`
	User           string        `yaml:"user" env:"ROWMAP_DB_USER"`
	Password       string        `yaml:"-" env:"ROWMAP_DB_PASSWORD"`
	Name           string        `yaml:"name" env:"ROWMAP_DB_NAME"`
	SSLMode        string        `yaml:"ssl_mode" env:"ROWMAP_DB_SSLMODE" env-default:"disable"`
	MaxConns       int32         `yaml:"max_conns" env:"ROWMAP_DB_MAX_CONNS" env-default:"10"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"ROWMAP_DB_CONNECT_TIMEOUT" env-default:"10s"`
}

// StoreConfig points at the object store holding schema documents.
// Leaving Endpoint empty disables it.
type StoreConfig struct {
	Endpoint  string `yaml:"endpoint" env:"ROWMAP_STORE_ENDPOINT"`
	AccessKey string `yaml:"-" env:"ROWMAP_STORE_ACCESS_KEY"`
	SecretKey string `yaml:"-" env:"ROWMAP_STORE_SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" env:"ROWMAP_STORE_USE_SSL" env-default:"false"`
	Region    string `yaml:"region" env:"ROWMAP_STORE_REGION"`
	Bucket    string `yaml:"bucket" env:"ROWMAP_STORE_BUCKET" env-default:"schemas"`
	Prefix    string `yaml:"prefix" env:"ROWMAP_STORE_PREFIX"`
}

// SchemaConfig says where local schema documents live.
type SchemaConfig struct {
	Dir string `yaml:"dir" env:"ROWMAP_SCHEMA_DIR" env-default:"schemas"`
}

// ServerConfig configures the metadata API.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"ROWMAP_ADDR" env-default:"127.0.0.1:8080"`
}

// Load reads path when it is non-empty, then applies the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read configuration", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch database.Driver(strings.ToLower(c.Database.Driver)) {
	case database.DriverPostgres, database.DriverMySQL:
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "database.driver: unsupported driver %q", c.Database.Driver)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "log.format: must be json or console, got %q", c.Log.Format)
	}
	if c.Store.Endpoint != "" && (c.Store.AccessKey == "" || c.Store.SecretKey == "") {
		return errs.New(errs.ErrKindInvalidInput, "store: ROWMAP_STORE_ACCESS_KEY and ROWMAP_STORE_SECRET_KEY are required with an endpoint")
	}
	return nil
}

// Logger returns the logger configuration.
func (c *Config) Logger() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	return cfg
}

// HasDatabase reports whether a database is configured.
func (c *Config) HasDatabase() bool {
	return c.Database.DSN != "" || c.Database.Host != ""
}

// DB returns the database connection settings.
func (c *Config) DB() *database.Config {
	d := c.Database
	cfg := database.DefaultConfig(d.DSN)
	cfg.Driver = database.Driver(strings.ToLower(d.Driver))
	cfg.Host = d.Host
	cfg.Port = d.Port
	cfg.User = d.User
	cfg.Password = d.Password
	cfg.Database = d.Name
	cfg.SSLMode = d.SSLMode
	if d.MaxConns > 0 {
		cfg.MaxConns = d.MaxConns
		cfg.MinConns = min(cfg.MinConns, d.MaxConns)
	}
	if d.ConnectTimeout > 0 {
		cfg.ConnectTimeout = d.ConnectTimeout
	}
	return cfg
}

// HasStore reports whether an object store is configured.
func (c *Config) HasStore() bool {
	return c.Store.Endpoint != ""
}

// FileStore returns the object store settings.
func (c *Config) FileStore() *filestore.Config {
	s := c.Store
	cfg := filestore.DefaultConfig(s.Endpoint, s.AccessKey, s.SecretKey)
	cfg.UseSSL = s.UseSSL
	cfg.Region = s.Region
	cfg.Prefix = s.Prefix
	if s.Bucket != "" {
		cfg.Bucket = s.Bucket
	}
	return cfg
}
