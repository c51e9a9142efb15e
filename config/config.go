package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application-level configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        string `yaml:"port"`
	AllowOrigin string `yaml:"allow_origin"`

	// IdleEviction drops in-memory negotiations and selections unused for this
	// long. Zero keeps them until restart.
	IdleEviction time.Duration `yaml:"idle_eviction"`
}

// DatabaseConfig configures the SQL database behind the counter ledger,
// negotiation log and selection storage.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql, postgres, sqlite
	DSN      string `yaml:"dsn"`    // overrides the MySQL fields when set
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Name     string `yaml:"name"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// APIConfig points at the external Khabiteq REST API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // sql, file, memory
	Path    string `yaml:"path"`    // file backend root
}

type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file or env overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			AllowOrigin:  "*",
			IdleEviction: 30 * time.Minute,
		},
		Database: DatabaseConfig{
			Driver:          "mysql",
			User:            "user",
			Password:        "password",
			Host:            "tcp(127.0.0.1:3306)",
			Name:            "khabiteq_db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		API: APIConfig{
			BaseURL: "http://localhost:4000/api",
			Timeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Backend: "sql",
			Path:    ".khabiteq/storage",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path (if any) on top of the defaults and then
// applies environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.IdleEviction = getEnvDuration("IDLE_EVICTION", c.Server.IdleEviction)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DATABASE_URL", c.Database.DSN)
	c.Database.User = getEnv("MYSQL_USER", c.Database.User)
	c.Database.Password = getEnv("MYSQL_PWD", c.Database.Password)
	c.Database.Host = getEnv("MYSQL_HOST", c.Database.Host)
	c.Database.Name = getEnv("MYSQL_DATABASE", c.Database.Name)
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)

	c.API.BaseURL = getEnv("KHABITEQ_API_URL", c.API.BaseURL)
	c.API.Timeout = getEnvDuration("KHABITEQ_API_TIMEOUT", c.API.Timeout)

	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.Path = getEnv("STORAGE_PATH", c.Storage.Path)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Storage.Backend {
	case "sql", "memory":
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the file backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base_url is required")
	}
	return nil
}

// DataSourceName returns the DSN handed to sql.Open. For MySQL without an
// explicit DSN it is assembled from the individual fields.
func (d DatabaseConfig) DataSourceName() string {
	if d.DSN != "" {
		return d.DSN
	}
	if d.Driver != "mysql" {
		return ""
	}
	return fmt.Sprintf("%s:%s@%s/%s?parseTime=true&loc=Local", d.User, d.Password, d.Host, d.Name)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
