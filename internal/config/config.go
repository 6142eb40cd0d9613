// Package config handles application configuration loading. Values are
// layered, highest precedence last: built-in defaults, an optional YAML
// file, an optional .env file and DOCPRESS_ environment variables, where
// "__" separates nested keys (DOCPRESS_DATABASE__HOST -> database.host).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// EnvPrefix is the prefix of configuration environment variables.
const EnvPrefix = "DOCPRESS_"

const defaultPassword = "changeme"

// Server holds the ops HTTP server settings.
type Server struct {
	Host string `koanf:"host"`
	Port string `koanf:"port" validate:"required,numeric"`
	Env  string `koanf:"env" validate:"oneof=development production testing"`
}

// Database holds the PostgreSQL connection settings.
type Database struct {
	Host     string `koanf:"host" validate:"required"`
	Port     string `koanf:"port" validate:"required,numeric"`
	User     string `koanf:"user" validate:"required"`
	Password string `koanf:"password"`
	Name     string `koanf:"name" validate:"required"`
	MaxOpen  int    `koanf:"max_open" validate:"gte=0"`
	MaxIdle  int    `koanf:"max_idle" validate:"gte=0"`
}

// Valkey holds the read cache settings.
type Valkey struct {
	Enabled  bool          `koanf:"enabled"`
	Host     string        `koanf:"host" validate:"required_if=Enabled true"`
	Port     string        `koanf:"port" validate:"required_if=Enabled true"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db" validate:"gte=0,lte=15"`
	TTL      time.Duration `koanf:"ttl" validate:"gte=0"`
}

// Schema points at the content type definitions.
type Schema struct {
	Dir string `koanf:"dir" validate:"required"`
}

// I18n holds the locale settings.
type I18n struct {
	DefaultLocale string   `koanf:"default_locale" validate:"required"`
	Locales       []string `koanf:"locales"`
}

// Documents holds the document service policies.
type Documents struct {
	AutoCreateLocale      bool `koanf:"auto_create_locale"`
	AllowMissingRelations bool `koanf:"allow_missing_relations"`
}

// Log holds the logger settings. An empty Dir logs to stdout only.
type Log struct {
	Dir   string `koanf:"dir"`
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

// Config holds all application configuration values.
type Config struct {
	Server    Server    `koanf:"server"`
	Database  Database  `koanf:"database"`
	Valkey    Valkey    `koanf:"valkey"`
	Schema    Schema    `koanf:"schema"`
	I18n      I18n      `koanf:"i18n"`
	Documents Documents `koanf:"documents"`
	Log       Log       `koanf:"log"`
}

// Default returns the development defaults.
func Default() Config {
	return Config{
		Server: Server{Host: "0.0.0.0", Port: "8080", Env: "development"},
		Database: Database{
			Host:     "localhost",
			Port:     "5432",
			User:     "docpress",
			Password: defaultPassword,
			Name:     "docpress",
			MaxOpen:  25,
			MaxIdle:  5,
		},
		Valkey: Valkey{Host: "localhost", Port: "6379", TTL: 5 * time.Minute},
		Schema: Schema{Dir: "schema"},
		I18n:   I18n{DefaultLocale: "en"},
		Documents: Documents{
			AutoCreateLocale: true,
		},
		Log: Log{Level: "info"},
	}
}

var validate = validator.New()

// Load builds the configuration. path names an optional YAML file; a
// missing .env file in the working directory is ignored. Production
// refuses the default database password.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		zap.S().Debugw("config file loaded", "file", path)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load config env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if cfg.Server.Env == "production" && cfg.Database.Password == defaultPassword {
		return nil, errors.New("database password must be set in production")
	}

	zap.S().Infow("config loaded",
		"env", cfg.Server.Env,
		"addr", cfg.Addr(),
		"schema_dir", cfg.Schema.Dir,
		"valkey", cfg.Valkey.Enabled,
	)
	return &cfg, nil
}

// envKey maps DOCPRESS_DATABASE__MAX_OPEN to database.max_open.
func envKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(s, EnvPrefix), "__", "."))
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Server.Env == "development"
}

// Exists reports whether a config file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
