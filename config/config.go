// Package config loads the TaskFlow service settings.
//
// Settings come from an optional YAML file and are overridden by environment
// variables prefixed with TASKFLOW_. The variable name without the prefix,
// lowercased, is the YAML key:
//
//	TASKFLOW_HTTP_PORT  -> http_port
//	TASKFLOW_REDIS_URL  -> redis_url
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "TASKFLOW_"

const maxConfigFileSize = 1024 * 1024

// Config holds the service configuration.
type Config struct {
	Debug    bool   `koanf:"debug"`
	HTTPPort int    `koanf:"http_port"`
	Timezone string `koanf:"timezone"`
	SeedDemo bool   `koanf:"seed_demo"`

	RedisURL   string        `koanf:"redis_url"`
	DeduperTTL time.Duration `koanf:"deduper_ttl"`
	CacheTTL   time.Duration `koanf:"cache_ttl"`

	StorageConnectionString string        `koanf:"storage_connection_string"`
	TasksTable              string        `koanf:"tasks_table"`
	EventsQueue             string        `koanf:"events_queue"`
	PersistTimeout          time.Duration `koanf:"persist_timeout"`

	AuthMode     string `koanf:"auth_mode"`
	AuthSecret   string `koanf:"auth_secret"`
	AuthDomain   string `koanf:"auth_domain"`
	AuthAudience string `koanf:"auth_audience"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		HTTPPort:       8080,
		Timezone:       "UTC",
		SeedDemo:       true,
		DeduperTTL:     24 * time.Hour,
		CacheTTL:       10 * time.Minute,
		TasksTable:     "tasks",
		PersistTimeout: 5 * time.Second,
		AuthMode:       "none",
	}
}

// Load reads configPath when it is not empty, then the environment, on top
// of Defaults. The result is validated.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http_port %d out of range", c.HTTPPort))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if c.DeduperTTL <= 0 {
		errs = append(errs, errors.New("deduper_ttl must be positive"))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("cache_ttl must not be negative"))
	}
	if c.PersistTimeout <= 0 {
		errs = append(errs, errors.New("persist_timeout must be positive"))
	}
	if c.StorageConnectionString == "" && c.EventsQueue != "" {
		errs = append(errs, errors.New("events_queue requires storage_connection_string"))
	}
	if c.StorageConnectionString != "" && c.TasksTable == "" {
		errs = append(errs, errors.New("tasks_table must not be empty"))
	}

	switch strings.ToLower(c.AuthMode) {
	case "", "none":
	case "hs256":
		if c.AuthSecret == "" {
			errs = append(errs, errors.New("auth_secret is required when auth_mode=hs256"))
		}
	case "jwks":
		if c.AuthDomain == "" || c.AuthAudience == "" {
			errs = append(errs, errors.New("auth_domain and auth_audience are required when auth_mode=jwks"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported auth_mode %q", c.AuthMode))
	}
	return errors.Join(errs...)
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// ListenAddr is the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
