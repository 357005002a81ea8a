package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file
const (
	EnvAPIBaseURL = "BOOKING_API_BASE_URL"
	EnvAuthToken  = "BOOKING_AUTH_TOKEN"
	EnvSessionDSN = "BOOKING_SESSION_DSN"
)

// Session storage drivers
const (
	SessionFile     = "file"
	SessionSQLite   = "sqlite"
	SessionPostgres = "postgres"
	SessionMemory   = "memory"
)

// Credential modes
const (
	AuthCookie = "cookie"
	AuthBearer = "bearer"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultLoginPath      = "/login"
	DefaultWatchSchedule  = "@every 1m"
	DefaultLogDir         = "logs"
)

// SessionConfig selects where the signed-in session is persisted
type SessionConfig struct {
	Driver    string `yaml:"driver,omitempty" validate:"omitempty,oneof=file sqlite postgres memory"`
	Path      string `yaml:"path,omitempty"`
	DSN       string `yaml:"dsn,omitempty" validate:"required_if=Driver postgres"`
	Namespace string `yaml:"namespace,omitempty"`
}

// CacheConfig tunes the query cache
type CacheConfig struct {
	MaxEntries int `yaml:"maxEntries,omitempty" validate:"omitempty,min=1"`
	// RetryAttempts is the number of retries after a failed read; nil keeps the default
	RetryAttempts *int          `yaml:"retryAttempts,omitempty" validate:"omitempty,min=0,max=10"`
	RetryInterval time.Duration `yaml:"retryInterval,omitempty" validate:"min=0"`
}

// TelemetryConfig enables trace export when an endpoint is set
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty"`
	Insecure     bool   `yaml:"insecure,omitempty"`
	ServiceName  string `yaml:"serviceName,omitempty"`
}

// RecurrencePreset names a recurrence rule for recurring reservations
type RecurrencePreset struct {
	Name  string `yaml:"name" validate:"required"`
	RRule string `yaml:"rrule" validate:"required"`
}

// Config represents the application configuration
type Config struct {
	APIBaseURL        string             `yaml:"apiBaseURL" validate:"required,url"`
	RequestTimeout    time.Duration      `yaml:"requestTimeout,omitempty" validate:"min=0"`
	LoginPath         string             `yaml:"loginPath,omitempty"`
	AuthMode          string             `yaml:"authMode,omitempty" validate:"omitempty,oneof=cookie bearer"`
	Session           SessionConfig      `yaml:"session,omitempty"`
	Cache             CacheConfig        `yaml:"cache,omitempty"`
	Telemetry         TelemetryConfig    `yaml:"telemetry,omitempty"`
	LogDir            string             `yaml:"logDir,omitempty"`
	WatchSchedule     string             `yaml:"watchSchedule,omitempty"`
	RecurrencePresets []RecurrencePreset `yaml:"recurrencePresets,omitempty" validate:"dive"`

	// AuthToken is a bearer token supplied through the environment
	AuthToken string `yaml:"-"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from booking_config.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads booking_config.<env>.yaml, falling back to booking_config.yaml.
// Values from a .env file and the process environment override the file.
func LoadWithEnv(env string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv(EnvAuthToken); v != "" {
		cfg.AuthToken = v
	}
	if v := os.Getenv(EnvSessionDSN); v != "" {
		cfg.Session.DSN = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = AuthCookie
		if cfg.AuthToken != "" {
			cfg.AuthMode = AuthBearer
		}
	}
	if cfg.Session.Driver == "" {
		cfg.Session.Driver = SessionFile
	}
	if cfg.Session.Path == "" {
		switch cfg.Session.Driver {
		case SessionFile:
			cfg.Session.Path = filepath.Join(".booking", "session.json")
		case SessionSQLite:
			cfg.Session.Path = filepath.Join(".booking", "session.db")
		}
	}
	if cfg.Session.Namespace == "" {
		cfg.Session.Namespace = "default"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "desk-booking-cli"
	}
	if cfg.LogDir == "" {
		cfg.LogDir = DefaultLogDir
	}
	if cfg.WatchSchedule == "" {
		cfg.WatchSchedule = DefaultWatchSchedule
	}
}

// Validate validates the configuration struct and checks rrule and schedule syntax
func Validate(cfg *Config) error {
	// Run struct validation
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.WatchSchedule != "" {
		if _, err := cron.ParseStandard(cfg.WatchSchedule); err != nil {
			return fmt.Errorf("invalid watchSchedule: %w", err)
		}
	}

	seen := make(map[string]bool, len(cfg.RecurrencePresets))
	for i, preset := range cfg.RecurrencePresets {
		if seen[preset.Name] {
			return fmt.Errorf("duplicate recurrencePresets[%d] name %q", i, preset.Name)
		}
		seen[preset.Name] = true
		if _, err := rrule.StrToRRule(preset.RRule); err != nil {
			return fmt.Errorf("invalid rrule in recurrencePresets[%d]: %w", i, err)
		}
	}

	return nil
}

// Recurrence resolves a preset name to its rule. Anything else is returned
// unchanged so a raw RRULE can be passed where a preset is expected.
func (c *Config) Recurrence(nameOrRule string) string {
	for _, preset := range c.RecurrencePresets {
		if preset.Name == nameOrRule {
			return preset.RRule
		}
	}
	return nameOrRule
}

// findConfigFile searches for the config file in current directory and home directory.
// booking_config.<env>.yaml is preferred over booking_config.yaml.
func findConfigFile(env string) (string, error) {
	names := []string{"booking_config.yaml"}
	if env != "" {
		names = append([]string{fmt.Sprintf("booking_config.%s.yaml", env)}, names...)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	for _, name := range names {
		// Check current directory, then home directory
		for _, candidate := range []string{name, filepath.Join(homeDir, name)} {
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("config file not found in current directory or home directory")
}
