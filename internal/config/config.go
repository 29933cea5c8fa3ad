package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"coin-tracker/internal/auth"
	"coin-tracker/internal/model"
	"coin-tracker/internal/retry"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	MetricsAPI MetricsAPIConfig `yaml:"metrics_api"`
	Retry      RetryConfig      `yaml:"retry"`
	Auth       AuthConfig       `yaml:"auth"`
	Sheet      SheetConfig      `yaml:"sheet"`
	Run        RunConfig        `yaml:"run"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`

	// Timezone the sheet timestamp is rendered in: "Local", "UTC" or an IANA name.
	Timezone string `yaml:"timezone"`
}

type MetricsAPIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// CacheTTL enables the development response cache when > 0.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	BackoffFactor time.Duration `yaml:"backoff_factor"`
	MaxBackoff    time.Duration `yaml:"max_backoff"`
}

type AuthConfig struct {
	Mode              string   `yaml:"mode"`
	Scopes            []string `yaml:"scopes"`
	TokenFile         string   `yaml:"token_file"`
	ClientSecretsFile string   `yaml:"client_secrets_file"`
}

type SheetConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// RunConfig holds the default rig parameters for a run.
type RunConfig struct {
	Hashrate        int64   `yaml:"hashrate"`
	PowerWatts      float64 `yaml:"power_watts"`
	PowerCostPerKwh float64 `yaml:"power_cost_per_kwh"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	// RateLimit is update requests per second accepted by the API; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	p := retry.DefaultPolicy()
	return &Config{
		MetricsAPI: MetricsAPIConfig{
			BaseURL: "https://www.coincalculators.io/api",
			Timeout: 30 * time.Second,
		},
		Retry: RetryConfig{
			MaxRetries:    p.MaxRetries,
			BackoffFactor: p.BackoffFactor,
			MaxBackoff:    p.MaxBackoff,
		},
		Auth: AuthConfig{
			Mode:              auth.ModeStored,
			Scopes:            []string{auth.ScopeSpreadsheets},
			TokenFile:         "token.json",
			ClientSecretsFile: "credentials.json",
		},
		Sheet: SheetConfig{Name: "Sheet1"},
		Run: RunConfig{
			Hashrate:        model.DefaultHashrate,
			PowerWatts:      model.DefaultPowerWatts,
			PowerCostPerKwh: model.DefaultPowerCostPerKwh,
		},
		Server:   ServerConfig{Port: "8080", RateLimit: 1, Burst: 5},
		Log:      LogConfig{Level: "info", Format: "json"},
		Timezone: "Local",
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads the file over the defaults, but does not apply the
// environment or validate. Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

// ApplyEnv overlays the supported environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"COIN_SHEET_ID":       &c.Sheet.ID,
		"COIN_SHEET_NAME":     &c.Sheet.Name,
		"COIN_AUTH_MODE":      &c.Auth.Mode,
		"COIN_TOKEN_FILE":     &c.Auth.TokenFile,
		"COIN_CLIENT_SECRETS": &c.Auth.ClientSecretsFile,
		"COIN_API_URL":        &c.MetricsAPI.BaseURL,
		"COIN_TIMEZONE":       &c.Timezone,
		"API_PORT":            &c.Server.Port,
		"LOG_LEVEL":           &c.Log.Level,
		"LOG_FORMAT":          &c.Log.Format,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("COIN_MAX_RETRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("COIN_MAX_RETRIES: %w", err)
		}
		c.Retry.MaxRetries = n
	}
	return nil
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.MetricsAPI.BaseURL == "" {
		return errors.New("metrics_api.base_url is required")
	}
	if err := c.Retry.ToPolicy().Validate(); err != nil {
		return fmt.Errorf("retry config invalid: %w", err)
	}
	switch c.Auth.Mode {
	case auth.ModeStored, auth.ModeAmbient:
	default:
		return fmt.Errorf("auth.mode must be %q or %q, got %q", auth.ModeStored, auth.ModeAmbient, c.Auth.Mode)
	}
	if len(c.Auth.Scopes) == 0 {
		return errors.New("auth.scopes is required")
	}
	if err := c.Run.ToModelParams().Validate(); err != nil {
		return fmt.Errorf("run config invalid: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone invalid: %w", err)
	}
	return loc, nil
}

func (r RetryConfig) ToPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:    r.MaxRetries,
		BackoffFactor: r.BackoffFactor,
		MaxBackoff:    r.MaxBackoff,
	}
}

func (a AuthConfig) ToOptions() auth.Options {
	return auth.Options{
		Mode:              a.Mode,
		Scopes:            a.Scopes,
		TokenFile:         a.TokenFile,
		ClientSecretsFile: a.ClientSecretsFile,
	}
}

func (r RunConfig) ToModelParams() model.RunParameters {
	return model.RunParameters{
		Hashrate:        r.Hashrate,
		PowerWatts:      r.PowerWatts,
		PowerCostPerKwh: r.PowerCostPerKwh,
	}
}
