// Package config loads the service configuration from flags, environment
// variables and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// DevelopmentToken is what a development process falls back to when no
	// token is configured. Production refuses to start with it.
	DevelopmentToken = "YOUR_API_TOKEN"

	envPrefix = "KSTATUS"
)

// Keys shared by viper, the cobra flags and the YAML file.
const (
	KeyPort              = "port"
	KeyAPIToken          = "api-token"
	KeyEnvironment       = "environment"
	KeyKubeconfig        = "kubeconfig"
	KeyContext           = "context"
	KeyUpstreamTimeout   = "upstream-timeout"
	KeyMaxInFlight       = "max-inflight"
	KeyStatusConcurrency = "status-concurrency"
	KeyAllowedOrigins    = "allowed-origins"
	KeyLogLevel          = "log-level"
	KeyLogFormat         = "log-format"
	KeyMetricsEnabled    = "metrics-enabled"
	KeyShutdownTimeout   = "shutdown-timeout"
	KeyVerifyUpstream    = "verify-upstream"
)

type Config struct {
	Port              int           `mapstructure:"port"`
	APIToken          string        `mapstructure:"api-token"`
	Environment       string        `mapstructure:"environment"`
	Kubeconfig        string        `mapstructure:"kubeconfig"`
	Context           string        `mapstructure:"context"`
	UpstreamTimeout   time.Duration `mapstructure:"upstream-timeout"`
	MaxInFlight       int64         `mapstructure:"max-inflight"`
	StatusConcurrency int           `mapstructure:"status-concurrency"`
	AllowedOrigins    []string      `mapstructure:"allowed-origins"`
	LogLevel          string        `mapstructure:"log-level"`
	LogFormat         string        `mapstructure:"log-format"`
	MetricsEnabled    bool          `mapstructure:"metrics-enabled"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown-timeout"`
	VerifyUpstream    bool          `mapstructure:"verify-upstream"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, 3000)
	v.SetDefault(KeyAPIToken, "")
	v.SetDefault(KeyEnvironment, EnvDevelopment)
	v.SetDefault(KeyKubeconfig, "")
	v.SetDefault(KeyContext, "")
	v.SetDefault(KeyUpstreamTimeout, 10*time.Second)
	v.SetDefault(KeyMaxInFlight, 64)
	v.SetDefault(KeyStatusConcurrency, 4)
	v.SetDefault(KeyAllowedOrigins, []string{})
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyMetricsEnabled, true)
	v.SetDefault(KeyShutdownTimeout, 10*time.Second)
	v.SetDefault(KeyVerifyUpstream, false)
}

// bindEnv maps each key onto KSTATUS_<KEY>. A few keys also accept the
// conventional unprefixed variable, checked after the prefixed one.
// KUBECONFIG is left to client-go's loading rules, which understand path lists
// and still try the in-cluster account first.
func bindEnv(v *viper.Viper) error {
	plain := map[string]string{
		KeyPort:     "PORT",
		KeyAPIToken: "API_TOKEN",
	}

	keys := []string{
		KeyPort, KeyAPIToken, KeyEnvironment, KeyKubeconfig, KeyContext,
		KeyUpstreamTimeout, KeyMaxInFlight, KeyStatusConcurrency, KeyAllowedOrigins,
		KeyLogLevel, KeyLogFormat, KeyMetricsEnabled, KeyShutdownTimeout, KeyVerifyUpstream,
	}
	for _, key := range keys {
		names := []string{envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))}
		if key == KeyEnvironment {
			names = append(names, envPrefix+"_ENV")
		}
		if p, ok := plain[key]; ok {
			names = append(names, p)
		}
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the configuration from v, which may already carry bound flags.
// A non-empty file is read as YAML and must exist.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.AllowedOrigins = splitOrigins(cfg.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.APIToken == "" && cfg.Environment == EnvDevelopment {
		cfg.APIToken = DevelopmentToken
	}
	return &cfg, nil
}

// Validate checks ranges and the token rules for production.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case EnvDevelopment:
	case EnvProduction:
		if c.APIToken == "" {
			errs = append(errs, errors.New("api-token is required in production"))
		} else if c.APIToken == DevelopmentToken {
			errs = append(errs, errors.New("api-token must not be the development token in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("environment must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Environment))
	}

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, fmt.Errorf("upstream-timeout must be positive, got %s", c.UpstreamTimeout))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown-timeout must be positive, got %s", c.ShutdownTimeout))
	}
	if c.MaxInFlight < 1 {
		errs = append(errs, fmt.Errorf("max-inflight must be at least 1, got %d", c.MaxInFlight))
	}
	if c.StatusConcurrency < 1 {
		errs = append(errs, fmt.Errorf("status-concurrency must be at least 1, got %d", c.StatusConcurrency))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log-format must be text or json, got %q", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Warnings lists settings that are accepted but should not reach production.
func (c *Config) Warnings() []string {
	var out []string
	if c.APIToken == DevelopmentToken {
		out = append(out, "using the development API token; set API_TOKEN before exposing this service")
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			out = append(out, "CORS allows every origin")
			break
		}
	}
	return out
}

func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// splitOrigins accepts both a YAML list and a single comma separated value.
func splitOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, o := range strings.Split(item, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}
