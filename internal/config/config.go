// Package config loads vwo-eval configuration from environment variables and
// command-line flags.
//
// Variables:
//   - VWO_FLAGS_FILE: path of the YAML flag file (required).
//   - LOG_LEVEL: debug, info, warn or error (default "info").
//   - LOG_FORMAT: json or text (default "json").
//   - OUTPUT_FORMAT: json, yaml or table (default "json").
//   - HTTP_ADDR: listen address for serve (default ":8080").
//   - VWO_RESYNC_INTERVAL: periodic flag file reload for serve, as a Go
//     duration (default "1m", "0" disables).
//   - RATE_LIMIT_PER_IP: evaluation requests per minute per client IP for
//     serve (default 600, 0 disables).
//
// A changed command-line flag bound through [Load] takes precedence over the
// environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyFlagsFile    = "VWO_FLAGS_FILE"
	KeyLogLevel     = "LOG_LEVEL"
	KeyLogFormat    = "LOG_FORMAT"
	KeyOutputFormat = "OUTPUT_FORMAT"

	KeyHTTPAddr       = "HTTP_ADDR"
	KeyResyncInterval = "VWO_RESYNC_INTERVAL"
	KeyRateLimitPerIP = "RATE_LIMIT_PER_IP"
)

// FlagNames maps each configuration key to the command-line flag bound to it.
var FlagNames = map[string]string{
	KeyFlagsFile:    "flags-file",
	KeyLogLevel:     "log-level",
	KeyLogFormat:    "log-format",
	KeyOutputFormat: "output",

	KeyHTTPAddr:       "http-addr",
	KeyResyncInterval: "resync-interval",
	KeyRateLimitPerIP: "rate-limit",
}

// Config holds the runtime configuration for vwo-eval.
type Config struct {
	FlagsFile    string
	LogLevel     string
	LogFormat    string
	OutputFormat string

	HTTPAddr       string
	ResyncInterval time.Duration
	RateLimitPerIP int
}

// Load reads configuration from the environment and from the flags in fs that
// are named in [FlagNames]. fs may be nil. The result is validated.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if fs != nil {
		for key, name := range FlagNames {
			flag := fs.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var err error
	cfg := Config{
		FlagsFile:    strings.TrimSpace(v.GetString(KeyFlagsFile)),
		LogLevel:     strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFormat:    strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
		OutputFormat: strings.ToLower(strings.TrimSpace(v.GetString(KeyOutputFormat))),
		HTTPAddr:     strings.TrimSpace(v.GetString(KeyHTTPAddr)),
	}

	resync := strings.TrimSpace(v.GetString(KeyResyncInterval))
	cfg.ResyncInterval, err = time.ParseDuration(resync)
	if err != nil {
		return Config{}, ValidationError{Field: KeyResyncInterval, Message: fmt.Sprintf("invalid duration %q", resync)}
	}

	rateLimit := strings.TrimSpace(v.GetString(KeyRateLimitPerIP))
	cfg.RateLimitPerIP, err = strconv.Atoi(rateLimit)
	if err != nil {
		return Config{}, ValidationError{Field: KeyRateLimitPerIP, Message: fmt.Sprintf("must be an integer, got %q", rateLimit)}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyOutputFormat, "json")
	v.SetDefault(KeyHTTPAddr, ":8080")
	v.SetDefault(KeyResyncInterval, "1m")
	v.SetDefault(KeyRateLimitPerIP, "600")
}

// ValidationError reports the configuration key that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate returns a [ValidationError] for the first invalid field.
func (c Config) Validate() error {
	if c.FlagsFile == "" {
		return ValidationError{Field: KeyFlagsFile, Message: "flag file path is required"}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return ValidationError{Field: KeyLogLevel, Message: fmt.Sprintf("unknown level %q", c.LogLevel)}
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return ValidationError{Field: KeyLogFormat, Message: fmt.Sprintf("must be 'json' or 'text', got %q", c.LogFormat)}
	}
	switch c.OutputFormat {
	case "json", "yaml", "table":
	default:
		return ValidationError{Field: KeyOutputFormat, Message: fmt.Sprintf("must be 'json', 'yaml' or 'table', got %q", c.OutputFormat)}
	}
	if c.HTTPAddr == "" {
		return ValidationError{Field: KeyHTTPAddr, Message: "listen address is required"}
	}
	if c.ResyncInterval < 0 {
		return ValidationError{Field: KeyResyncInterval, Message: "must not be negative"}
	}
	if c.RateLimitPerIP < 0 {
		return ValidationError{Field: KeyRateLimitPerIP, Message: "must not be negative"}
	}
	return nil
}
