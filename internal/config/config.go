// Package config resolves run settings from defaults, an optional .env file
// and SIGMATCH_* environment variables. Command-line flags are applied on
// top by the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const envPrefix = "SIGMATCH_"

// Config is the resolved run configuration.
type Config struct {
	LogLevel            string
	LogPretty           bool
	ProgressInterval    int
	CancelCheckInterval int
	// Discover enables prologue and call-site discovery of unnamed functions.
	Discover bool
	// Output is the optional symbol map path written after a scan.
	Output string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:            "info",
		LogPretty:           true,
		ProgressInterval:    100,
		CancelCheckInterval: 4096,
		Discover:            true,
	}
}

// Load reads envFiles (".env" when none are given) into the process
// environment and resolves the configuration. Missing env files are ignored;
// malformed values are errors.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv resolves the configuration from lookup over the defaults.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	get := func(key string) (string, bool) {
		v, ok := lookup(envPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := get("OUTPUT"); ok {
		cfg.Output = v
	}

	var err error
	if v, ok := get("LOG_PRETTY"); ok {
		if cfg.LogPretty, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("%sLOG_PRETTY: %w", envPrefix, err)
		}
	}
	if v, ok := get("DISCOVER"); ok {
		if cfg.Discover, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("%sDISCOVER: %w", envPrefix, err)
		}
	}
	if v, ok := get("PROGRESS_INTERVAL"); ok {
		if cfg.ProgressInterval, err = parseCount(v, 1); err != nil {
			return Config{}, fmt.Errorf("%sPROGRESS_INTERVAL: %w", envPrefix, err)
		}
	}
	if v, ok := get("CANCEL_CHECK_INTERVAL"); ok {
		if cfg.CancelCheckInterval, err = parseCount(v, 0); err != nil {
			return Config{}, fmt.Errorf("%sCANCEL_CHECK_INTERVAL: %w", envPrefix, err)
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks the numeric settings.
func (c Config) Validate() error {
	if c.ProgressInterval < 1 {
		return fmt.Errorf("progress interval must be at least 1, got %d", c.ProgressInterval)
	}
	if c.CancelCheckInterval < 0 {
		return fmt.Errorf("cancel check interval must not be negative, got %d", c.CancelCheckInterval)
	}
	return nil
}

func parseCount(s string, minimum int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < minimum {
		return 0, fmt.Errorf("must be at least %d, got %d", minimum, n)
	}
	return n, nil
}
