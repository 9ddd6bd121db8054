// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kkyr/fig"
)

const configEnv = "LEADGATE"

// Config represents the global config object struct
type Config struct {
	Log struct {
		Level     slog.Level `fig:"level" default:"0"`
		Format    string     `fig:"format" default:"json"`
		DontLogIP bool       `fig:"dont_log_ip"`
	}

	Forms struct {
		Path          string        `fig:"path" validate:"required"`
		CacheLifetime time.Duration `fig:"cache_lifetime" default:"10m"`
	} `fig:"forms"`

	Storage struct {
		Type string `fig:"type" default:"inmemory"`
		Path string `fig:"path"`
	} `fig:"storage"`

	Upstream struct {
		Timeout time.Duration `fig:"timeout" default:"10s"`
	} `fig:"upstream"`

	RateLimit struct {
		MaxAttempts   int           `fig:"max_attempts" default:"5"`
		Window        time.Duration `fig:"window" default:"1m"`
		BlockDuration time.Duration `fig:"block_duration" default:"30m"`
	} `fig:"rate_limit"`

	CSRF struct {
		SweepInterval time.Duration `fig:"sweep_interval" default:"1h"`
	} `fig:"csrf"`

	Server struct {
		BindAddress string        `fig:"address" default:"127.0.0.1"`
		BindPort    string        `fig:"port" default:"8432"`
		Timeout     time.Duration `fig:"timeout" default:"15s"`
	} `fig:"server"`
}

// New returns a new Config. It tries to load the config from the default
// location and falls back to the defaults or environment variables if the
// config file was not found.
func New() (*Config, error) {
	conf := new(Config)

	configPath, configFile := findConfigFile()
	if configPath != "" && configFile != "" {
		return NewFromFile(configPath, configFile)
	}

	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, nil
}

// NewFromFile returns a new Config from the given path and file.
func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}

	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, nil
}

func findConfigFile() (string, string) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	exts := []string{"toml", "yaml", "yml", "json"}
	for _, ext := range exts {
		path := filepath.Join(homedir, ".config", "leadgate", "leadgate."+ext)
		if _, err = os.Stat(path); err == nil {
			return filepath.Dir(path), filepath.Base(path)
		}
	}
	return "", ""
}
