package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/spoolworks/spoolbridge/internal/bridge"
)

type fileConfig struct {
	MoonrakerURL      string            `toml:"moonraker_url"`
	SpoolmanURL       string            `toml:"spoolman_url"`
	SetMacroPrefix    string            `toml:"set_macro_prefix"`
	ClearMacro        string            `toml:"clear_macro"`
	LoadCompleteMacro string            `toml:"load_complete_macro"`
	MetricsAddr       string            `toml:"metrics_addr"`
	Session           fileSessionConfig `toml:"session"`
}

type fileSessionConfig struct {
	ConnectTimeout string            `toml:"connect_timeout"`
	WriteTimeout   string            `toml:"write_timeout"`
	CallTimeout    string            `toml:"call_timeout"`
	PingInterval   string            `toml:"ping_interval"`
	PongWait       string            `toml:"pong_wait"`
	Backoff        fileBackoffConfig `toml:"backoff"`
}

type fileBackoffConfig struct {
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
	Jitter       bool    `toml:"jitter"`
}

// LoadServiceConfig reads a bridge config file over the runtime
// defaults. Only keys present in the file override the defaults.
func LoadServiceConfig(path string) (bridge.ServiceConfig, error) {
	cfg := bridge.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return bridge.ServiceConfig{}, fmt.Errorf("load bridge config: %w", err)
	}

	if meta.IsDefined("moonraker_url") {
		cfg.MoonrakerURL = strings.TrimSpace(raw.MoonrakerURL)
	}
	if meta.IsDefined("spoolman_url") {
		cfg.SpoolmanURL = strings.TrimSpace(raw.SpoolmanURL)
	}
	if meta.IsDefined("set_macro_prefix") {
		cfg.SetMacroPrefix = strings.TrimSpace(raw.SetMacroPrefix)
	}
	if meta.IsDefined("clear_macro") {
		cfg.ClearMacro = strings.TrimSpace(raw.ClearMacro)
	}
	if meta.IsDefined("load_complete_macro") {
		cfg.LoadCompleteMacro = strings.TrimSpace(raw.LoadCompleteMacro)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	if err := applySessionOverrides(&cfg, meta, raw.Session); err != nil {
		return bridge.ServiceConfig{}, err
	}

	if err := cfg.Validate(); err != nil {
		return bridge.ServiceConfig{}, fmt.Errorf("bridge config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func applySessionOverrides(cfg *bridge.ServiceConfig, meta toml.MetaData, raw fileSessionConfig) error {
	durations := []struct {
		key  string
		raw  string
		dest *time.Duration
	}{
		{"session.connect_timeout", raw.ConnectTimeout, &cfg.Session.ConnectTimeout},
		{"session.write_timeout", raw.WriteTimeout, &cfg.Session.WriteTimeout},
		{"session.call_timeout", raw.CallTimeout, &cfg.Session.CallTimeout},
		{"session.ping_interval", raw.PingInterval, &cfg.Session.PingInterval},
		{"session.pong_wait", raw.PongWait, &cfg.Session.PongWait},
		{"session.backoff.initial_delay", raw.Backoff.InitialDelay, &cfg.Session.Backoff.InitialDelay},
		{"session.backoff.max_delay", raw.Backoff.MaxDelay, &cfg.Session.Backoff.MaxDelay},
	}
	for _, entry := range durations {
		if !meta.IsDefined(strings.Split(entry.key, ".")...) {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(entry.raw))
		if err != nil {
			return fmt.Errorf("parse %s: %w", entry.key, err)
		}
		*entry.dest = d
	}

	if meta.IsDefined("session", "backoff", "multiplier") {
		cfg.Session.Backoff.Multiplier = raw.Backoff.Multiplier
	}
	if meta.IsDefined("session", "backoff", "jitter") {
		cfg.Session.Backoff.Jitter = raw.Backoff.Jitter
	}
	return nil
}
