package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Limits   LimitsConfig   `koanf:"limits"`
	Guard    GuardConfig    `koanf:"guard"`
	Fetch    FetchConfig    `koanf:"fetch"`
	Analyze  AnalyzeConfig  `koanf:"analyze"`
	Audit    AuditConfig    `koanf:"audit"`
}

type ServerConfig struct {
	Host               string   `koanf:"host"`
	Port               int      `koanf:"port"`
	CORSAllowedOrigins []string `koanf:"corsallowedorigins"`
}

type DatabaseConfig struct {
	URL      string `koanf:"url"`
	MaxConns int    `koanf:"maxconns"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// LimitsConfig controls the per-client fixed-window rate limiter.
type LimitsConfig struct {
	MaxRequests       int `koanf:"maxrequests"`
	WindowSecs        int `koanf:"windowsecs"`
	SweepIntervalSecs int `koanf:"sweepintervalsecs"`
}

// GuardConfig controls field validation and the content risk scanner.
type GuardConfig struct {
	RequireSecurityCheck bool `koanf:"requiresecuritycheck"`
	MaxFieldLength       int  `koanf:"maxfieldlength"`
	ExposeDetails        bool `koanf:"exposedetails"`
}

// FetchConfig controls the remote content import client.
type FetchConfig struct {
	TimeoutSecs      int     `koanf:"timeoutsecs"`
	MaxContentLength int     `koanf:"maxcontentlength"`
	RequestsPerSec   float64 `koanf:"requestspersec"`
}

// AnalyzeConfig configures the downstream LLM review call.
type AnalyzeConfig struct {
	BaseURL string `koanf:"baseurl"`
	APIKey  string `koanf:"apikey"`
	Model   string `koanf:"model"`
}

type AuditConfig struct {
	BufferSize      int `koanf:"buffersize"`
	BatchSize       int `koanf:"batchsize"`
	FlushIntervalMs int `koanf:"flushintervalms"`
}

func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Load(confmap.Provider(map[string]any{
		"server.port":                8080,
		"server.host":                "0.0.0.0",
		"database.maxconns":          25,
		"log.level":                  "info",
		"log.format":                 "json",
		"limits.maxrequests":         10,
		"limits.windowsecs":          60,
		"limits.sweepintervalsecs":   300,
		"guard.requiresecuritycheck": true,
		"guard.maxfieldlength":       10000,
		"guard.exposedetails":        false,
		"fetch.timeoutsecs":          10,
		"fetch.maxcontentlength":     4000,
		"fetch.requestspersec":       2.0,
		"analyze.baseurl":            "https://api.anthropic.com",
		"analyze.model":              "claude-haiku-4-5-20251001",
		"audit.buffersize":           4096,
		"audit.batchsize":            100,
		"audit.flushintervalms":      500,
	}, "."), nil)

	// YAML file (optional)
	for _, path := range configPaths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// Config file is optional, skip if not found
			continue
		}
	}

	// Environment variables override everything
	// SANITYCHECK_SERVER_PORT -> server.port
	_ = k.Load(env.Provider("SANITYCHECK_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "SANITYCHECK_")),
			"_", ".",
		)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
