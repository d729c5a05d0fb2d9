// Package config loads the optional TOML settings file.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Server struct {
	Address      string
	MaxBodyBytes int64
}

type Codec struct {
	// VerifyRoundTrip re-parses every container written by build and
	// fails when the result does not match the document.
	VerifyRoundTrip bool
}

type Config struct {
	LogLevel  string
	LogFormat string
	Server    Server
	Codec     Codec
}

// config.toml key mapping.
type fileConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	Server    struct {
		Address      string `toml:"address"`
		MaxBodyBytes int64  `toml:"max_body_bytes"`
	} `toml:"server"`
	Codec struct {
		VerifyRoundTrip bool `toml:"verify_round_trip"`
	} `toml:"codec"`
}

func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Server: Server{
			Address:      "127.0.0.1:8080",
			MaxBodyBytes: 64 << 20,
		},
	}
}

// Load overlays the keys present in the file at path onto the defaults.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %s", undecoded[0])
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_format") {
		cfg.LogFormat = strings.TrimSpace(raw.LogFormat)
	}
	if meta.IsDefined("server", "address") {
		cfg.Server.Address = strings.TrimSpace(raw.Server.Address)
	}
	if meta.IsDefined("server", "max_body_bytes") {
		cfg.Server.MaxBodyBytes = raw.Server.MaxBodyBytes
	}
	if meta.IsDefined("codec", "verify_round_trip") {
		cfg.Codec.VerifyRoundTrip = raw.Codec.VerifyRoundTrip
	}

	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("load config: unsupported log_format %q (expected text or json)", cfg.LogFormat)
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("load config: max_body_bytes must be positive, got %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.Server.Address == "" {
		return fmt.Errorf("load config: server address is empty")
	}
	return nil
}
