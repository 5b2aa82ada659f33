// Package config loads the station configuration from an optional YAML
// file. Every field has a working default so a bare binary starts a
// fully functional station against the simulated camera.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/beamscope/camera"
	"github.com/hazyhaar/beamscope/pipeline"
)

// Config is the full station configuration.
type Config struct {
	Server   Server          `yaml:"server"`
	Database Database        `yaml:"database"`
	Camera   Camera          `yaml:"camera"`
	Pipeline pipeline.Config `yaml:"pipeline"`
	Log      Log             `yaml:"log"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr string `yaml:"addr"`
}

// Database locates the measurements store.
type Database struct {
	Path string `yaml:"path"`
}

// Camera selects and configures the frame source.
type Camera struct {
	// Kind selects the source implementation. "sim" is the only kind
	// built into every platform; hardware kinds register themselves.
	Kind string `yaml:"kind"`
	// StateFile is the persisted device-properties JSON applied at
	// startup. A missing file is not an error.
	StateFile string `yaml:"state_file"`
	// Sim tunes the simulated source when Kind is "sim".
	Sim camera.SimConfig `yaml:"sim"`
}

// Log configures the structured logger.
type Log struct {
	Level string `yaml:"level"`
}

func (c *Config) defaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/beamscope.db"
	}
	if c.Camera.Kind == "" {
		c.Camera.Kind = "sim"
	}
	if c.Camera.StateFile == "" {
		c.Camera.StateFile = "devicestate.json"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.defaults()
	return c
}

// Load reads and validates the YAML configuration at path. An empty
// path returns Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.defaults()
	return c, nil
}

// SlogLevel maps the configured level name to a slog.Level.
func (l Log) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
