// Package config loads the TOML configuration from the usual locations.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	// LogLevel is one of logrus's level names ("info", "debug", ...).
	LogLevel string `koanf:"log_level"`

	Audio    AudioConfig    `koanf:"audio"`
	Timers   TimersConfig   `koanf:"timers"`
	Equalize EqualizeConfig `koanf:"equalizer"`
}

// AudioConfig holds audio session settings.
type AudioConfig struct {
	MaxSampleRate int `koanf:"max_sample_rate"` // device rate cap, Hz
	BufferMs      int `koanf:"buffer_ms"`       // speaker buffer length
}

// TimersConfig holds the polling intervals. All are tied to lifecycle
// transitions, never left running unconditionally.
type TimersConfig struct {
	PositionPollMs  int `koanf:"position_poll_ms"`  // while playing
	LivenessPollMs  int `koanf:"liveness_poll_ms"`  // while backgrounded
	VolumePollMs    int `koanf:"volume_poll_ms"`    // while backgrounded
	SnapshotSeconds int `koanf:"snapshot_seconds"`  // while playing
	BackgroundSecs  int `koanf:"background_budget"` // background token lifetime
}

// EqualizeConfig holds the native render graph's equalizer stage settings.
type EqualizeConfig struct {
	LowDB       float64 `koanf:"low_db"`
	HighDB      float64 `koanf:"high_db"`
	CrossoverHz float64 `koanf:"crossover_hz"`
}

// Load reads config files in priority order (last wins) and applies
// defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Audio.MaxSampleRate <= 0 {
		c.Audio.MaxSampleRate = 192000
	}
	if c.Audio.BufferMs <= 0 {
		c.Audio.BufferMs = 100
	}
	if c.Timers.PositionPollMs <= 0 {
		c.Timers.PositionPollMs = 250
	}
	if c.Timers.LivenessPollMs <= 0 {
		c.Timers.LivenessPollMs = 500
	}
	if c.Timers.VolumePollMs <= 0 {
		c.Timers.VolumePollMs = 750
	}
	if c.Timers.SnapshotSeconds <= 0 {
		c.Timers.SnapshotSeconds = 30
	}
	if c.Timers.BackgroundSecs <= 0 {
		c.Timers.BackgroundSecs = 180
	}
}

// PositionPoll returns the position poll interval.
func (c *Config) PositionPoll() time.Duration {
	return time.Duration(c.Timers.PositionPollMs) * time.Millisecond
}

// LivenessPoll returns the background liveness check interval.
func (c *Config) LivenessPoll() time.Duration {
	return time.Duration(c.Timers.LivenessPollMs) * time.Millisecond
}

// VolumePoll returns the volume poll interval.
func (c *Config) VolumePoll() time.Duration {
	return time.Duration(c.Timers.VolumePollMs) * time.Millisecond
}

// SnapshotInterval returns the periodic state-snapshot interval.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Timers.SnapshotSeconds) * time.Second
}

// BackgroundBudget returns the background execution token lifetime.
func (c *Config) BackgroundBudget() time.Duration {
	return time.Duration(c.Timers.BackgroundSecs) * time.Second
}

func getConfigPaths() []string {
	paths := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "tide", "config.toml"))
	}
	// ./config.toml wins.
	paths = append(paths, "config.toml")
	return paths
}
