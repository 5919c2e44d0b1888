// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"devrec/pkg/log"
	"devrec/pkg/player"
	"devrec/pkg/recorder"

	"gopkg.in/yaml.v3"
)

// ConfigEnv stores the environment configuration.
type ConfigEnv struct {
	StorageDir    string `yaml:"storageDir"`
	RecordingsDir string `yaml:"recordingsDir"`

	LogLevel string `yaml:"logLevel"`

	StagingThreshold   int      `yaml:"stagingThreshold"`
	LookaheadTolerance *float64 `yaml:"lookaheadTolerance"`
	PlaybackSpeed      float64  `yaml:"playbackSpeed"`
	MinFreeDiskMB      uint64   `yaml:"minFreeDiskMB"`
	MaxRecordingsMB    uint64   `yaml:"maxRecordingsMB"`

	HomeDir   string `yaml:"homeDir"`
	ConfigDir string `yaml:"-"`
}

// Errors.
var (
	ErrPathNotAbsolute = errors.New("path is not absolute")
	ErrInvalidValue    = errors.New("invalid value")
)

// Defaults.
const (
	DefaultLogLevel      = "info"
	DefaultPlaybackSpeed = 1.0
	DefaultMinFreeDiskMB = 100
)

// NewConfigEnv return new environment configuration.
func NewConfigEnv(envPath string, envYAML []byte) (*ConfigEnv, error) {
	var env ConfigEnv

	if err := yaml.Unmarshal(envYAML, &env); err != nil {
		return nil, fmt.Errorf("unmarshal env.yaml: %w", err)
	}

	env.ConfigDir = filepath.Dir(envPath)

	if env.HomeDir == "" {
		env.HomeDir = filepath.Dir(env.ConfigDir)
	}
	if env.StorageDir == "" {
		env.StorageDir = filepath.Join(env.HomeDir, "storage")
	}
	if env.RecordingsDir == "" {
		env.RecordingsDir = filepath.Join(env.StorageDir, "recordings")
	}
	if env.LogLevel == "" {
		env.LogLevel = DefaultLogLevel
	}
	if env.StagingThreshold == 0 {
		env.StagingThreshold = recorder.DefaultStagingThreshold
	}
	if env.LookaheadTolerance == nil {
		tolerance := player.DefaultLookaheadTolerance
		env.LookaheadTolerance = &tolerance
	}
	if env.PlaybackSpeed == 0 {
		env.PlaybackSpeed = DefaultPlaybackSpeed
	}
	if env.MinFreeDiskMB == 0 {
		env.MinFreeDiskMB = DefaultMinFreeDiskMB
	}

	if !filepath.IsAbs(env.HomeDir) {
		return nil, fmt.Errorf("homeDir '%v': %w", env.HomeDir, ErrPathNotAbsolute)
	}
	if !filepath.IsAbs(env.StorageDir) {
		return nil, fmt.Errorf("storageDir '%v': %w", env.StorageDir, ErrPathNotAbsolute)
	}
	if !filepath.IsAbs(env.RecordingsDir) {
		return nil, fmt.Errorf("recordingsDir '%v': %w", env.RecordingsDir, ErrPathNotAbsolute)
	}

	if _, err := log.ParseLevel(env.LogLevel); err != nil {
		return nil, fmt.Errorf("logLevel: %w", err)
	}
	if env.StagingThreshold < 0 {
		return nil, fmt.Errorf("stagingThreshold %d: %w", env.StagingThreshold, ErrInvalidValue)
	}
	if *env.LookaheadTolerance < 0 {
		return nil, fmt.Errorf("lookaheadTolerance %v: %w", *env.LookaheadTolerance, ErrInvalidValue)
	}
	if env.PlaybackSpeed < 0 {
		return nil, fmt.Errorf("playbackSpeed %v: %w", env.PlaybackSpeed, ErrInvalidValue)
	}

	return &env, nil
}

// ReadConfigEnv reads and parses the env.yaml file at envPath.
func ReadConfigEnv(envPath string) (*ConfigEnv, error) {
	envYAML, err := os.ReadFile(envPath)
	if err != nil {
		return nil, fmt.Errorf("could not read env.yaml: %w", err)
	}
	return NewConfigEnv(envPath, envYAML)
}

// Level returns the parsed log level.
func (env ConfigEnv) Level() log.Level {
	level, err := log.ParseLevel(env.LogLevel)
	if err != nil {
		return log.LevelInfo
	}
	return level
}

// LogDBPath returns the path of the log database.
func (env ConfigEnv) LogDBPath() string {
	return filepath.Join(env.StorageDir, "logs.db")
}

// RecordingPath returns the path of a recording file. Absolute names
// are returned unchanged, relative names are inside the recordings directory.
func (env ConfigEnv) RecordingPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(env.RecordingsDir, name)
}

// PrepareEnvironment creates the storage directories.
func (env ConfigEnv) PrepareEnvironment() error {
	if err := os.MkdirAll(env.StorageDir, 0o700); err != nil {
		return fmt.Errorf("create storage directory: %v: %w", env.StorageDir, err)
	}
	if err := os.MkdirAll(env.RecordingsDir, 0o700); err != nil {
		return fmt.Errorf("create recordings directory: %v: %w", env.RecordingsDir, err)
	}
	return nil
}
