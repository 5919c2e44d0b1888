// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"devrec/pkg/log"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newTestEnvPath(t *testing.T) (string, string) {
	t.Helper()
	homeDir := t.TempDir()
	return homeDir, filepath.Join(homeDir, "configs", "env.yaml")
}

func TestNewConfigEnv(t *testing.T) {
	t.Run("minimal", func(t *testing.T) {
		homeDir, envPath := newTestEnvPath(t)

		env, err := NewConfigEnv(envPath, []byte{})
		require.NoError(t, err)

		tolerance := 0.5
		expected := &ConfigEnv{
			StorageDir:         homeDir + "/storage",
			RecordingsDir:      homeDir + "/storage/recordings",
			LogLevel:           "info",
			StagingThreshold:   20,
			LookaheadTolerance: &tolerance,
			PlaybackSpeed:      1,
			MinFreeDiskMB:      100,
			HomeDir:            homeDir,
			ConfigDir:          homeDir + "/configs",
		}
		require.Equal(t, expected, env)
		require.Equal(t, log.LevelInfo, env.Level())
		require.Equal(t, homeDir+"/storage/logs.db", env.LogDBPath())
	})
	t.Run("maximal", func(t *testing.T) {
		_, envPath := newTestEnvPath(t)

		tolerance := 0.0
		testEnv := ConfigEnv{
			StorageDir:         "/a",
			RecordingsDir:      "/b",
			LogLevel:           "debug",
			StagingThreshold:   5,
			LookaheadTolerance: &tolerance,
			PlaybackSpeed:      2,
			MinFreeDiskMB:      1,
			MaxRecordingsMB:    1000,
			HomeDir:            "/c",
		}
		envYAML, err := yaml.Marshal(testEnv)
		require.NoError(t, err)

		env, err := NewConfigEnv(envPath, envYAML)
		require.NoError(t, err)

		testEnv.ConfigDir = filepath.Dir(envPath)
		require.Equal(t, &testEnv, env)
		require.Equal(t, log.LevelDebug, env.Level())
	})
	t.Run("unmarshalErr", func(t *testing.T) {
		_, err := NewConfigEnv("", []byte("&"))
		require.Error(t, err)
	})

	errorCases := map[string]struct {
		input string
		err   error
	}{
		"storageAbs":    {"storageDir: .", ErrPathNotAbsolute},
		"recordingsAbs": {"recordingsDir: rec", ErrPathNotAbsolute},
		"homeAbs":       {"homeDir: home", ErrPathNotAbsolute},
		"logLevel":      {"logLevel: loud", log.ErrInvalidLevel},
		"threshold":     {"stagingThreshold: -1", ErrInvalidValue},
		"tolerance":     {"lookaheadTolerance: -0.1", ErrInvalidValue},
		"speed":         {"playbackSpeed: -2", ErrInvalidValue},
	}
	for name, tc := range errorCases {
		t.Run(name, func(t *testing.T) {
			_, envPath := newTestEnvPath(t)
			_, err := NewConfigEnv(envPath, []byte(tc.input))
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestReadConfigEnv(t *testing.T) {
	homeDir, envPath := newTestEnvPath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(envPath), 0o700))
	require.NoError(t, os.WriteFile(envPath, []byte("playbackSpeed: 4\n"), 0o600))

	env, err := ReadConfigEnv(envPath)
	require.NoError(t, err)
	require.Equal(t, 4.0, env.PlaybackSpeed)

	require.NoError(t, env.PrepareEnvironment())
	require.DirExists(t, filepath.Join(homeDir, "storage", "recordings"))

	require.Equal(t, "/x.rec", env.RecordingPath("/x.rec"))
	require.Equal(t, filepath.Join(env.RecordingsDir, "x.rec"), env.RecordingPath("x.rec"))

	_, err = ReadConfigEnv(filepath.Join(homeDir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
