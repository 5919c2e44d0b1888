// SPDX-License-Identifier: GPL-2.0-or-later

package devrec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"devrec/pkg/config"
	"devrec/pkg/device"
	"devrec/pkg/log"

	"github.com/stretchr/testify/require"
)

func writeTestEnv(t *testing.T, env string) string {
	t.Helper()
	homeDir := t.TempDir()
	envPath := filepath.Join(homeDir, "configs", "env.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(envPath), 0o700))
	require.NoError(t, os.WriteFile(envPath, []byte(env), 0o600))
	return envPath
}

func TestApp(t *testing.T) {
	envPath := writeTestEnv(t, "stagingThreshold: 3\nlookaheadTolerance: 0.25\n")

	var calls []string
	h := &hookList{}
	h.onEnv = append(h.onEnv, func(env *config.ConfigEnv) {
		require.Equal(t, 3, env.StagingThreshold)
		calls = append(calls, "env")
	})
	h.onLog = append(h.onLog, func(*log.Logger) {
		calls = append(calls, "log")
	})
	h.onDevices = append(h.onDevices, func(m *device.Manager) {
		require.NoError(t, m.Add(device.NewEmitter("addon", device.TypeGPS)))
		calls = append(calls, "devices")
	})
	h.onAppRun = append(h.onAppRun, func(context.Context, *App) error {
		calls = append(calls, "run")
		return nil
	})

	app, err := newApp(envPath, &sync.WaitGroup{}, h)
	require.NoError(t, err)
	require.Equal(t, 0.25, *app.Env.LookaheadTolerance)

	require.NoError(t, app.Start(context.Background(), false))
	require.Equal(t, []string{"env", "log", "devices", "run"}, calls)
	require.DirExists(t, app.Env.RecordingsDir)
	require.FileExists(t, app.Env.LogDBPath())

	_, err = app.Devices.Device("addon")
	require.NoError(t, err)

	r := app.NewRecorder()
	r.Release()

	p := app.NewPlayer()
	p.Release()
	require.False(t, app.Usage.InUse())

	app.Stop()
	app.Stop()
}

func TestAppErrors(t *testing.T) {
	t.Run("missingEnv", func(t *testing.T) {
		_, err := newApp(filepath.Join(t.TempDir(), "env.yaml"), &sync.WaitGroup{}, &hookList{})
		require.ErrorIs(t, err, os.ErrNotExist)
	})
	t.Run("invalidEnv", func(t *testing.T) {
		envPath := writeTestEnv(t, "logLevel: loud\n")
		_, err := newApp(envPath, &sync.WaitGroup{}, &hookList{})
		require.ErrorIs(t, err, log.ErrInvalidLevel)
	})
	t.Run("runHook", func(t *testing.T) {
		errMock := errors.New("mock")
		h := &hookList{}
		h.onAppRun = append(h.onAppRun, func(context.Context, *App) error {
			return errMock
		})

		app, err := newApp(writeTestEnv(t, ""), &sync.WaitGroup{}, h)
		require.NoError(t, err)
		require.ErrorIs(t, app.Start(context.Background(), false), errMock)
		app.Stop()
	})
}
