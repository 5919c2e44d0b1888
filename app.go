// SPDX-License-Identifier: GPL-2.0-or-later

package devrec

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"devrec/pkg/config"
	"devrec/pkg/device"
	"devrec/pkg/log"
	"devrec/pkg/player"
	"devrec/pkg/recorder"
	"devrec/pkg/storage"
	"devrec/pkg/system"
)

// App is the main application struct.
type App struct {
	WG      *sync.WaitGroup
	Logger  *log.Logger
	LogDB   *log.DB
	Env     config.ConfigEnv
	Devices *device.Manager
	Usage   *player.Usage
	System  *system.System
	Storage *storage.Manager

	hooks  *hookList
	cancel context.CancelFunc
}

// NewApp loads the environment configuration. If envPath
// is empty the defaults relative to the working directory are used.
func NewApp(envPath string) (*App, error) {
	return newApp(envPath, &sync.WaitGroup{}, hooks)
}

func newApp(envPath string, wg *sync.WaitGroup, hooks *hookList) (*App, error) {
	// Environment config.
	var env *config.ConfigEnv
	if envPath == "" {
		path, err := filepath.Abs(filepath.Join("configs", "env.yaml"))
		if err != nil {
			return nil, fmt.Errorf("could not get working directory: %w", err)
		}
		env, err = config.NewConfigEnv(path, nil)
		if err != nil {
			return nil, fmt.Errorf("could not get environment config: %w", err)
		}
	} else {
		path, err := filepath.Abs(envPath)
		if err != nil {
			return nil, fmt.Errorf("could not get absolute path of env.yaml: %w", err)
		}
		env, err = config.ReadConfigEnv(path)
		if err != nil {
			return nil, fmt.Errorf("could not get environment config: %w", err)
		}
	}
	hooks.env(env)

	// Logs.
	logger := log.NewLogger(wg)
	logDB := log.NewDB(env.LogDBPath(), wg)
	hooks.log(logger)

	devices := device.NewManager()
	hooks.devices(devices)

	return &App{
		WG:      wg,
		Logger:  logger,
		LogDB:   logDB,
		Env:     *env,
		Devices: devices,
		Usage:   player.NewUsage(),
		System:  system.New(env.RecordingsDir, logger),
		Storage: storage.NewManager(env.RecordingsDir, env.MaxRecordingsMB, logger),
		hooks:   hooks,
	}, nil
}

// Start prepares the storage directories and starts the logger.
// Logs are printed to stdout if stdout is true.
func (app *App) Start(ctx context.Context, stdout bool) error {
	if err := app.Env.PrepareEnvironment(); err != nil {
		return fmt.Errorf("could not prepare environment: %w", err)
	}

	ctx, app.cancel = context.WithCancel(ctx)
	app.Logger.Start(ctx)

	if stdout {
		app.WG.Add(1)
		go func() {
			app.Logger.LogToStdout(ctx, app.Env.Level())
			app.WG.Done()
		}()
	}

	if err := app.LogDB.Init(ctx); err != nil {
		// Continue even if log database is corrupt.
		time.Sleep(10 * time.Millisecond)
		app.Logger.Error().Src("app").Msgf("could not initialize log database: %v", err)
	} else {
		go app.LogDB.SaveLogs(ctx, app.Logger)
		time.Sleep(10 * time.Millisecond)
	}

	return app.hooks.appRun(ctx, app)
}

// Stop stops the logger and waits for the log database to close.
func (app *App) Stop() {
	if app.cancel != nil {
		app.cancel()
	}
	app.WG.Wait()
}

// NewRecorder returns a recorder of the app devices.
func (app *App) NewRecorder() *recorder.Recorder {
	return recorder.New(
		app.Devices,
		app.Logger,
		recorder.WithStagingThreshold(app.Env.StagingThreshold),
	)
}

// NewPlayer returns a player that replays into the app devices.
func (app *App) NewPlayer() *player.Player {
	return player.New(
		app.Usage,
		app.Devices,
		app.Logger,
		player.WithLookaheadTolerance(*app.Env.LookaheadTolerance),
	)
}
