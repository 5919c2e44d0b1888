// SPDX-License-Identifier: GPL-2.0-or-later

package devrec

import (
	"context"

	"devrec/pkg/config"
	"devrec/pkg/device"
	"devrec/pkg/log"
)

type (
	envHook     func(*config.ConfigEnv)
	logHook     func(*log.Logger)
	devicesHook func(*device.Manager)
	appRunHook  func(context.Context, *App) error
)

type hookList struct {
	onEnv     []envHook
	onLog     []logHook
	onDevices []devicesHook
	onAppRun  []appRunHook
}

var hooks = &hookList{}

// RegisterEnvHook registers hook that's called when environment config is loaded.
func RegisterEnvHook(h envHook) {
	hooks.onEnv = append(hooks.onEnv, h)
}

// RegisterLogHook is used to grab the logger.
func RegisterLogHook(h logHook) {
	hooks.onLog = append(hooks.onLog, h)
}

// RegisterDevicesHook is called with the device manager before any
// command runs. Addons use it to add their own devices.
func RegisterDevicesHook(h devicesHook) {
	hooks.onDevices = append(hooks.onDevices, h)
}

// RegisterAppRunHook registers hook that's called when app runs.
func RegisterAppRunHook(h appRunHook) {
	hooks.onAppRun = append(hooks.onAppRun, h)
}

func (h *hookList) env(env *config.ConfigEnv) {
	for _, hook := range h.onEnv {
		hook(env)
	}
}

func (h *hookList) log(logger *log.Logger) {
	for _, hook := range h.onLog {
		hook(logger)
	}
}

func (h *hookList) devices(m *device.Manager) {
	for _, hook := range h.onDevices {
		hook(m)
	}
}

func (h *hookList) appRun(ctx context.Context, app *App) error {
	for _, hook := range h.onAppRun {
		if err := hook(ctx, app); err != nil {
			return err
		}
	}
	return nil
}
