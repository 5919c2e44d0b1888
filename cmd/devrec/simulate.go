// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"devrec"
	"devrec/pkg/device"
	"devrec/pkg/geom"
	"devrec/pkg/media"
	"devrec/pkg/sample"
	"devrec/pkg/system"

	"github.com/spf13/cobra"
)

func simulateCommand(s *settings) *cobra.Command {
	var (
		duration time.Duration
		rate     float64
	)

	cmd := &cobra.Command{
		Use:   "simulate <file>",
		Short: "Record simulated devices and a simulated camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rate <= 0 {
				return fmt.Errorf("rate must be positive: %v", rate)
			}
			return withApp(cmd, s, func(app *devrec.App) error {
				return simulate(cmd.Context(), app, app.Env.RecordingPath(args[0]), duration, rate)
			})
		},
	}
	cmd.Flags().DurationVarP(&duration, "duration", "d", 5*time.Second, "recording duration")
	cmd.Flags().Float64VarP(&rate, "rate", "r", 30, "samples per second")
	return cmd
}

type simulation struct {
	orientation  *device.Emitter
	acceleration *device.Emitter
	gps          *device.Emitter
	camera       *media.LiveMedium
}

func newSimulation(m *device.Manager) (*simulation, error) {
	sim := &simulation{
		orientation:  device.NewEmitter("simulated orientation", device.TypeOrientation),
		acceleration: device.NewEmitter("simulated accelerometer", device.TypeAcceleration),
		gps:          device.NewEmitter("simulated gps", device.TypeGPS),
		camera:       media.NewLiveMedium("simulated camera"),
	}
	for _, d := range []*device.Emitter{sim.orientation, sim.acceleration, sim.gps} {
		if err := d.Start(); err != nil {
			return nil, err
		}
		if err := m.Add(d); err != nil {
			return nil, err
		}
	}
	identity := media.IdentityTransform
	sim.camera.SetDeviceTCamera(&identity)
	return sim, nil
}

const (
	simulatedWidth  = 64
	simulatedHeight = 48
)

var simulatedCamera = &media.Camera{
	Model:  "pinhole",
	Width:  simulatedWidth,
	Height: simulatedHeight,
	Fx:     50,
	Fy:     50,
	Mx:     simulatedWidth / 2,
	My:     simulatedHeight / 2,
}

// update posts one sample per device and a new frame, t is in seconds.
func (sim *simulation) update(t float64) error {
	ts := sample.Timestamp(t)
	header := device.Header{Time: ts, ObjectIDs: []uint32{0}}

	yaw := geom.NewQuaternionAxisAngle(geom.Vector3{Y: 1}, math.Mod(t, 2*math.Pi))
	err := sim.orientation.Post(&device.OrientationSample{
		Header:          header,
		ReferenceSystem: sample.ReferenceSystemDeviceInObject,
		Orientations:    []geom.Quaternion{yaw},
	})
	if err != nil {
		return err
	}

	err = sim.acceleration.Post(&device.AccelerationSample{
		Header:        header,
		Accelerations: []geom.Vector3{{X: 0.1 * math.Sin(t), Y: 9.81}},
	})
	if err != nil {
		return err
	}

	location := sample.UnknownLocation
	location.Latitude = 47.3769 + 0.0001*math.Sin(t/10)
	location.Longitude = 8.5417 + 0.0001*math.Cos(t/10)
	location.Altitude = 408
	err = sim.gps.Post(&device.GPSSample{
		Header:    header,
		Locations: []sample.Location{location},
	})
	if err != nil {
		return err
	}

	data := make([]byte, simulatedWidth*simulatedHeight)
	offset := int(t * 10)
	for i := range data {
		data[i] = byte(i%simulatedWidth + offset)
	}
	sim.camera.SetFrame(&media.Frame{
		Width:       simulatedWidth,
		Height:      simulatedHeight,
		PixelFormat: "Y8",
		Timestamp:   t,
		Data:        data,
	}, simulatedCamera)
	return nil
}

func simulate(
	ctx context.Context,
	app *devrec.App,
	path string,
	duration time.Duration,
	rate float64,
) error {
	if err := system.CheckFreeSpace(app.Env.RecordingsDir, app.Env.MinFreeDiskMB); err != nil {
		return err
	}

	if err := app.Storage.Purge(); err != nil {
		return err
	}

	loopCtx, cancelLoops := context.WithCancel(ctx)
	defer cancelLoops()
	go app.System.StatusLoop(loopCtx)
	go app.Storage.PurgeLoop(loopCtx, time.Minute)

	sim, err := newSimulation(app.Devices)
	if err != nil {
		return err
	}

	r := app.NewRecorder()
	defer r.Release()

	if err := r.AddFrameMedium(sim.camera); err != nil {
		return err
	}
	if err := r.Start(path); err != nil {
		return err
	}

	start := time.Now()
	ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case now := <-ticker.C:
			elapsed := now.Sub(start)
			if elapsed > duration {
				break loop
			}
			if err := sim.update(elapsed.Seconds()); err != nil {
				app.Logger.Error().Src("simulate").Msgf("%v", err)
			}
		}
	}

	if err := r.Stop(); err != nil {
		return err
	}
	for !r.HasStopped() {
		time.Sleep(10 * time.Millisecond)
	}
	app.Logger.Info().Src("simulate").Msgf("recorded %v to %v", duration, path)
	return nil
}
