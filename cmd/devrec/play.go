// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"devrec"
	"devrec/pkg/device"
	"devrec/pkg/log"

	"github.com/spf13/cobra"
)

func playCommand(s *settings) *cobra.Command {
	var speed float64

	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Replay a recording into devices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, s, func(app *devrec.App) error {
				if !cmd.Flags().Changed("speed") {
					speed = app.Env.PlaybackSpeed
				}
				if speed <= 0 {
					return fmt.Errorf("speed must be positive: %v", speed)
				}
				return play(cmd.Context(), app, app.Env.RecordingPath(args[0]), speed)
			})
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 1, "playback speed")
	return cmd
}

// logSamples logs every sample emitted by the devices of m.
func logSamples(m *device.Manager, logger *log.Logger) device.CancelFunc {
	return m.Subscribe(func(d device.Device, added bool) {
		if !added {
			return
		}
		d.SubscribeSamples(func(d device.Device, s device.Sample) {
			logger.Debug().Src("play").Device(d.Name()).
				Msgf("%T objects %v at %v", s, s.IDs(), float64(s.Timestamp()))
		})
	})
}

func play(ctx context.Context, app *devrec.App, path string, speed float64) error {
	p := app.NewPlayer()
	defer p.Release()

	cancel := logSamples(app.Devices, app.Logger)
	defer cancel()

	if err := p.Initialize(path); err != nil {
		return err
	}
	if err := p.Start(speed); err != nil {
		return err
	}
	app.Logger.Info().Src("play").Msgf("playing %v at %vx, duration %v", path, speed, p.Duration())

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for p.IsPlaying() {
		select {
		case <-ctx.Done():
			return p.Stop()
		case <-ticker.C:
		}
	}
	app.Logger.Info().Src("play").Msg("playback finished")
	return nil
}

func stepCommand(s *settings) *cobra.Command {
	var frames int

	cmd := &cobra.Command{
		Use:   "step <file>",
		Short: "Replay a recording frame by frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, s, func(app *devrec.App) error {
				path := app.Env.RecordingPath(args[0])
				return step(cmd.Context(), cmd.OutOrStdout(), app, path, frames)
			})
		},
	}
	cmd.Flags().IntVarP(&frames, "frames", "n", 0, "number of frames, 0 plays all frames")
	return cmd
}

func step(ctx context.Context, out io.Writer, app *devrec.App, path string, frames int) error {
	p := app.NewPlayer()
	defer p.Release()

	cancel := logSamples(app.Devices, app.Logger)
	defer cancel()

	if err := p.Initialize(path); err != nil {
		return err
	}
	if len(p.FrameMediums()) == 0 {
		return fmt.Errorf("%v has no frame channel", path)
	}
	if err := p.Start(0); err != nil {
		return err
	}

	for n := 0; frames == 0 || n < frames; n++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t := p.PlayNextFrame()
		if !t.IsValid() {
			break
		}
		fmt.Fprintf(out, "frame %d: %.6f\n", n, float64(t))
	}
	return nil
}
