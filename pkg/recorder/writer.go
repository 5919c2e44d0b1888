// SPDX-License-Identifier: GPL-2.0-or-later

package recorder

import (
	"time"

	"devrec/pkg/container"
	"devrec/pkg/device"
	"devrec/pkg/sample"
)

// run is the writer goroutine.
func (r *Recorder) run() {
	defer close(r.done)

	for {
		produced := false

		if batch := r.popBatch(); batch != nil {
			for _, e := range batch {
				r.recordDeviceSample(e)
			}
			produced = true
		}
		// Mediums are not polled once stopping.
		if !r.stopRequested.Load() && r.recordFrames() {
			produced = true
		}
		if e, exists := r.popExtra(); exists {
			if err := r.writer.AddSample(e.channel, e.sample); err != nil {
				r.logger.Error().Src("recorder").Channel(uint32(e.channel)).
					Msgf("could not write sample: %v", err)
			}
			produced = true
		}

		if produced {
			if err := r.writer.Flush(); err != nil {
				r.logger.Error().Src("recorder").Msgf("flush: %v", err)
			}
			continue
		}

		if r.stopRequested.Load() && r.queueEmpty() {
			break
		}
		time.Sleep(idleSleep)
	}

	if err := r.writer.Close(); err != nil {
		r.logger.Error().Src("recorder").Msgf("close: %v", err)
	}
	r.logger.Info().Src("recorder").Msg("recording stopped")
	r.state.Store(int32(StateStopped))
}

func (r *Recorder) playback(t time.Time) float64 {
	return t.Sub(r.writer.StartTime()).Seconds()
}

func (r *Recorder) recordDeviceSample(e entry) {
	if e.sender.invalid.Load() {
		return
	}

	s, err := device.ToSample(e.sample, r.playback(e.arrival))
	if err != nil {
		r.logger.Error().Src("recorder").Device(e.sender.device.Name()).Msgf("%v", err)
		return
	}

	if e.sender.channel == container.InvalidChannelID {
		d := e.sender.device
		id, err := r.writer.AddChannel(s.Type(), d.Name(), d.Type().String())
		if err != nil {
			r.logger.Error().Src("recorder").Device(d.Name()).
				Msgf("could not add channel: %v", err)
			return
		}
		e.sender.channel = id
		r.logger.Debug().Src("recorder").Device(d.Name()).Channel(uint32(id)).Msg("channel added")
	}

	if err := r.writer.AddSample(e.sender.channel, s); err != nil {
		r.logger.Error().Src("recorder").Channel(uint32(e.sender.channel)).
			Msgf("could not write sample: %v", err)
	}
}

// recordFrames records frames that are newer than the last recorded
// frame of each medium. Returns true if a frame was recorded.
func (r *Recorder) recordFrames() bool {
	r.mu.Lock()
	mediums := make([]*mediumEntry, 0, len(r.mediums))
	for _, m := range r.mediums {
		mediums = append(mediums, m)
	}
	r.mu.Unlock()

	recorded := false
	for _, m := range mediums {
		frame, camera := m.medium.Frame()
		if !frame.IsValid() {
			continue
		}
		if m.hasLast && frame.Timestamp <= m.lastTimestamp {
			continue
		}

		if m.channel == container.InvalidChannelID {
			name := "FrameMedium," + m.medium.URL()
			id, err := r.writer.AddChannel(sample.TypeFrame, name, container.ContentTypeFrame)
			if err != nil {
				r.logger.Error().Src("recorder").Msgf("could not add channel %v: %v", name, err)
				continue
			}
			m.channel = id
		}

		s := &sample.Frame{
			Base: sample.Base{
				Data:     sample.Timestamp(frame.Timestamp),
				Playback: r.playback(time.Now()),
			},
			Frame: *frame,
		}
		if camera != nil && !camera.Equal(m.lastCamera) {
			s.Camera = camera
		}
		transform := m.medium.DeviceTCamera()
		if transform != nil && !transform.Equal(m.lastTransform) {
			s.DeviceTCamera = transform
		}

		if err := r.writer.AddSample(m.channel, s); err != nil {
			r.logger.Error().Src("recorder").Channel(uint32(m.channel)).
				Msgf("could not write frame: %v", err)
			continue
		}
		if s.Camera != nil {
			m.lastCamera = s.Camera
		}
		if s.DeviceTCamera != nil {
			m.lastTransform = s.DeviceTCamera
		}
		m.hasLast = true
		m.lastTimestamp = frame.Timestamp
		recorded = true
	}
	return recorded
}
