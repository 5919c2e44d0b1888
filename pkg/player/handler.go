// SPDX-License-Identifier: GPL-2.0-or-later

package player

import (
	"fmt"

	"devrec/pkg/container"
	"devrec/pkg/device"
	"devrec/pkg/sample"
)

// handler consumes the samples of one channel.
type handler interface {
	handle(s sample.Sample)
}

type handlerFactory func(p *Player, id container.ChannelID) handler

// handlerFactories by sample type.
var handlerFactories = map[string]handlerFactory{
	sample.TypeFrame:                  newFrameHandler,
	sample.TypeOrientationTracker3DOF: deviceHandlerFactory("OrientationTracker3DOF"),
	sample.TypeAccelerationSensor3DOF: deviceHandlerFactory("AccelerationSensor3DOF"),
	sample.TypeGyroSensor3DOF:         deviceHandlerFactory("GyroSensor3DOF"),
	sample.TypeGravityTracker3DOF:     deviceHandlerFactory("GravityTracker3DOF"),
	sample.TypePositionTracker3DOF:    deviceHandlerFactory("PositionTracker3DOF"),
	sample.TypeTracker6DOF:            deviceHandlerFactory("Tracker6DOF"),
	sample.TypeGPSTracker:             deviceHandlerFactory("GPSTracker"),
}

func newReplayDevice(name string, t device.Type) device.Device {
	return device.NewReplayDevice(name, t)
}

// constructors of the devices that can be replayed.
var constructors = map[device.Type]device.AdhocFactory{
	device.TypeOrientation:        newReplayDevice,
	device.TypeAcceleration:       newReplayDevice,
	device.TypeLinearAcceleration: newReplayDevice,
	device.TypeGyroRaw:            newReplayDevice,
	device.TypeGyroUnbiased:       newReplayDevice,
	device.TypeGravity:            newReplayDevice,
	device.TypePosition:           newReplayDevice,
	device.Type6DOF:               newReplayDevice,
	device.TypeGPS:                newReplayDevice,
}

// poster is a device that replays samples.
type poster interface {
	device.Device
	Post(device.Sample) error
}

// dispatch passes s to the handler of its channel,
// the handler is bound on the first sample.
func (p *Player) dispatch(id container.ChannelID, s sample.Sample) {
	p.handlerMu.Lock()
	defer p.handlerMu.Unlock()

	if p.handlers == nil {
		return
	}
	h, exists := p.handlers[id]
	if !exists {
		h = p.newHandler(id, s.Type())
		p.handlers[id] = h
	}
	h.handle(s)
}

func (p *Player) newHandler(id container.ChannelID, sampleType string) handler {
	factory, exists := handlerFactories[sampleType]
	if !exists {
		p.logger.Warn().Src("player").Channel(uint32(id)).
			Msgf("no handler for sample type %q", sampleType)
		return discardHandler{}
	}
	return factory(p, id)
}

type discardHandler struct{}

func (discardHandler) handle(sample.Sample) {}

type frameHandler struct {
	p  *Player
	id container.ChannelID
}

func newFrameHandler(p *Player, id container.ChannelID) handler {
	return &frameHandler{p: p, id: id}
}

func (h *frameHandler) handle(s sample.Sample) {
	f, ok := s.(*sample.Frame)
	if !ok {
		return
	}
	image, exists := h.p.images[h.id]
	if !exists {
		return
	}

	frame := f.Frame
	if !image.SetPixelImage(&frame, f.Camera) {
		h.p.logger.Debug().Src("player").Channel(uint32(h.id)).Msg("frame dropped, medium stopped")
	}
	if f.DeviceTCamera != nil {
		image.SetDeviceTCamera(f.DeviceTCamera)
	}
}

type deviceHandler struct {
	p    *Player
	id   container.ChannelID
	kind string

	device poster
	failed bool
}

func deviceHandlerFactory(kind string) handlerFactory {
	return func(p *Player, id container.ChannelID) handler {
		return &deviceHandler{p: p, id: id, kind: kind}
	}
}

func (h *deviceHandler) handle(s sample.Sample) {
	ds, err := device.FromSample(s)
	if err != nil {
		h.p.logger.Error().Src("player").Channel(uint32(h.id)).Msgf("%v", err)
		return
	}

	if h.device == nil {
		if h.failed {
			return
		}
		d, err := h.p.ensureDevice(h.id, h.kind, ds)
		if err != nil {
			h.failed = true
			h.p.logger.Error().Src("player").Channel(uint32(h.id)).
				Msgf("could not create device: %v", err)
			return
		}
		h.device = d
	}

	if err := h.device.Post(ds); err != nil {
		h.p.logger.Error().Src("player").Device(h.device.Name()).Msgf("%v", err)
	}
}

// ensureDevice registers and starts the ad-hoc device of a channel.
// The device type is parsed from the channel content type and
// falls back to the default type of the sample.
func (p *Player) ensureDevice(id container.ChannelID, kind string, ds device.Sample) (poster, error) {
	c, exists := p.reader.ChannelConfiguration(id)
	if !exists {
		return nil, fmt.Errorf("%w: %d", container.ErrUnknownChannel, id)
	}

	t, exists := device.DefaultType(c.SampleType)
	parsed, err := device.ParseType(c.ContentType)
	switch {
	case err == nil && parsed.Accepts(ds):
		t = parsed
	case !exists:
		return nil, fmt.Errorf("no device type for channel: %q %q", c.SampleType, c.ContentType)
	default:
		p.logger.Warn().Src("player").Channel(uint32(id)).
			Msgf("invalid content type %q, using %v", c.ContentType, t)
	}

	constructor, exists := constructors[t]
	if !exists {
		return nil, fmt.Errorf("%w: unsupported device: %v", device.ErrContentType, t)
	}

	name := fmt.Sprintf("%s_%d", kind, id)
	if err := p.manager.RegisterAdhoc(name, t, constructor); err != nil {
		return nil, err
	}
	p.devices = append(p.devices, name)

	d, err := p.manager.Device(name)
	if err != nil {
		return nil, err
	}
	if err := d.Start(); err != nil {
		return nil, err
	}
	replay, ok := d.(poster)
	if !ok {
		return nil, fmt.Errorf("device %v cannot replay samples", name)
	}

	p.logger.Info().Src("player").Device(name).Msgf("recording contains device %v", t)
	return replay, nil
}
