// SPDX-License-Identifier: GPL-2.0-or-later

// Package player replays a recording. Device samples are forwarded to
// ad-hoc devices registered with the device manager, frames are pushed
// to pixel images.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"devrec/pkg/container"
	"devrec/pkg/device"
	"devrec/pkg/log"
	"devrec/pkg/media"
	"devrec/pkg/sample"
)

// ErrState operation is invalid in the current player state.
var ErrState = errors.New("invalid player state")

// DefaultLookaheadTolerance playback seconds read ahead of a frame.
const DefaultLookaheadTolerance = 0.5

// FrameCapacity frames kept by each pixel image.
const FrameCapacity = 30

// Option player option.
type Option func(*Player)

// WithLookaheadTolerance sets the lookahead tolerance in seconds.
func WithLookaheadTolerance(seconds float64) Option {
	return func(p *Player) {
		if seconds >= 0 {
			p.tolerance = seconds
		}
	}
}

// pending is a sample parked by the lookahead pass,
// a nil sample has already been dispatched.
type pending struct {
	channel container.ChannelID
	sample  sample.Sample
}

// Player replays one recording at a time.
type Player struct {
	usage     *Usage
	manager   *device.Manager
	logger    *log.Logger
	tolerance float64

	mu        sync.Mutex
	reader    *container.Reader
	filename  string
	reference container.ChannelID
	images    map[container.ChannelID]*media.PixelImage
	speed     float64
	started   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// Only used by the active driver, the caller in
	// stop-motion mode or the playback goroutine.
	pending []pending

	handlerMu sync.Mutex
	handlers  map[container.ChannelID]handler
	devices   []string
}

// New creates a player that registers its devices with manager.
func New(usage *Usage, manager *device.Manager, logger *log.Logger, opts ...Option) *Player {
	p := &Player{
		usage:     usage,
		manager:   manager,
		logger:    logger,
		tolerance: DefaultLookaheadTolerance,
		reference: container.InvalidChannelID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Initialize opens a recording and creates a pixel image for every
// frame channel. The first frame channel is the reference clock.
func (p *Player) Initialize(filename string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.reader != nil {
		return fmt.Errorf("%w: already initialized with %v", ErrState, p.filename)
	}
	if !p.usage.acquire() {
		return ErrExclusive
	}

	reader, err := container.Open(filename)
	if err != nil {
		p.usage.release()
		return err
	}
	for _, f := range sample.DeviceFactories() {
		if err := reader.RegisterSample(f().Type(), f); err != nil {
			reader.Close()
			p.usage.release()
			return err
		}
	}

	p.reader = reader
	p.filename = filename
	p.reference = container.InvalidChannelID
	p.images = make(map[container.ChannelID]*media.PixelImage)
	p.handlers = make(map[container.ChannelID]handler)

	for _, c := range reader.Channels() {
		if c.SampleType != sample.TypeFrame {
			continue
		}
		if p.reference == container.InvalidChannelID {
			p.reference = c.ID
		}
		image := media.NewPixelImage(fmt.Sprintf("player pixel medium %d", c.ID))
		image.SetCapacity(FrameCapacity)
		image.Start()
		p.images[c.ID] = image
	}

	p.logger.Info().Src("player").Msgf("opened %v, %d channels", filename, len(reader.Channels()))
	return nil
}

// Start starts playback from the beginning. With speed > 0 samples are
// replayed in the background at that speed, speed 0 selects stop-motion
// mode where the caller drives playback with PlayNextFrame.
func (p *Player) Start(speed float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.reader == nil {
		return fmt.Errorf("%w: not initialized", ErrState)
	}
	if speed < 0 {
		return fmt.Errorf("%w: negative speed: %v", ErrState, speed)
	}
	if p.started.Load() {
		return nil
	}
	// Wait for a finished playback goroutine.
	p.wg.Wait()

	if err := p.reader.Start(); err != nil {
		return err
	}
	p.pending = nil
	p.speed = speed
	p.started.Store(true)

	if speed > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		p.wg.Add(1)
		go p.run(ctx, speed)
	}
	return nil
}

// Stop stops playback and waits for the playback goroutine.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stop()
	return nil
}

func (p *Player) stop() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.wg.Wait()
	p.started.Store(false)
}

// IsPlaying returns true until playback is stopped or the recording ends.
func (p *Player) IsPlaying() bool {
	return p.started.Load()
}

// FrameMediums returns the pixel images in channel order.
func (p *Player) FrameMediums() []*media.PixelImage {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]container.ChannelID, 0, len(p.images))
	for id := range p.images {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	images := make([]*media.PixelImage, 0, len(ids))
	for _, id := range ids {
		images = append(images, p.images[id])
	}
	return images
}

// Duration returns the playback span of the recording.
func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.reader == nil {
		return 0
	}
	return p.reader.Duration()
}

// Release stops playback, removes the ad-hoc devices, stops the pixel
// images and releases the usage token. The player can be initialized again.
func (p *Player) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stop()
	if p.reader == nil {
		return
	}

	p.handlerMu.Lock()
	devices := p.devices
	p.devices = nil
	p.handlers = nil
	p.handlerMu.Unlock()

	for _, name := range devices {
		if err := p.manager.UnregisterAdhoc(name); err != nil {
			p.logger.Warn().Src("player").Device(name).Msgf("unregister: %v", err)
		}
	}
	for _, image := range p.images {
		image.Stop()
	}
	p.images = nil
	p.pending = nil

	if err := p.reader.Close(); err != nil {
		p.logger.Error().Src("player").Msgf("close %v: %v", p.filename, err)
	}
	p.reader = nil
	p.reference = container.InvalidChannelID
	p.usage.release()
}

// run is the continuous playback goroutine.
func (p *Player) run(ctx context.Context, speed float64) {
	defer p.wg.Done()
	defer p.started.Store(false)

	for {
		id, s, err := p.reader.Sample(ctx, speed)
		if err != nil {
			if errors.Is(err, sample.ErrFormat) {
				p.logger.Error().Src("player").Channel(uint32(id)).Msgf("%v", err)
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				p.logger.Error().Src("player").Msgf("read: %v", err)
			}
			p.logger.Debug().Src("player").Msg("playback finished")
			return
		}
		p.dispatch(id, s)
	}
}

// read returns the next decodable sample, false at the end of the recording.
func (p *Player) read() (container.ChannelID, sample.Sample, bool) {
	for {
		id, s, err := p.reader.Sample(context.Background(), 0)
		if err == nil {
			return id, s, true
		}
		if errors.Is(err, sample.ErrFormat) {
			p.logger.Error().Src("player").Channel(uint32(id)).Msgf("%v", err)
			continue
		}
		if !errors.Is(err, io.EOF) {
			p.logger.Error().Src("player").Msgf("read: %v", err)
		}
		return container.InvalidChannelID, nil, false
	}
}
