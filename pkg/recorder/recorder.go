// SPDX-License-Identifier: GPL-2.0-or-later

// Package recorder records device samples and media frames into a container.
//
// Device callbacks append samples to a staging buffer, full buffers are moved
// as one batch to the queue. A single goroutine drains the queue, polls the
// frame mediums and performs all encoding and file I/O.
package recorder

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"devrec/pkg/container"
	"devrec/pkg/device"
	"devrec/pkg/log"
	"devrec/pkg/media"
	"devrec/pkg/sample"
)

// State recorder state.
type State int32

// States, transitions are one-way.
const (
	StateIdle State = iota
	StateRecording
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("unknown(%d)", int32(s))
}

// Errors.
var (
	ErrState         = errors.New("invalid recorder state")
	ErrUnknownMedium = errors.New("unknown frame medium")
)

// DefaultStagingThreshold samples staged before they are queued.
const DefaultStagingThreshold = 20

const idleSleep = 1 * time.Millisecond

// Option recorder option.
type Option func(*Recorder)

// WithStagingThreshold sets the staging buffer size.
func WithStagingThreshold(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.threshold = n
		}
	}
}

// sender is a subscribed device.
type sender struct {
	device  device.Device
	cancels []device.CancelFunc

	// Set when the device is removed, queued samples are discarded.
	invalid atomic.Bool

	// Only accessed by the writer goroutine.
	channel container.ChannelID
}

type entry struct {
	sender  *sender
	sample  device.Sample
	arrival time.Time
}

type extraEntry struct {
	channel container.ChannelID
	sample  sample.Sample
}

type mediumEntry struct {
	medium media.FrameMedium
	refs   int

	// Only accessed by the writer goroutine.
	channel       container.ChannelID
	hasLast       bool
	lastTimestamp float64
	lastCamera    *media.Camera
	lastTransform *media.Transform
}

// Recorder records samples of every device announced by the manager.
type Recorder struct {
	logger    *log.Logger
	writer    *container.Writer
	threshold int

	state         atomic.Int32
	stopRequested atomic.Bool
	done          chan struct{}

	// Guards state changes, senders and mediums.
	mu            sync.Mutex
	started       bool
	released      bool
	senders       map[string]*sender
	mediums       map[string]*mediumEntry
	cancelManager device.CancelFunc

	stagingMu sync.Mutex
	staging   []entry

	queueMu sync.Mutex
	queue   [][]entry

	extraMu sync.Mutex
	extras  []extraEntry
}

// New creates an idle recorder subscribed to the device manager.
func New(manager *device.Manager, logger *log.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		logger:    logger,
		writer:    container.NewWriter(),
		threshold: DefaultStagingThreshold,
		done:      make(chan struct{}),
		senders:   make(map[string]*sender),
		mediums:   make(map[string]*mediumEntry),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.cancelManager = manager.Subscribe(r.onDeviceChange)
	return r
}

// State returns the current state.
func (r *Recorder) State() State {
	return State(r.state.Load())
}

// HasStopped returns true once the writer goroutine has finished.
func (r *Recorder) HasStopped() bool {
	return r.State() == StateStopped
}

// Start recording to filename. Starting a recording recorder is a no-op.
func (r *Recorder) Start(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.State() {
	case StateRecording:
		return nil
	case StateStopping, StateStopped:
		return fmt.Errorf("%w: start: %v", ErrState, r.State())
	}

	if err := r.writer.Start(filename); err != nil {
		return err
	}

	r.state.Store(int32(StateRecording))
	r.started = true
	go r.run()

	r.logger.Info().Src("recorder").Msgf("recording to %v", filename)
	return nil
}

// Stop recording. Returns immediately, samples received before
// Stop are still written. Use HasStopped to wait for completion.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop()
}

func (r *Recorder) stop() error {
	switch r.State() {
	case StateIdle:
		return fmt.Errorf("%w: stop: %v", ErrState, StateIdle)
	case StateStopping, StateStopped:
		return nil
	}
	r.state.Store(int32(StateStopping))

	// Wait for producers that saw the old state.
	r.stagingMu.Lock()
	if len(r.staging) != 0 {
		r.pushBatch(r.staging)
		r.staging = nil
	}
	r.stagingMu.Unlock()

	r.extraMu.Lock()
	r.stopRequested.Store(true)
	r.extraMu.Unlock()
	return nil
}

// Release stops the recorder, waits for the writer goroutine to
// exit and drops all subscriptions. The recorder cannot be reused.
func (r *Recorder) Release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	r.stop() //nolint:errcheck
	started := r.started
	r.mu.Unlock()

	if started {
		<-r.done
	} else {
		r.writer.Close() //nolint:errcheck
		r.state.Store(int32(StateStopped))
	}

	r.cancelManager()

	r.mu.Lock()
	for _, s := range r.senders {
		s.invalid.Store(true)
		for _, cancel := range s.cancels {
			cancel()
		}
	}
	r.senders = make(map[string]*sender)
	r.mediums = make(map[string]*mediumEntry)
	r.mu.Unlock()
}

func (r *Recorder) onDeviceChange(d device.Device, added bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return
	}

	if !added {
		s, exists := r.senders[d.Name()]
		if !exists {
			return
		}
		s.invalid.Store(true)
		for _, cancel := range s.cancels {
			cancel()
		}
		delete(r.senders, d.Name())
		r.logger.Debug().Src("recorder").Device(d.Name()).Msg("device removed")
		return
	}

	if _, exists := r.senders[d.Name()]; exists {
		return
	}
	s := &sender{
		device:  d,
		channel: container.InvalidChannelID,
	}
	s.cancels = append(s.cancels, d.SubscribeSamples(func(_ device.Device, ds device.Sample) {
		r.onSample(s, ds)
	}))
	if tracker, ok := d.(device.Tracker); ok && d.Type().IsTracker() {
		// Found and lost objects are not recorded.
		s.cancels = append(s.cancels, tracker.SubscribeObjects(
			func(device.Tracker, []uint32, []uint32, sample.Timestamp) {}))
	}
	r.senders[d.Name()] = s
	r.logger.Debug().Src("recorder").Device(d.Name()).Msgf("subscribed to %v", d.Type())
}

// onSample is called from device goroutines.
func (r *Recorder) onSample(s *sender, ds device.Sample) {
	if r.State() != StateRecording {
		return
	}
	arrival := time.Now()

	r.stagingMu.Lock()
	defer r.stagingMu.Unlock()

	if r.State() != StateRecording {
		return
	}
	r.staging = append(r.staging, entry{sender: s, sample: ds, arrival: arrival})
	if len(r.staging) >= r.threshold {
		r.pushBatch(r.staging)
		r.staging = make([]entry, 0, r.threshold)
	}
}

// pushBatch must be called with stagingMu held to keep batches in order.
func (r *Recorder) pushBatch(batch []entry) {
	r.queueMu.Lock()
	r.queue = append(r.queue, batch)
	r.queueMu.Unlock()
}

func (r *Recorder) popBatch() []entry {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	if len(r.queue) == 0 {
		return nil
	}
	batch := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	return batch
}

func (r *Recorder) queueEmpty() bool {
	r.queueMu.Lock()
	empty := len(r.queue) == 0
	r.queueMu.Unlock()

	r.extraMu.Lock()
	defer r.extraMu.Unlock()
	return empty && len(r.extras) == 0
}

// AddFrameMedium adds a frame medium, a medium added
// multiple times is recorded once.
func (r *Recorder) AddFrameMedium(m media.FrameMedium) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return fmt.Errorf("%w: released", ErrState)
	}
	if e, exists := r.mediums[m.URL()]; exists {
		e.refs++
		return nil
	}
	r.mediums[m.URL()] = &mediumEntry{
		medium:  m,
		refs:    1,
		channel: container.InvalidChannelID,
	}
	return nil
}

// RemoveFrameMedium removes one reference of a frame medium.
func (r *Recorder) RemoveFrameMedium(m media.FrameMedium) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.mediums[m.URL()]
	if !exists {
		return fmt.Errorf("%w: %v", ErrUnknownMedium, m.URL())
	}
	e.refs--
	if e.refs == 0 {
		delete(r.mediums, m.URL())
	}
	return nil
}

// AddExtraChannel adds a caller defined channel.
func (r *Recorder) AddExtraChannel(
	sampleType string,
	name string,
	contentType string,
) (container.ChannelID, error) {
	return r.writer.AddChannel(sampleType, name, contentType)
}

// AddExtraDataSample queues a sample for a channel created by AddExtraChannel.
// The playback timestamp is set to the time since the recording started.
func (r *Recorder) AddExtraDataSample(id container.ChannelID, s sample.Sample) error {
	r.extraMu.Lock()
	defer r.extraMu.Unlock()

	if state := r.State(); state != StateRecording {
		return fmt.Errorf("%w: add sample: %v", ErrState, state)
	}
	if _, exists := r.writer.ChannelConfiguration(id); !exists {
		return fmt.Errorf("%w: %d", container.ErrUnknownChannel, id)
	}

	s.SetPlaybackTimestamp(time.Since(r.writer.StartTime()).Seconds())
	r.extras = append(r.extras, extraEntry{channel: id, sample: s})
	return nil
}

func (r *Recorder) popExtra() (extraEntry, bool) {
	r.extraMu.Lock()
	defer r.extraMu.Unlock()

	if len(r.extras) == 0 {
		return extraEntry{}, false
	}
	e := r.extras[0]
	r.extras = r.extras[1:]
	return e, true
}
