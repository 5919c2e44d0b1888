// SPDX-License-Identifier: GPL-2.0-or-later

// Package sample implements the binary sample codec.
//
// Every sample starts with its data and playback timestamps.
// All values are big-endian.
//
//  Base:
//     Data timestamp         float64
//     Playback timestamp     float64
//
//  Tracker header:
//     Reference system       int8
//
//  Measurement:
//     Object id count        uint32
//     Object ids             count * uint32
//     Payload count          uint32
//     Payload                count * payload
//
// Quaternions are stored as four float32 (w, x, y, z) and vectors as three
// float32 regardless of the precision used by the device layer.
package sample

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/icza/bitio"
)

// MaxMeasurements upper bound of any stored element count.
const MaxMeasurements = 1000000

// ErrFormat is returned when a sample cannot be decoded.
var ErrFormat = errors.New("invalid sample format")

// Timestamp seconds.
type Timestamp float64

// InvalidTimestamp is -math.MaxFloat64, it marks a missing timestamp
// such as the end of playback.
const InvalidTimestamp = Timestamp(-math.MaxFloat64)

// IsValid returns false for InvalidTimestamp.
func (t Timestamp) IsValid() bool {
	return t != InvalidTimestamp
}

// Sample a single serializable record.
type Sample interface {
	// Type unique sample type string.
	Type() string

	DataTimestamp() Timestamp

	// PlaybackTimestamp seconds since the recording started.
	PlaybackTimestamp() float64
	SetPlaybackTimestamp(float64)

	// WriteSample encodes the sample, any error is also kept in w.TryError.
	WriteSample(w *bitio.Writer) error
	ReadSample(r *bitio.Reader) error
}

// Base holds the timestamps common to all samples.
type Base struct {
	Data     Timestamp
	Playback float64
}

// DataTimestamp .
func (b *Base) DataTimestamp() Timestamp {
	return b.Data
}

// PlaybackTimestamp .
func (b *Base) PlaybackTimestamp() float64 {
	return b.Playback
}

// SetPlaybackTimestamp .
func (b *Base) SetPlaybackTimestamp(t float64) {
	b.Playback = t
}

// WriteBase encodes the timestamps.
func (b *Base) WriteBase(w *bitio.Writer) {
	writeFloat64(w, float64(b.Data))
	writeFloat64(w, b.Playback)
}

// ReadBase decodes the timestamps.
func (b *Base) ReadBase(r *bitio.Reader) {
	b.Data = Timestamp(readFloat64(r))
	b.Playback = readFloat64(r)
}

// Encode returns the binary representation of s.
func Encode(s Sample) ([]byte, error) {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	if err := s.WriteSample(w); err != nil {
		return nil, fmt.Errorf("encode %v: %w", s.Type(), err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Factory returns a new empty sample.
type Factory func() Sample

// Registry maps sample types to their factories.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// ErrDuplicateType sample type already registered.
var ErrDuplicateType = errors.New("sample type already registered")

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DeviceFactories returns the factories of the device and frame samples.
func DeviceFactories() []Factory {
	return []Factory{
		func() Sample { return &OrientationTracker3DOF{} },
		func() Sample { return &AccelerationSensor3DOF{} },
		func() Sample { return &GyroSensor3DOF{} },
		func() Sample { return &GravityTracker3DOF{} },
		func() Sample { return &PositionTracker3DOF{} },
		func() Sample { return &Tracker6DOF{} },
		func() Sample { return &GPSTracker{} },
		func() Sample { return &Frame{} },
	}
}

// NewDeviceRegistry returns a registry with the device and frame samples.
func NewDeviceRegistry() *Registry {
	r := NewRegistry()
	for _, f := range DeviceFactories() {
		if err := r.Register(f().Type(), f); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a factory for sampleType.
func (r *Registry) Register(sampleType string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[sampleType]; exists {
		return fmt.Errorf("%w: %v", ErrDuplicateType, sampleType)
	}
	r.factories[sampleType] = f
	return nil
}

// Has returns true if sampleType is registered.
func (r *Registry) Has(sampleType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[sampleType]
	return exists
}

// Decode decodes data as a sample of sampleType.
// The input must be consumed completely.
func (r *Registry) Decode(sampleType string, data []byte) (Sample, error) {
	r.mu.RLock()
	factory, exists := r.factories[sampleType]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: unknown sample type: %q", ErrFormat, sampleType)
	}

	s := factory()
	reader := bytes.NewReader(data)
	br := bitio.NewReader(reader)
	if err := s.ReadSample(br); err != nil {
		if errors.Is(err, ErrFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v: %v", ErrFormat, sampleType, err)
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: %v: %d trailing bytes", ErrFormat, sampleType, reader.Len())
	}
	return s, nil
}
