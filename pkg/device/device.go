// SPDX-License-Identifier: GPL-2.0-or-later

// Package device provides in-process measurement and tracker devices,
// the samples they emit and the manager that announces them.
package device

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"devrec/pkg/sample"
)

// SampleCallback is called for every emitted sample.
type SampleCallback func(d Device, s Sample)

// ObjectCallback is called when a tracker finds or loses objects.
type ObjectCallback func(d Tracker, found []uint32, lost []uint32, t sample.Timestamp)

// CancelFunc cancels a subscription.
type CancelFunc func()

// Device measurement device.
type Device interface {
	Name() string
	Type() Type

	Start() error
	Stop() error
	IsStarted() bool

	SubscribeSamples(cb SampleCallback) CancelFunc
}

// Tracker device that tracks objects.
type Tracker interface {
	Device
	SubscribeObjects(cb ObjectCallback) CancelFunc
}

// Errors.
var (
	ErrNotStarted     = errors.New("device not started")
	ErrSampleMismatch = errors.New("sample does not match device type")
)

// Emitter is a device fed by its owner. It implements Tracker,
// object subscriptions are only meaningful for tracker types.
type Emitter struct {
	name string
	typ  Type

	started    bool
	nextSubID  uint64
	sampleSubs map[uint64]SampleCallback
	objectSubs map[uint64]ObjectCallback
	mu         sync.Mutex
}

// NewEmitter creates a stopped device.
func NewEmitter(name string, t Type) *Emitter {
	return &Emitter{
		name:       name,
		typ:        t,
		sampleSubs: make(map[uint64]SampleCallback),
		objectSubs: make(map[uint64]ObjectCallback),
	}
}

// NewReplayDevice creates a started device used to replay recorded samples.
func NewReplayDevice(name string, t Type) *Emitter {
	e := NewEmitter(name, t)
	e.started = true
	return e
}

// Name implements Device.
func (e *Emitter) Name() string { return e.name }

// Type implements Device.
func (e *Emitter) Type() Type { return e.typ }

// Start implements Device.
func (e *Emitter) Start() error {
	e.mu.Lock()
	e.started = true
	e.mu.Unlock()
	return nil
}

// Stop implements Device.
func (e *Emitter) Stop() error {
	e.mu.Lock()
	e.started = false
	e.mu.Unlock()
	return nil
}

// IsStarted implements Device.
func (e *Emitter) IsStarted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// SubscribeSamples implements Device.
func (e *Emitter) SubscribeSamples(cb SampleCallback) CancelFunc {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSubID
	e.nextSubID++
	e.sampleSubs[id] = cb

	return func() {
		e.mu.Lock()
		delete(e.sampleSubs, id)
		e.mu.Unlock()
	}
}

// SubscribeObjects implements Tracker.
func (e *Emitter) SubscribeObjects(cb ObjectCallback) CancelFunc {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSubID
	e.nextSubID++
	e.objectSubs[id] = cb

	return func() {
		e.mu.Lock()
		delete(e.objectSubs, id)
		e.mu.Unlock()
	}
}

// Subscribers returns the number of sample subscribers.
func (e *Emitter) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sampleSubs)
}

// Post sends s to all subscribers, the device must be
// started and s must match the device type.
func (e *Emitter) Post(s Sample) error {
	if !e.typ.Accepts(s) {
		return fmt.Errorf("%w: %T %v", ErrSampleMismatch, s, e.typ)
	}

	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return ErrNotStarted
	}
	callbacks := sortedCallbacks(e.sampleSubs)
	e.mu.Unlock()

	for _, cb := range callbacks {
		cb(e, s)
	}
	return nil
}

// PostObjects sends found and lost objects to all object subscribers.
func (e *Emitter) PostObjects(found []uint32, lost []uint32, t sample.Timestamp) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return ErrNotStarted
	}
	callbacks := sortedCallbacks(e.objectSubs)
	e.mu.Unlock()

	for _, cb := range callbacks {
		cb(e, found, lost, t)
	}
	return nil
}

// sortedCallbacks returns the callbacks in subscription order.
func sortedCallbacks[T any](subs map[uint64]T) []T {
	ids := make([]uint64, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	callbacks := make([]T, 0, len(ids))
	for _, id := range ids {
		callbacks = append(callbacks, subs[id])
	}
	return callbacks
}
