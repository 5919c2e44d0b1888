// SPDX-License-Identifier: GPL-2.0-or-later

package device

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ChangeCallback is called when a device is added or removed.
type ChangeCallback func(d Device, added bool)

// AdhocFactory creates an ad-hoc device.
type AdhocFactory func(name string, t Type) Device

// Manager errors.
var (
	ErrDeviceExists   = errors.New("device already exists")
	ErrDeviceNotFound = errors.New("device not found")
)

type adhocEntry struct {
	typ     Type
	factory AdhocFactory
}

// Manager keeps track of the available devices.
// Ad-hoc devices are instantiated on their first lookup.
type Manager struct {
	devices map[string]Device
	adhoc   map[string]adhocEntry

	nextSubID uint64
	subs      map[uint64]ChangeCallback
	mu        sync.Mutex
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		devices: make(map[string]Device),
		adhoc:   make(map[string]adhocEntry),
		subs:    make(map[uint64]ChangeCallback),
	}
}

// Add device and notify subscribers.
func (m *Manager) Add(d Device) error {
	m.mu.Lock()
	if _, exists := m.devices[d.Name()]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrDeviceExists, d.Name())
	}
	if _, exists := m.adhoc[d.Name()]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrDeviceExists, d.Name())
	}
	m.devices[d.Name()] = d
	callbacks := sortedCallbacks(m.subs)
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(d, true)
	}
	return nil
}

// Remove device and notify subscribers.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	d, exists := m.devices[name]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrDeviceNotFound, name)
	}
	delete(m.devices, name)
	callbacks := sortedCallbacks(m.subs)
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(d, false)
	}
	return nil
}

// RegisterAdhoc registers an ad-hoc device that is created on first lookup.
func (m *Manager) RegisterAdhoc(name string, t Type, factory AdhocFactory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.adhoc[name]; exists {
		return fmt.Errorf("%w: %v", ErrDeviceExists, name)
	}
	if _, exists := m.devices[name]; exists {
		return fmt.Errorf("%w: %v", ErrDeviceExists, name)
	}
	m.adhoc[name] = adhocEntry{typ: t, factory: factory}
	return nil
}

// UnregisterAdhoc unregisters an ad-hoc device, a created
// instance is stopped and removed.
func (m *Manager) UnregisterAdhoc(name string) error {
	m.mu.Lock()
	if _, exists := m.adhoc[name]; !exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrDeviceNotFound, name)
	}
	delete(m.adhoc, name)

	d, created := m.devices[name]
	delete(m.devices, name)
	callbacks := sortedCallbacks(m.subs)
	m.mu.Unlock()

	if !created {
		return nil
	}
	d.Stop() //nolint:errcheck
	for _, cb := range callbacks {
		cb(d, false)
	}
	return nil
}

// Device returns the named device, creating it if
// it is a registered ad-hoc device.
func (m *Manager) Device(name string) (Device, error) {
	m.mu.Lock()
	if d, exists := m.devices[name]; exists {
		m.mu.Unlock()
		return d, nil
	}
	entry, exists := m.adhoc[name]
	if !exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrDeviceNotFound, name)
	}

	d := entry.factory(name, entry.typ)
	m.devices[name] = d
	callbacks := sortedCallbacks(m.subs)
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(d, true)
	}
	return d, nil
}

// Devices returns all instantiated devices sorted by name.
func (m *Manager) Devices() []Device {
	m.mu.Lock()
	defer m.mu.Unlock()

	devices := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Name() < devices[j].Name()
	})
	return devices
}

// Subscribe to device changes, cb is called for
// every existing device before it returns.
func (m *Manager) Subscribe(cb ChangeCallback) CancelFunc {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = cb
	m.mu.Unlock()

	for _, d := range m.Devices() {
		cb(d, true)
	}

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}
