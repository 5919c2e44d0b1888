// SPDX-License-Identifier: GPL-2.0-or-later

// Package media provides the frame types exchanged with the recorder and the
// player, frame mediums that the recorder polls and pixel images that the
// player pushes replayed frames into.
package media

import (
	"math"
	"sync"
)

// Frame a single image.
type Frame struct {
	Width       uint32
	Height      uint32
	PixelFormat string
	Timestamp   float64 // Seconds.
	Data        []byte
}

// IsValid returns true if the frame holds an image.
func (f *Frame) IsValid() bool {
	return f != nil && f.Width != 0 && f.Height != 0
}

// Camera pinhole camera profile.
type Camera struct {
	Model  string
	Width  uint32
	Height uint32
	Fx     float64
	Fy     float64
	Mx     float64
	My     float64
}

// Equal returns true if both cameras describe the same profile.
func (c *Camera) Equal(other *Camera) bool {
	if c == nil || other == nil {
		return c == other
	}
	return *c == *other
}

// Transform 4x4 column-major homogenous transformation.
type Transform [16]float64

// IdentityTransform .
var IdentityTransform = Transform{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

const weakEps = 1e-6

// Equal compares the elements with a weak epsilon.
func (t *Transform) Equal(other *Transform) bool {
	if t == nil || other == nil {
		return t == other
	}
	for i := range t {
		if math.Abs(t[i]-other[i]) > weakEps {
			return false
		}
	}
	return true
}

// FrameMedium is a source of frames, the recorder polls it for new frames.
type FrameMedium interface {
	URL() string

	// Frame returns the latest frame and its camera profile,
	// camera may be nil, frame is nil if no frame exists yet.
	Frame() (*Frame, *Camera)

	// DeviceTCamera returns the transformation between device and camera,
	// nil if unknown.
	DeviceTCamera() *Transform
}

// LiveMedium is a FrameMedium fed by the caller.
type LiveMedium struct {
	url string

	frame         *Frame
	camera        *Camera
	deviceTCamera *Transform
	mu            sync.Mutex
}

// NewLiveMedium creates a medium without frames.
func NewLiveMedium(url string) *LiveMedium {
	return &LiveMedium{url: url}
}

// URL implements FrameMedium.
func (m *LiveMedium) URL() string {
	return m.url
}

// Frame implements FrameMedium.
func (m *LiveMedium) Frame() (*Frame, *Camera) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame, m.camera
}

// DeviceTCamera implements FrameMedium.
func (m *LiveMedium) DeviceTCamera() *Transform {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deviceTCamera
}

// SetFrame replaces the current frame.
func (m *LiveMedium) SetFrame(frame *Frame, camera *Camera) {
	m.mu.Lock()
	m.frame = frame
	m.camera = camera
	m.mu.Unlock()
}

// SetDeviceTCamera sets the device to camera transformation.
func (m *LiveMedium) SetDeviceTCamera(t *Transform) {
	m.mu.Lock()
	m.deviceTCamera = t
	m.mu.Unlock()
}
