// SPDX-License-Identifier: GPL-2.0-or-later

package media

import "sync"

// PixelImage is a frame medium fed with pushed frames.
// It keeps the latest frames up to its capacity.
type PixelImage struct {
	name     string
	capacity int

	frames        []*Frame
	camera        *Camera
	deviceTCamera *Transform
	started       bool
	mu            sync.Mutex
}

// NewPixelImage creates a stopped pixel image with capacity 1.
func NewPixelImage(name string) *PixelImage {
	return &PixelImage{
		name:     name,
		capacity: 1,
	}
}

// Name returns the medium name.
func (p *PixelImage) Name() string {
	return p.name
}

// URL implements FrameMedium.
func (p *PixelImage) URL() string {
	return p.name
}

// SetCapacity sets the number of frames kept.
func (p *PixelImage) SetCapacity(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.capacity = capacity
	if len(p.frames) > capacity {
		p.frames = p.frames[len(p.frames)-capacity:]
	}
}

// Start the medium, frames are dropped while stopped.
func (p *PixelImage) Start() {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()
}

// Stop the medium.
func (p *PixelImage) Stop() {
	p.mu.Lock()
	p.started = false
	p.mu.Unlock()
}

// IsStarted .
func (p *PixelImage) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// SetPixelImage pushes a new frame, camera may be nil.
// Returns false if the medium is stopped.
func (p *PixelImage) SetPixelImage(frame *Frame, camera *Camera) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return false
	}

	if camera != nil {
		p.camera = camera
	}

	p.frames = append(p.frames, frame)
	if len(p.frames) > p.capacity {
		p.frames = p.frames[1:]
	}
	return true
}

// SetDeviceTCamera sets the device to camera transformation.
func (p *PixelImage) SetDeviceTCamera(t *Transform) {
	p.mu.Lock()
	p.deviceTCamera = t
	p.mu.Unlock()
}

// Frame implements FrameMedium.
func (p *PixelImage) Frame() (*Frame, *Camera) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.frames) == 0 {
		return nil, p.camera
	}
	return p.frames[len(p.frames)-1], p.camera
}

// Frames returns the kept frames, oldest first.
func (p *PixelImage) Frames() []*Frame {
	p.mu.Lock()
	defer p.mu.Unlock()

	frames := make([]*Frame, len(p.frames))
	copy(frames, p.frames)
	return frames
}

// DeviceTCamera implements FrameMedium.
func (p *PixelImage) DeviceTCamera() *Transform {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deviceTCamera
}
