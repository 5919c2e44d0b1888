// SPDX-License-Identifier: GPL-2.0-or-later

package device

import (
	"devrec/pkg/geom"
	"devrec/pkg/sample"
)

// Sample is a measurement emitted by a device.
// The set of implementations is closed, use a type switch to dispatch.
type Sample interface {
	Timestamp() sample.Timestamp
	IDs() []uint32
	deviceSample()
}

// Header fields shared by all samples.
type Header struct {
	Time      sample.Timestamp
	ObjectIDs []uint32
}

// Timestamp .
func (h *Header) Timestamp() sample.Timestamp { return h.Time }

// IDs object ids.
func (h *Header) IDs() []uint32 { return h.ObjectIDs }

func (*Header) deviceSample() {}

// OrientationSample .
type OrientationSample struct {
	Header
	ReferenceSystem sample.ReferenceSystem
	Orientations    []geom.Quaternion
}

// AccelerationSample .
type AccelerationSample struct {
	Header
	Accelerations []geom.Vector3
}

// GyroSample .
type GyroSample struct {
	Header
	Velocities []geom.Vector3
}

// GravitySample .
type GravitySample struct {
	Header
	ReferenceSystem sample.ReferenceSystem
	Gravities       []geom.Vector3
}

// PositionSample .
type PositionSample struct {
	Header
	ReferenceSystem sample.ReferenceSystem
	Positions       []geom.Vector3
}

// Tracker6DOFSample .
type Tracker6DOFSample struct {
	Header
	ReferenceSystem sample.ReferenceSystem
	Orientations    []geom.Quaternion
	Positions       []geom.Vector3
}

// GPSSample .
type GPSSample struct {
	Header
	ReferenceSystem sample.ReferenceSystem
	Locations       []sample.Location
}
