// SPDX-License-Identifier: GPL-2.0-or-later

package device

import (
	"fmt"

	"devrec/pkg/geom"
	"devrec/pkg/sample"
)

// ErrUnsupportedSample sample has no device counterpart.
var ErrUnsupportedSample = fmt.Errorf("%w: unsupported sample", sample.ErrFormat)

// ToSample converts a device sample to its serializable form.
func ToSample(s Sample, playback float64) (sample.Sample, error) {
	base := sample.Base{Data: s.Timestamp(), Playback: playback}
	ids := s.IDs()

	switch s := s.(type) {
	case *OrientationSample:
		return &sample.OrientationTracker3DOF{
			Base:            base,
			ReferenceSystem: s.ReferenceSystem,
			ObjectIDs:       ids,
			Orientations:    quaternionsF(s.Orientations),
		}, nil
	case *AccelerationSample:
		return sample.NewAccelerationSensor3DOF(base, ids, vectorsF(s.Accelerations)), nil
	case *GyroSample:
		return sample.NewGyroSensor3DOF(base, ids, vectorsF(s.Velocities)), nil
	case *GravitySample:
		return sample.NewGravityTracker3DOF(base, s.ReferenceSystem, ids, vectorsF(s.Gravities)), nil
	case *PositionSample:
		return sample.NewPositionTracker3DOF(base, s.ReferenceSystem, ids, vectorsF(s.Positions)), nil
	case *Tracker6DOFSample:
		return &sample.Tracker6DOF{
			Base:            base,
			ReferenceSystem: s.ReferenceSystem,
			ObjectIDs:       ids,
			Orientations:    quaternionsF(s.Orientations),
			Positions:       vectorsF(s.Positions),
		}, nil
	case *GPSSample:
		return &sample.GPSTracker{
			Base:            base,
			ReferenceSystem: s.ReferenceSystem,
			ObjectIDs:       ids,
			Locations:       s.Locations,
		}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedSample, s)
}

// FromSample converts a decoded sample back to a device sample.
func FromSample(s sample.Sample) (Sample, error) {
	switch s := s.(type) {
	case *sample.OrientationTracker3DOF:
		return &OrientationSample{
			Header:          header(s.Data, s.ObjectIDs),
			ReferenceSystem: s.ReferenceSystem,
			Orientations:    quaternions(s.Orientations),
		}, nil
	case *sample.AccelerationSensor3DOF:
		return &AccelerationSample{
			Header:        header(s.Data, s.ObjectIDs),
			Accelerations: vectors(s.Values),
		}, nil
	case *sample.GyroSensor3DOF:
		return &GyroSample{
			Header:     header(s.Data, s.ObjectIDs),
			Velocities: vectors(s.Values),
		}, nil
	case *sample.GravityTracker3DOF:
		return &GravitySample{
			Header:          header(s.Data, s.ObjectIDs),
			ReferenceSystem: s.ReferenceSystem,
			Gravities:       vectors(s.Values),
		}, nil
	case *sample.PositionTracker3DOF:
		return &PositionSample{
			Header:          header(s.Data, s.ObjectIDs),
			ReferenceSystem: s.ReferenceSystem,
			Positions:       vectors(s.Values),
		}, nil
	case *sample.Tracker6DOF:
		return &Tracker6DOFSample{
			Header:          header(s.Data, s.ObjectIDs),
			ReferenceSystem: s.ReferenceSystem,
			Orientations:    quaternions(s.Orientations),
			Positions:       vectors(s.Positions),
		}, nil
	case *sample.GPSTracker:
		return &GPSSample{
			Header:          header(s.Data, s.ObjectIDs),
			ReferenceSystem: s.ReferenceSystem,
			Locations:       s.Locations,
		}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedSample, s.Type())
}

// DefaultType returns the device type used to replay sampleType
// when a channel has no valid content type.
func DefaultType(sampleType string) (Type, bool) {
	t, exists := defaultTypes[sampleType]
	return t, exists
}

var defaultTypes = map[string]Type{
	sample.TypeOrientationTracker3DOF: TypeOrientation,
	sample.TypeAccelerationSensor3DOF: TypeAcceleration,
	sample.TypeGyroSensor3DOF:         TypeGyroRaw,
	sample.TypeGravityTracker3DOF:     TypeGravity,
	sample.TypePositionTracker3DOF:    TypePosition,
	sample.TypeTracker6DOF:            Type6DOF,
	sample.TypeGPSTracker:             TypeGPS,
}

func header(t sample.Timestamp, ids []uint32) Header {
	return Header{Time: t, ObjectIDs: ids}
}

func vectorsF(in []geom.Vector3) []geom.VectorF3 {
	out := make([]geom.VectorF3, len(in))
	for i, v := range in {
		out[i] = v.Float32()
	}
	return out
}

func vectors(in []geom.VectorF3) []geom.Vector3 {
	out := make([]geom.Vector3, len(in))
	for i, v := range in {
		out[i] = v.Float64()
	}
	return out
}

func quaternionsF(in []geom.Quaternion) []geom.QuaternionF {
	out := make([]geom.QuaternionF, len(in))
	for i, q := range in {
		out[i] = q.Float32()
	}
	return out
}

func quaternions(in []geom.QuaternionF) []geom.Quaternion {
	out := make([]geom.Quaternion, len(in))
	for i, q := range in {
		out[i] = q.Float64()
	}
	return out
}
