// SPDX-License-Identifier: GPL-2.0-or-later

package sample

import (
	"fmt"
	"math"

	"devrec/pkg/geom"

	"github.com/icza/bitio"
)

// Sample types.
const (
	TypeOrientationTracker3DOF = "devrec/device/orientationtracker3dof"
	TypeAccelerationSensor3DOF = "devrec/device/accelerationsensor3dof"
	TypeGyroSensor3DOF         = "devrec/device/gyrosensor3dof"
	TypeGravityTracker3DOF     = "devrec/device/gravitytracker3dof"
	TypePositionTracker3DOF    = "devrec/device/positiontracker3dof"
	TypeTracker6DOF            = "devrec/device/tracker6dof"
	TypeGPSTracker             = "devrec/device/gpstracker"
	TypeFrame                  = "devrec/media/frame"
)

// ReferenceSystem of tracker samples.
type ReferenceSystem int8

// Reference systems.
const (
	ReferenceSystemInvalid        ReferenceSystem = -1
	ReferenceSystemObjectInDevice ReferenceSystem = 0
	ReferenceSystemDeviceInObject ReferenceSystem = 1
)

func (rs ReferenceSystem) write(w *bitio.Writer) {
	writeInt8(w, int8(rs))
}

func readReferenceSystem(r *bitio.Reader) (ReferenceSystem, error) {
	rs := ReferenceSystem(readInt8(r))
	if r.TryError != nil {
		return 0, r.TryError
	}
	if rs < ReferenceSystemInvalid || rs > ReferenceSystemDeviceInObject {
		return 0, fmt.Errorf("%w: invalid reference system: %d", ErrFormat, rs)
	}
	return rs, nil
}

// OrientationTracker3DOF orientations of tracked objects.
type OrientationTracker3DOF struct {
	Base
	ReferenceSystem ReferenceSystem
	ObjectIDs       []uint32
	Orientations    []geom.QuaternionF
}

// Type implements Sample.
func (*OrientationTracker3DOF) Type() string { return TypeOrientationTracker3DOF }

// WriteSample implements Sample.
func (s *OrientationTracker3DOF) WriteSample(w *bitio.Writer) error {
	if err := checkCount(len(s.ObjectIDs), len(s.Orientations), "orientations"); err != nil {
		return err
	}
	s.WriteBase(w)
	s.ReferenceSystem.write(w)
	writeObjectIDs(w, s.ObjectIDs)
	writeQuaternions(w, s.Orientations)
	return w.TryError
}

// ReadSample implements Sample.
func (s *OrientationTracker3DOF) ReadSample(r *bitio.Reader) error {
	s.ReadBase(r)
	rs, err := readReferenceSystem(r)
	if err != nil {
		return err
	}
	ids, err := readObjectIDs(r)
	if err != nil {
		return err
	}
	orientations, err := readQuaternions(r, len(ids))
	if err != nil {
		return err
	}
	s.ReferenceSystem, s.ObjectIDs, s.Orientations = rs, ids, orientations
	return nil
}

// vectorMeasurement is the layout shared by the vector sensors.
type vectorMeasurement struct {
	Base
	ObjectIDs []uint32
	Values    []geom.VectorF3
}

func (m *vectorMeasurement) write(w *bitio.Writer) error {
	if err := checkCount(len(m.ObjectIDs), len(m.Values), "values"); err != nil {
		return err
	}
	m.WriteBase(w)
	writeObjectIDs(w, m.ObjectIDs)
	writeVectors(w, m.Values)
	return w.TryError
}

func (m *vectorMeasurement) read(r *bitio.Reader) error {
	m.ReadBase(r)
	ids, err := readObjectIDs(r)
	if err != nil {
		return err
	}
	values, err := readVectors(r, len(ids))
	if err != nil {
		return err
	}
	m.ObjectIDs, m.Values = ids, values
	return nil
}

// vectorTracker is the layout shared by the vector trackers.
type vectorTracker struct {
	Base
	ReferenceSystem ReferenceSystem
	ObjectIDs       []uint32
	Values          []geom.VectorF3
}

func (t *vectorTracker) write(w *bitio.Writer) error {
	if err := checkCount(len(t.ObjectIDs), len(t.Values), "values"); err != nil {
		return err
	}
	t.WriteBase(w)
	t.ReferenceSystem.write(w)
	writeObjectIDs(w, t.ObjectIDs)
	writeVectors(w, t.Values)
	return w.TryError
}

func (t *vectorTracker) read(r *bitio.Reader) error {
	t.ReadBase(r)
	rs, err := readReferenceSystem(r)
	if err != nil {
		return err
	}
	ids, err := readObjectIDs(r)
	if err != nil {
		return err
	}
	values, err := readVectors(r, len(ids))
	if err != nil {
		return err
	}
	t.ReferenceSystem, t.ObjectIDs, t.Values = rs, ids, values
	return nil
}

// AccelerationSensor3DOF acceleration in m/s^2.
type AccelerationSensor3DOF struct {
	vectorMeasurement
}

// NewAccelerationSensor3DOF .
func NewAccelerationSensor3DOF(base Base, ids []uint32, values []geom.VectorF3) *AccelerationSensor3DOF {
	return &AccelerationSensor3DOF{vectorMeasurement{Base: base, ObjectIDs: ids, Values: values}}
}

// Type implements Sample.
func (*AccelerationSensor3DOF) Type() string { return TypeAccelerationSensor3DOF }

// WriteSample implements Sample.
func (s *AccelerationSensor3DOF) WriteSample(w *bitio.Writer) error { return s.write(w) }

// ReadSample implements Sample.
func (s *AccelerationSensor3DOF) ReadSample(r *bitio.Reader) error { return s.read(r) }

// GyroSensor3DOF rotational velocity in rad/s.
type GyroSensor3DOF struct {
	vectorMeasurement
}

// NewGyroSensor3DOF .
func NewGyroSensor3DOF(base Base, ids []uint32, values []geom.VectorF3) *GyroSensor3DOF {
	return &GyroSensor3DOF{vectorMeasurement{Base: base, ObjectIDs: ids, Values: values}}
}

// Type implements Sample.
func (*GyroSensor3DOF) Type() string { return TypeGyroSensor3DOF }

// WriteSample implements Sample.
func (s *GyroSensor3DOF) WriteSample(w *bitio.Writer) error { return s.write(w) }

// ReadSample implements Sample.
func (s *GyroSensor3DOF) ReadSample(r *bitio.Reader) error { return s.read(r) }

// GravityTracker3DOF gravity directions.
type GravityTracker3DOF struct {
	vectorTracker
}

// NewGravityTracker3DOF .
func NewGravityTracker3DOF(
	base Base,
	rs ReferenceSystem,
	ids []uint32,
	values []geom.VectorF3,
) *GravityTracker3DOF {
	return &GravityTracker3DOF{vectorTracker{
		Base:            base,
		ReferenceSystem: rs,
		ObjectIDs:       ids,
		Values:          values,
	}}
}

// Type implements Sample.
func (*GravityTracker3DOF) Type() string { return TypeGravityTracker3DOF }

// WriteSample implements Sample.
func (s *GravityTracker3DOF) WriteSample(w *bitio.Writer) error { return s.write(w) }

// ReadSample implements Sample.
func (s *GravityTracker3DOF) ReadSample(r *bitio.Reader) error { return s.read(r) }

// PositionTracker3DOF positions in meters.
type PositionTracker3DOF struct {
	vectorTracker
}

// NewPositionTracker3DOF .
func NewPositionTracker3DOF(
	base Base,
	rs ReferenceSystem,
	ids []uint32,
	values []geom.VectorF3,
) *PositionTracker3DOF {
	return &PositionTracker3DOF{vectorTracker{
		Base:            base,
		ReferenceSystem: rs,
		ObjectIDs:       ids,
		Values:          values,
	}}
}

// Type implements Sample.
func (*PositionTracker3DOF) Type() string { return TypePositionTracker3DOF }

// WriteSample implements Sample.
func (s *PositionTracker3DOF) WriteSample(w *bitio.Writer) error { return s.write(w) }

// ReadSample implements Sample.
func (s *PositionTracker3DOF) ReadSample(r *bitio.Reader) error { return s.read(r) }

// Tracker6DOF orientations and positions of tracked objects.
type Tracker6DOF struct {
	Base
	ReferenceSystem ReferenceSystem
	ObjectIDs       []uint32
	Orientations    []geom.QuaternionF
	Positions       []geom.VectorF3
}

// Type implements Sample.
func (*Tracker6DOF) Type() string { return TypeTracker6DOF }

// WriteSample implements Sample.
func (s *Tracker6DOF) WriteSample(w *bitio.Writer) error {
	if err := checkCount(len(s.ObjectIDs), len(s.Orientations), "orientations"); err != nil {
		return err
	}
	if err := checkCount(len(s.ObjectIDs), len(s.Positions), "positions"); err != nil {
		return err
	}
	s.WriteBase(w)
	s.ReferenceSystem.write(w)
	writeObjectIDs(w, s.ObjectIDs)
	writeQuaternions(w, s.Orientations)
	writeVectors(w, s.Positions)
	return w.TryError
}

// ReadSample implements Sample.
func (s *Tracker6DOF) ReadSample(r *bitio.Reader) error {
	s.ReadBase(r)
	rs, err := readReferenceSystem(r)
	if err != nil {
		return err
	}
	ids, err := readObjectIDs(r)
	if err != nil {
		return err
	}
	orientations, err := readQuaternions(r, len(ids))
	if err != nil {
		return err
	}
	positions, err := readVectors(r, len(ids))
	if err != nil {
		return err
	}
	s.ReferenceSystem, s.ObjectIDs = rs, ids
	s.Orientations, s.Positions = orientations, positions
	return nil
}

// Location GPS fix. Unknown values are the lowest finite
// value of their type for coordinates and -1 otherwise.
type Location struct {
	Latitude          float64
	Longitude         float64
	Altitude          float32
	Direction         float32
	Speed             float32
	Accuracy          float32
	AltitudeAccuracy  float32
	DirectionAccuracy float32
	SpeedAccuracy     float32
}

// UnknownLocation location without any known value.
var UnknownLocation = Location{
	Latitude:          -math.MaxFloat64,
	Longitude:         -math.MaxFloat64,
	Altitude:          -math.MaxFloat32,
	Direction:         -1,
	Speed:             -1,
	Accuracy:          -1,
	AltitudeAccuracy:  -1,
	DirectionAccuracy: -1,
	SpeedAccuracy:     -1,
}

func (l Location) write(w *bitio.Writer) {
	writeFloat64(w, l.Latitude)
	writeFloat64(w, l.Longitude)
	writeFloat32(w, l.Altitude)
	writeFloat32(w, l.Direction)
	writeFloat32(w, l.Speed)
	writeFloat32(w, l.Accuracy)
	writeFloat32(w, l.AltitudeAccuracy)
	writeFloat32(w, l.DirectionAccuracy)
	writeFloat32(w, l.SpeedAccuracy)
}

func readLocation(r *bitio.Reader) Location {
	return Location{
		Latitude:          readFloat64(r),
		Longitude:         readFloat64(r),
		Altitude:          readFloat32(r),
		Direction:         readFloat32(r),
		Speed:             readFloat32(r),
		Accuracy:          readFloat32(r),
		AltitudeAccuracy:  readFloat32(r),
		DirectionAccuracy: readFloat32(r),
		SpeedAccuracy:     readFloat32(r),
	}
}

// GPSTracker locations of tracked objects.
type GPSTracker struct {
	Base
	ReferenceSystem ReferenceSystem
	ObjectIDs       []uint32
	Locations       []Location
}

// Type implements Sample.
func (*GPSTracker) Type() string { return TypeGPSTracker }

// WriteSample implements Sample.
func (s *GPSTracker) WriteSample(w *bitio.Writer) error {
	if err := checkCount(len(s.ObjectIDs), len(s.Locations), "locations"); err != nil {
		return err
	}
	s.WriteBase(w)
	s.ReferenceSystem.write(w)
	writeObjectIDs(w, s.ObjectIDs)
	writeUint32(w, uint32(len(s.Locations)))
	for _, l := range s.Locations {
		l.write(w)
	}
	return w.TryError
}

// ReadSample implements Sample.
func (s *GPSTracker) ReadSample(r *bitio.Reader) error {
	s.ReadBase(r)
	rs, err := readReferenceSystem(r)
	if err != nil {
		return err
	}
	ids, err := readObjectIDs(r)
	if err != nil {
		return err
	}
	n, err := readCount(r, "location")
	if err != nil {
		return err
	}
	if err := checkCount(len(ids), n, "locations"); err != nil {
		return err
	}
	locations := make([]Location, n)
	for i := range locations {
		locations[i] = readLocation(r)
	}
	if r.TryError != nil {
		return r.TryError
	}
	s.ReferenceSystem, s.ObjectIDs, s.Locations = rs, ids, locations
	return nil
}
