// SPDX-License-Identifier: GPL-2.0-or-later

package device

import (
	"errors"
	"fmt"
	"strings"
)

// Major device type.
type Major string

// Minor device subtype, meaning depends on the major type.
type Minor string

// Major types.
const (
	MajorSensor  Major = "DEVICE_SENSOR"
	MajorTracker Major = "DEVICE_TRACKER"
)

// Minor types.
const (
	SensorAcceleration3DOF       Minor = "SENSOR_ACCELERATION_3DOF"
	SensorLinearAcceleration3DOF Minor = "SENSOR_LINEAR_ACCELERATION_3DOF"
	SensorGyroRaw3DOF            Minor = "SENSOR_GYRO_RAW_3DOF"
	SensorGyroUnbiased3DOF       Minor = "SENSOR_GYRO_UNBIASED_3DOF"

	TrackerOrientation3DOF Minor = "TRACKER_ORIENTATION_3DOF"
	TrackerPosition3DOF    Minor = "TRACKER_POSITION_3DOF"
	Tracker6DOF            Minor = "TRACKER_6DOF"
	TrackerGPS             Minor = "TRACKER_GPS"
	TrackerGravity3DOF     Minor = "TRACKER_GRAVITY_3DOF"
)

var minors = map[Major][]Minor{
	MajorSensor: {
		SensorAcceleration3DOF,
		SensorLinearAcceleration3DOF,
		SensorGyroRaw3DOF,
		SensorGyroUnbiased3DOF,
	},
	MajorTracker: {
		TrackerOrientation3DOF,
		TrackerPosition3DOF,
		Tracker6DOF,
		TrackerGPS,
		TrackerGravity3DOF,
	},
}

// Type major and minor device type.
type Type struct {
	Major Major
	Minor Minor
}

// Common types.
var (
	TypeAcceleration       = Type{MajorSensor, SensorAcceleration3DOF}
	TypeLinearAcceleration = Type{MajorSensor, SensorLinearAcceleration3DOF}
	TypeGyroRaw            = Type{MajorSensor, SensorGyroRaw3DOF}
	TypeGyroUnbiased       = Type{MajorSensor, SensorGyroUnbiased3DOF}
	TypeOrientation        = Type{MajorTracker, TrackerOrientation3DOF}
	TypePosition           = Type{MajorTracker, TrackerPosition3DOF}
	Type6DOF               = Type{MajorTracker, Tracker6DOF}
	TypeGPS                = Type{MajorTracker, TrackerGPS}
	TypeGravity            = Type{MajorTracker, TrackerGravity3DOF}
)

// ErrContentType invalid content type.
var ErrContentType = errors.New("invalid content type")

// String returns the content type "MAJOR,MINOR".
func (t Type) String() string {
	return string(t.Major) + "," + string(t.Minor)
}

// IsValid returns true if the minor type belongs to the major type.
func (t Type) IsValid() bool {
	for _, minor := range minors[t.Major] {
		if minor == t.Minor {
			return true
		}
	}
	return false
}

// IsTracker .
func (t Type) IsTracker() bool {
	return t.Major == MajorTracker
}

// ParseType parses a "MAJOR,MINOR" content type.
func ParseType(contentType string) (Type, error) {
	major, minor, found := strings.Cut(contentType, ",")
	if !found {
		return Type{}, fmt.Errorf("%w: %q", ErrContentType, contentType)
	}

	t := Type{
		Major: Major(strings.TrimSpace(major)),
		Minor: Minor(strings.TrimSpace(minor)),
	}
	if !t.IsValid() {
		return Type{}, fmt.Errorf("%w: %q", ErrContentType, contentType)
	}
	return t, nil
}

// Accepts returns true if a device of this type produces s.
func (t Type) Accepts(s Sample) bool {
	switch s.(type) {
	case *OrientationSample:
		return t == TypeOrientation
	case *AccelerationSample:
		return t == TypeAcceleration || t == TypeLinearAcceleration
	case *GyroSample:
		return t == TypeGyroRaw || t == TypeGyroUnbiased
	case *GravitySample:
		return t == TypeGravity
	case *PositionSample:
		return t == TypePosition
	case *Tracker6DOFSample:
		return t == Type6DOF
	case *GPSSample:
		return t == TypeGPS
	}
	return false
}
