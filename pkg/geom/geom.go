// SPDX-License-Identifier: GPL-2.0-or-later

// Package geom holds the vector and quaternion payload types carried by
// device samples. The double precision types are used by the device layer,
// the float32 types by the wire format.
package geom

import "math"

// Vector3 double precision 3D vector.
type Vector3 struct {
	X, Y, Z float64
}

// Quaternion double precision rotation, W is the real part.
type Quaternion struct {
	W, X, Y, Z float64
}

// VectorF3 single precision 3D vector.
type VectorF3 struct {
	X, Y, Z float32
}

// QuaternionF single precision rotation.
type QuaternionF struct {
	W, X, Y, Z float32
}

// IdentityQuaternion no rotation.
var IdentityQuaternion = Quaternion{W: 1}

// NewQuaternionAxisAngle returns the rotation around a unit axis.
func NewQuaternionAxisAngle(axis Vector3, angle float64) Quaternion {
	s := math.Sin(angle / 2)
	return Quaternion{
		W: math.Cos(angle / 2),
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
	}
}

// Float32 converts to single precision.
func (v Vector3) Float32() VectorF3 {
	return VectorF3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

// Length euclidean length.
func (v Vector3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// NormalizedOrZero returns the unit vector, or the zero vector if v is zero.
func (v Vector3) NormalizedOrZero() Vector3 {
	l := v.Length()
	if l == 0 {
		return Vector3{}
	}
	return Vector3{X: v.X / l, Y: v.Y / l, Z: v.Z / l}
}

// Float64 converts to double precision.
func (v VectorF3) Float64() Vector3 {
	return Vector3{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

// Float32 converts to single precision.
func (q Quaternion) Float32() QuaternionF {
	return QuaternionF{W: float32(q.W), X: float32(q.X), Y: float32(q.Y), Z: float32(q.Z)}
}

// Normalized returns the unit quaternion, identity if q is zero.
func (q Quaternion) Normalized() Quaternion {
	l := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if l == 0 {
		return IdentityQuaternion
	}
	return Quaternion{W: q.W / l, X: q.X / l, Y: q.Y / l, Z: q.Z / l}
}

// Float64 converts to double precision.
func (q QuaternionF) Float64() Quaternion {
	return Quaternion{W: float64(q.W), X: float64(q.X), Y: float64(q.Y), Z: float64(q.Z)}
}
