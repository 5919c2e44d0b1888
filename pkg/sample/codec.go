// SPDX-License-Identifier: GPL-2.0-or-later

package sample

import (
	"fmt"
	"io"
	"math"

	"devrec/pkg/geom"

	"github.com/icza/bitio"
)

// Errors are accumulated in TryError, callers check it once per sample.

func writeUint32(w *bitio.Writer, v uint32) {
	w.TryWriteBits(uint64(v), 32)
}

func writeFloat32(w *bitio.Writer, v float32) {
	w.TryWriteBits(uint64(math.Float32bits(v)), 32)
}

func writeFloat64(w *bitio.Writer, v float64) {
	w.TryWriteBits(math.Float64bits(v), 64)
}

func writeInt8(w *bitio.Writer, v int8) {
	w.TryWriteByte(byte(v))
}

func writeBool(w *bitio.Writer, v bool) {
	if v {
		w.TryWriteByte(1)
	} else {
		w.TryWriteByte(0)
	}
}

func writeBytes(w *bitio.Writer, b []byte) {
	writeUint32(w, uint32(len(b)))
	w.TryWrite(b)
}

func writeString(w *bitio.Writer, s string) {
	writeBytes(w, []byte(s))
}

func readUint32(r *bitio.Reader) uint32 {
	return uint32(r.TryReadBits(32))
}

func readFloat32(r *bitio.Reader) float32 {
	return math.Float32frombits(uint32(r.TryReadBits(32)))
}

func readFloat64(r *bitio.Reader) float64 {
	return math.Float64frombits(r.TryReadBits(64))
}

func readInt8(r *bitio.Reader) int8 {
	return int8(r.TryReadByte())
}

func readBool(r *bitio.Reader) (bool, error) {
	b := r.TryReadByte()
	if r.TryError != nil {
		return false, r.TryError
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: invalid bool: %d", ErrFormat, b)
}

// readLength reads a length and checks it against limit
// before anything is allocated.
func readLength(r *bitio.Reader, limit uint32, what string) (int, error) {
	n := readUint32(r)
	if r.TryError != nil {
		return 0, r.TryError
	}
	if n > limit {
		return 0, fmt.Errorf("%w: %v count %d exceeds %d", ErrFormat, what, n, limit)
	}
	return int(n), nil
}

func readCount(r *bitio.Reader, what string) (int, error) {
	return readLength(r, MaxMeasurements, what)
}

func readBytes(r *bitio.Reader, limit uint32, what string) ([]byte, error) {
	n, err := readLength(r, limit, what)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readString(r *bitio.Reader, limit uint32, what string) (string, error) {
	b, err := readBytes(r, limit, what)
	return string(b), err
}

func checkCount(ids int, n int, what string) error {
	if ids != n {
		return fmt.Errorf("%w: %d object ids but %d %v", ErrFormat, ids, n, what)
	}
	if ids > MaxMeasurements {
		return fmt.Errorf("%w: %v count %d exceeds %d", ErrFormat, what, ids, MaxMeasurements)
	}
	return nil
}

func writeObjectIDs(w *bitio.Writer, ids []uint32) {
	writeUint32(w, uint32(len(ids)))
	for _, id := range ids {
		writeUint32(w, id)
	}
}

func readObjectIDs(r *bitio.Reader) ([]uint32, error) {
	n, err := readCount(r, "object id")
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, n)
	for i := range ids {
		ids[i] = readUint32(r)
	}
	return ids, r.TryError
}

func writeVector(w *bitio.Writer, v geom.VectorF3) {
	writeFloat32(w, v.X)
	writeFloat32(w, v.Y)
	writeFloat32(w, v.Z)
}

func readVector(r *bitio.Reader) geom.VectorF3 {
	return geom.VectorF3{
		X: readFloat32(r),
		Y: readFloat32(r),
		Z: readFloat32(r),
	}
}

func writeQuaternion(w *bitio.Writer, q geom.QuaternionF) {
	writeFloat32(w, q.W)
	writeFloat32(w, q.X)
	writeFloat32(w, q.Y)
	writeFloat32(w, q.Z)
}

func readQuaternion(r *bitio.Reader) geom.QuaternionF {
	return geom.QuaternionF{
		W: readFloat32(r),
		X: readFloat32(r),
		Y: readFloat32(r),
		Z: readFloat32(r),
	}
}

func writeVectors(w *bitio.Writer, vectors []geom.VectorF3) {
	writeUint32(w, uint32(len(vectors)))
	for _, v := range vectors {
		writeVector(w, v)
	}
}

// readVectors reads a vector array that must match nIDs object ids.
func readVectors(r *bitio.Reader, nIDs int) ([]geom.VectorF3, error) {
	n, err := readCount(r, "vector")
	if err != nil {
		return nil, err
	}
	if err := checkCount(nIDs, n, "vectors"); err != nil {
		return nil, err
	}
	vectors := make([]geom.VectorF3, n)
	for i := range vectors {
		vectors[i] = readVector(r)
	}
	return vectors, r.TryError
}

func writeQuaternions(w *bitio.Writer, quaternions []geom.QuaternionF) {
	writeUint32(w, uint32(len(quaternions)))
	for _, q := range quaternions {
		writeQuaternion(w, q)
	}
}

func readQuaternions(r *bitio.Reader, nIDs int) ([]geom.QuaternionF, error) {
	n, err := readCount(r, "quaternion")
	if err != nil {
		return nil, err
	}
	if err := checkCount(nIDs, n, "quaternions"); err != nil {
		return nil, err
	}
	quaternions := make([]geom.QuaternionF, n)
	for i := range quaternions {
		quaternions[i] = readQuaternion(r)
	}
	return quaternions, r.TryError
}
