// SPDX-License-Identifier: GPL-2.0-or-later

package sample

import (
	"devrec/pkg/media"

	"github.com/icza/bitio"
)

// Frame payload limits.
const (
	MaxStringLength = 1024
	MaxFrameSize    = 256 << 20
)

// Frame media frame sample.
//
//  Base
//  Width            uint32
//  Height           uint32
//  Pixel format     uint32 length + string
//  Frame timestamp  float64
//  Data             uint32 length + bytes
//  Has camera       bool
//  Camera           model string, width uint32, height uint32, fx fy mx my float64
//  Has transform    bool
//  Device_T_camera  16 * float64
//
// Camera and DeviceTCamera are nil when unchanged since
// the previous frame of the same channel.
type Frame struct {
	Base
	Frame         media.Frame
	Camera        *media.Camera
	DeviceTCamera *media.Transform
}

// Type implements Sample.
func (*Frame) Type() string { return TypeFrame }

// WriteSample implements Sample.
func (s *Frame) WriteSample(w *bitio.Writer) error {
	s.WriteBase(w)
	writeUint32(w, s.Frame.Width)
	writeUint32(w, s.Frame.Height)
	writeString(w, s.Frame.PixelFormat)
	writeFloat64(w, s.Frame.Timestamp)
	writeBytes(w, s.Frame.Data)

	writeBool(w, s.Camera != nil)
	if s.Camera != nil {
		c := s.Camera
		writeString(w, c.Model)
		writeUint32(w, c.Width)
		writeUint32(w, c.Height)
		writeFloat64(w, c.Fx)
		writeFloat64(w, c.Fy)
		writeFloat64(w, c.Mx)
		writeFloat64(w, c.My)
	}

	writeBool(w, s.DeviceTCamera != nil)
	if s.DeviceTCamera != nil {
		for _, v := range s.DeviceTCamera {
			writeFloat64(w, v)
		}
	}
	return w.TryError
}

// ReadSample implements Sample.
func (s *Frame) ReadSample(r *bitio.Reader) error {
	s.ReadBase(r)

	var frame media.Frame
	frame.Width = readUint32(r)
	frame.Height = readUint32(r)
	if r.TryError != nil {
		return r.TryError
	}

	var err error
	if frame.PixelFormat, err = readString(r, MaxStringLength, "pixel format"); err != nil {
		return err
	}
	frame.Timestamp = readFloat64(r)
	if frame.Data, err = readBytes(r, MaxFrameSize, "frame data"); err != nil {
		return err
	}

	hasCamera, err := readBool(r)
	if err != nil {
		return err
	}
	var camera *media.Camera
	if hasCamera {
		camera = &media.Camera{}
		if camera.Model, err = readString(r, MaxStringLength, "camera model"); err != nil {
			return err
		}
		camera.Width = readUint32(r)
		camera.Height = readUint32(r)
		camera.Fx = readFloat64(r)
		camera.Fy = readFloat64(r)
		camera.Mx = readFloat64(r)
		camera.My = readFloat64(r)
	}

	hasTransform, err := readBool(r)
	if err != nil {
		return err
	}
	var transform *media.Transform
	if hasTransform {
		transform = &media.Transform{}
		for i := range transform {
			transform[i] = readFloat64(r)
		}
	}
	if r.TryError != nil {
		return r.TryError
	}

	s.Frame, s.Camera, s.DeviceTCamera = frame, camera, transform
	return nil
}
