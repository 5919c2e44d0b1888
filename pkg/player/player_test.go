// SPDX-License-Identifier: GPL-2.0-or-later

package player

import (
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"devrec/pkg/container"
	"devrec/pkg/device"
	"devrec/pkg/geom"
	"devrec/pkg/log"
	"devrec/pkg/media"
	"devrec/pkg/recorder"
	"devrec/pkg/sample"

	"github.com/stretchr/testify/require"
)

func orientation(data sample.Timestamp, playback float64) *sample.OrientationTracker3DOF {
	return &sample.OrientationTracker3DOF{
		Base:         sample.Base{Data: data, Playback: playback},
		ObjectIDs:    []uint32{0},
		Orientations: []geom.QuaternionF{{W: 1}},
	}
}

func frame(data sample.Timestamp, playback float64) *sample.Frame {
	return &sample.Frame{
		Base: sample.Base{Data: data, Playback: playback},
		Frame: media.Frame{
			Width:       1,
			Height:      1,
			PixelFormat: "Y8",
			Timestamp:   float64(data),
			Data:        []byte{byte(data)},
		},
	}
}

type testRecording struct {
	path        string
	frame       container.ChannelID
	orientation container.ChannelID
}

// newTestRecording writes a frame channel and an orientation channel.
func newTestRecording(t *testing.T, contentType string, write func(r testRecording, w *container.Writer)) testRecording {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.rec")

	w := container.NewWriter()
	frameID, err := w.AddChannel(sample.TypeFrame, "FrameMedium,cam", container.ContentTypeFrame)
	require.NoError(t, err)
	orientationID, err := w.AddChannel(sample.TypeOrientationTracker3DOF, "orientation", contentType)
	require.NoError(t, err)
	require.NoError(t, w.Start(path))

	r := testRecording{path: path, frame: frameID, orientation: orientationID}
	write(r, w)
	require.NoError(t, w.Close())
	return r
}

// collector records the samples of every device announced by a manager.
type collector struct {
	samples []device.Sample
	devices []device.Device
	mu      sync.Mutex
}

func newCollector(m *device.Manager) *collector {
	c := &collector{}
	m.Subscribe(func(d device.Device, added bool) {
		if !added {
			return
		}
		c.mu.Lock()
		c.devices = append(c.devices, d)
		c.mu.Unlock()
		d.SubscribeSamples(func(_ device.Device, s device.Sample) {
			c.mu.Lock()
			c.samples = append(c.samples, s)
			c.mu.Unlock()
		})
	})
	return c
}

func (c *collector) timestamps() []sample.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	var timestamps []sample.Timestamp
	for _, s := range c.samples {
		timestamps = append(timestamps, s.Timestamp())
	}
	return timestamps
}

func TestPlayNextFrame(t *testing.T) {
	rec := newTestRecording(t, "DEVICE_TRACKER,TRACKER_ORIENTATION_3DOF",
		func(r testRecording, w *container.Writer) {
			add := func(id container.ChannelID, s sample.Sample) {
				require.NoError(t, w.AddSample(id, s))
			}
			add(r.orientation, orientation(9, 0))
			add(r.frame, frame(10, 0.1))
			add(r.orientation, orientation(10, 0.15))
			add(r.orientation, orientation(11, 0.2))
			add(r.frame, frame(11, 0.3))
			// Beyond the lookahead of the first frame.
			add(r.orientation, orientation(12, 1.0))
			add(r.frame, frame(12, 1.1))
		})

	manager := device.NewManager()
	c := newCollector(manager)

	p := New(NewUsage(), manager, log.NewMockLogger())
	defer p.Release()
	require.NoError(t, p.Initialize(rec.path))

	images := p.FrameMediums()
	require.Len(t, images, 1)
	require.NoError(t, p.Start(0))
	require.True(t, p.IsPlaying())

	require.Equal(t, sample.Timestamp(10), p.PlayNextFrame())
	require.Equal(t, []sample.Timestamp{9, 10}, c.timestamps())
	f, _ := images[0].Frame()
	require.Equal(t, 10.0, f.Timestamp)

	require.Equal(t, sample.Timestamp(11), p.PlayNextFrame())
	require.Equal(t, []sample.Timestamp{9, 10, 11}, c.timestamps())

	require.Equal(t, sample.Timestamp(12), p.PlayNextFrame())
	require.Equal(t, []sample.Timestamp{9, 10, 11, 12}, c.timestamps())
	require.Len(t, images[0].Frames(), 3)

	require.False(t, p.PlayNextFrame().IsValid())
	require.False(t, p.IsPlaying())

	d, err := manager.Device("OrientationTracker3DOF_1")
	require.NoError(t, err)
	require.Equal(t, device.TypeOrientation, d.Type())

	p.Release()
	require.Empty(t, manager.Devices())
	require.False(t, images[0].IsStarted())
}

func TestPlayNextFrameRestart(t *testing.T) {
	rec := newTestRecording(t, "", func(r testRecording, w *container.Writer) {
		require.NoError(t, w.AddSample(r.frame, frame(1, 0)))
		require.NoError(t, w.AddSample(r.orientation, orientation(1, 0)))
		require.NoError(t, w.AddSample(r.frame, frame(2, 0.1)))
	})

	manager := device.NewManager()
	c := newCollector(manager)

	p := New(NewUsage(), manager, log.NewMockLogger(), WithLookaheadTolerance(0))
	defer p.Release()
	require.NoError(t, p.Initialize(rec.path))
	require.NoError(t, p.Start(0))

	require.Equal(t, sample.Timestamp(1), p.PlayNextFrame())
	require.Equal(t, []sample.Timestamp{1}, c.timestamps())

	require.NoError(t, p.Stop())
	require.False(t, p.PlayNextFrame().IsValid())

	// Restarting plays from the beginning.
	require.NoError(t, p.Start(0))
	require.Equal(t, sample.Timestamp(1), p.PlayNextFrame())
	require.Equal(t, sample.Timestamp(2), p.PlayNextFrame())

	// Empty content type, the device type is derived from the sample type.
	c.mu.Lock()
	require.Len(t, c.devices, 1)
	require.Equal(t, device.TypeOrientation, c.devices[0].Type())
	c.mu.Unlock()
}

func TestPlayerState(t *testing.T) {
	rec := newTestRecording(t, "", func(r testRecording, w *container.Writer) {
		require.NoError(t, w.AddSample(r.orientation, orientation(1, 0)))
	})

	t.Run("notInitialized", func(t *testing.T) {
		p := New(NewUsage(), device.NewManager(), log.NewMockLogger())
		require.ErrorIs(t, p.Start(0), ErrState)
		require.False(t, p.PlayNextFrame().IsValid())
		require.Equal(t, time.Duration(0), p.Duration())
		p.Release()
		p.Release()
	})
	t.Run("initializeTwice", func(t *testing.T) {
		p := New(NewUsage(), device.NewManager(), log.NewMockLogger())
		defer p.Release()
		require.NoError(t, p.Initialize(rec.path))
		require.ErrorIs(t, p.Initialize(rec.path), ErrState)
	})
	t.Run("negativeSpeed", func(t *testing.T) {
		p := New(NewUsage(), device.NewManager(), log.NewMockLogger())
		defer p.Release()
		require.NoError(t, p.Initialize(rec.path))
		require.ErrorIs(t, p.Start(-1), ErrState)
	})
	t.Run("noFrameChannel", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "x.rec")
		w := container.NewWriter()
		_, err := w.AddChannel(sample.TypeGPSTracker, "gps", "DEVICE_TRACKER,TRACKER_GPS")
		require.NoError(t, err)
		require.NoError(t, w.Start(path))
		require.NoError(t, w.Close())

		p := New(NewUsage(), device.NewManager(), log.NewMockLogger())
		defer p.Release()
		require.NoError(t, p.Initialize(path))
		require.Empty(t, p.FrameMediums())
		require.NoError(t, p.Start(0))
		require.False(t, p.PlayNextFrame().IsValid())
	})
}

func TestPlayerExclusive(t *testing.T) {
	rec := newTestRecording(t, "", func(testRecording, *container.Writer) {})
	usage := NewUsage()

	first := New(usage, device.NewManager(), log.NewMockLogger())
	second := New(usage, device.NewManager(), log.NewMockLogger())
	defer second.Release()

	require.NoError(t, first.Initialize(rec.path))
	require.True(t, usage.InUse())
	require.ErrorIs(t, second.Initialize(rec.path), ErrExclusive)

	first.Release()
	first.Release()
	require.False(t, usage.InUse())
	require.NoError(t, second.Initialize(rec.path))

	// Separate tokens are independent.
	other := New(NewUsage(), device.NewManager(), log.NewMockLogger())
	defer other.Release()
	require.NoError(t, other.Initialize(rec.path))

	t.Run("openErr", func(t *testing.T) {
		usage := NewUsage()
		p := New(usage, device.NewManager(), log.NewMockLogger())
		err := p.Initialize(filepath.Join(t.TempDir(), "missing.rec"))
		require.ErrorIs(t, err, container.ErrOpen)
		require.False(t, usage.InUse())
	})
}

func TestRecordAndPlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.rec")
	logger := log.NewMockLogger()

	recorded := []geom.Quaternion{
		geom.IdentityQuaternion,
		geom.NewQuaternionAxisAngle(geom.Vector3{Y: 1}, math.Pi/2),
		geom.IdentityQuaternion,
	}

	input := device.NewManager()
	tracker := device.NewEmitter("tracker", device.TypeOrientation)
	require.NoError(t, tracker.Start())
	require.NoError(t, input.Add(tracker))

	r := recorder.New(input, logger)
	require.NoError(t, r.Start(path))
	for i, q := range recorded {
		require.NoError(t, tracker.Post(&device.OrientationSample{
			Header:          device.Header{Time: sample.Timestamp(i + 1), ObjectIDs: []uint32{0}},
			ReferenceSystem: sample.ReferenceSystemDeviceInObject,
			Orientations:    []geom.Quaternion{q},
		}))
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, r.Stop())
	require.Eventually(t, r.HasStopped, 5*time.Second, time.Millisecond)
	r.Release()

	output := device.NewManager()
	c := newCollector(output)

	p := New(NewUsage(), output, log.NewMockLogger())
	defer p.Release()
	require.NoError(t, p.Initialize(path))
	require.NoError(t, p.Start(1))
	require.Eventually(t, func() bool { return !p.IsPlaying() }, 5*time.Second, time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()

	require.Len(t, c.devices, 1)
	require.Equal(t, "OrientationTracker3DOF_0", c.devices[0].Name())
	require.Len(t, c.samples, 3)

	var last sample.Timestamp
	for i, s := range c.samples {
		o, ok := s.(*device.OrientationSample)
		require.True(t, ok)
		require.Equal(t, []uint32{0}, o.ObjectIDs)
		require.Len(t, o.Orientations, 1)

		want, got := recorded[i], o.Orientations[0]
		const epsilon = 1e-6
		require.InDelta(t, want.W, got.W, epsilon)
		require.InDelta(t, want.X, got.X, epsilon)
		require.InDelta(t, want.Y, got.Y, epsilon)
		require.InDelta(t, want.Z, got.Z, epsilon)

		require.True(t, o.Timestamp() >= last)
		last = o.Timestamp()
	}
}
