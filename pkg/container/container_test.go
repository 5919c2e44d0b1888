// SPDX-License-Identifier: GPL-2.0-or-later

package container

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"devrec/pkg/geom"
	"devrec/pkg/sample"

	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func TestRegistry(t *testing.T) {
	t.Run("ascending", func(t *testing.T) {
		r := NewRegistry()
		var prev ChannelID
		for i := 0; i < 10; i++ {
			id, err := r.Add(sample.TypeGPSTracker, "gps", "DEVICE_TRACKER,TRACKER_GPS")
			require.NoError(t, err)
			if i != 0 {
				require.True(t, id > prev)
			}
			prev = id
		}
		require.Equal(t, ChannelID(9), prev)
		require.Equal(t, 10, r.Len())
	})
	t.Run("configuration", func(t *testing.T) {
		r := NewRegistry()
		id, err := r.Add(sample.TypeFrame, "FrameMedium,cam", ContentTypeFrame)
		require.NoError(t, err)

		c, exists := r.Configuration(id)
		require.True(t, exists)
		require.Equal(t, Channel{
			ID:          id,
			SampleType:  sample.TypeFrame,
			Name:        "FrameMedium,cam",
			ContentType: ContentTypeFrame,
		}, c)

		_, exists = r.Configuration(id + 1)
		require.False(t, exists)
		_, exists = r.Configuration(InvalidChannelID)
		require.False(t, exists)
	})
	t.Run("longString", func(t *testing.T) {
		r := NewRegistry()
		long := strings.Repeat("a", MaxStringLength+1)

		_, err := r.Add(sample.TypeGPSTracker, long, "DEVICE_TRACKER,TRACKER_GPS")
		require.ErrorIs(t, err, ErrStringTooLong)
		_, err = r.Add(long, "gps", "")
		require.ErrorIs(t, err, ErrStringTooLong)
		_, err = r.Add(sample.TypeFrame, "cam", long)
		require.ErrorIs(t, err, ErrStringTooLong)
		require.Equal(t, 0, r.Len())

		id, err := r.Add(sample.TypeFrame, long[1:], ContentTypeFrame)
		require.NoError(t, err)
		require.Equal(t, ChannelID(0), id)
	})
	t.Run("closed", func(t *testing.T) {
		r := NewRegistry()
		r.Close()
		id, err := r.Add("a", "b", "c")
		require.ErrorIs(t, err, ErrNotOpen)
		require.Equal(t, InvalidChannelID, id)
	})
}

func TestChannelMarshal(t *testing.T) {
	c := Channel{ID: 2, SampleType: "t", Name: "nm", ContentType: ""}
	raw := c.marshal()
	require.Equal(t, []byte{0, 1, 't', 0, 2, 'n', 'm', 0, 0}, raw)

	var actual Channel
	require.NoError(t, actual.unmarshal([]byte{0, 0, 0, 2}, raw))
	require.Equal(t, c, actual)

	require.ErrorIs(t, actual.unmarshal([]byte{0, 0, 0, 2}, raw[:4]), sample.ErrFormat)
	require.ErrorIs(t, actual.unmarshal([]byte{0, 0, 0, 2}, append(raw, 1)), sample.ErrFormat)
}

func orientation(data sample.Timestamp, playback float64) *sample.OrientationTracker3DOF {
	return &sample.OrientationTracker3DOF{
		Base:         sample.Base{Data: data, Playback: playback},
		ObjectIDs:    []uint32{0},
		Orientations: []geom.QuaternionF{{W: 1}},
	}
}

func newTestReader(t *testing.T, path string) *Reader {
	t.Helper()
	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	for _, f := range sample.DeviceFactories() {
		require.NoError(t, r.RegisterSample(f().Type(), f))
	}
	return r
}

func TestWriterLongName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.rec")

	w := NewWriter()
	require.NoError(t, w.Start(path))

	_, err := w.AddChannel(sample.TypeFrame, strings.Repeat("a", 70000), ContentTypeFrame)
	require.ErrorIs(t, err, ErrStringTooLong)

	id, err := w.AddChannel(sample.TypeOrientationTracker3DOF, "b", "DEVICE_TRACKER,TRACKER_ORIENTATION_3DOF")
	require.NoError(t, err)
	require.NoError(t, w.AddSample(id, orientation(1, 0)))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, []Channel{{
		ID:          id,
		SampleType:  sample.TypeOrientationTracker3DOF,
		Name:        "b",
		ContentType: "DEVICE_TRACKER,TRACKER_ORIENTATION_3DOF",
	}}, r.Channels())
}

func TestWriterReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.rec")

	w := NewWriter()
	early, err := w.AddChannel(sample.TypeOrientationTracker3DOF, "a", "DEVICE_TRACKER,TRACKER_ORIENTATION_3DOF")
	require.NoError(t, err)

	require.ErrorIs(t, w.AddSample(early, orientation(1, 0)), ErrNotOpen)
	require.NoError(t, w.Start(path))

	late, err := w.AddChannel(sample.TypeOrientationTracker3DOF, "b", "DEVICE_TRACKER,TRACKER_ORIENTATION_3DOF")
	require.NoError(t, err)
	require.ErrorIs(t, w.AddSample(7, orientation(1, 0)), ErrUnknownChannel)

	// More than one chunk.
	const n = chunkSize + 10
	for i := 0; i < n; i++ {
		id := early
		if i%2 == 1 {
			id = late
		}
		require.NoError(t, w.AddSample(id, orientation(sample.Timestamp(i), float64(i)/1000)))
		if i%100 == 0 {
			require.NoError(t, w.Flush())
		}
	}
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.AddChannel("x", "y", "z")
	require.ErrorIs(t, err, ErrNotOpen)

	r := newTestReader(t, path)
	require.Equal(t, w.Channels(), r.Channels())
	require.Equal(t, time.Duration(float64(n-1)/1000*float64(time.Second)), r.Duration())
	require.WithinDuration(t, w.StartTime(), r.StartTime(), time.Millisecond)

	_, _, err = r.Sample(context.Background(), 0)
	require.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, r.Start())
	for i := 0; i < n; i++ {
		id, s, err := r.Sample(context.Background(), 0)
		require.NoError(t, err)
		require.Equal(t, sample.Timestamp(i), s.DataTimestamp())
		if i%2 == 0 {
			require.Equal(t, early, id)
		} else {
			require.Equal(t, late, id)
		}
	}

	_, _, err = r.Sample(context.Background(), 0)
	require.ErrorIs(t, err, io.EOF)
	require.True(t, r.HasFinished())

	stats, err := r.Stats()
	require.NoError(t, err)
	require.Equal(t, n/2, stats[early].Samples)
	require.Equal(t, 0.0, stats[early].FirstPlayback)
}

func TestReaderPacing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.rec")

	w := NewWriter()
	id, err := w.AddChannel(sample.TypeOrientationTracker3DOF, "a", "")
	require.NoError(t, err)
	require.NoError(t, w.Start(path))
	require.NoError(t, w.AddSample(id, orientation(0, 0)))
	require.NoError(t, w.AddSample(id, orientation(1, 0.1)))
	require.NoError(t, w.Close())

	t.Run("speed", func(t *testing.T) {
		r := newTestReader(t, path)
		require.NoError(t, r.Start())

		start := time.Now()
		for i := 0; i < 2; i++ {
			_, _, err := r.Sample(context.Background(), 2)
			require.NoError(t, err)
		}
		require.True(t, time.Since(start) >= 50*time.Millisecond)
	})
	t.Run("canceled", func(t *testing.T) {
		r := newTestReader(t, path)
		require.NoError(t, r.Start())

		ctx, cancel := context.WithCancel(context.Background())
		_, _, err := r.Sample(ctx, 0.01)
		require.NoError(t, err)

		cancel()
		_, _, err = r.Sample(ctx, 0.01)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestReaderFormatError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.rec")

	w := NewWriter()
	good, err := w.AddChannel(sample.TypeOrientationTracker3DOF, "good", "")
	require.NoError(t, err)
	bad, err := w.AddChannel(sample.TypeOrientationTracker3DOF, "bad", "")
	require.NoError(t, err)
	require.NoError(t, w.Start(path))
	require.NoError(t, w.AddSample(good, orientation(0, 0)))
	require.NoError(t, w.AddSample(bad, orientation(1, 0)))
	require.NoError(t, w.AddSample(good, orientation(2, 0)))
	require.NoError(t, w.AddSample(bad, orientation(3, 0)))
	require.NoError(t, w.Close())

	// Corrupt the first sample of the bad channel.
	db, err := bolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSamples)
		v := b.Get(encodeSeq(2))
		rec, err := unmarshalRecord(encodeSeq(2), v)
		if err != nil {
			return err
		}
		rec.payload = rec.payload[:len(rec.payload)-3]
		return b.Put(encodeSeq(2), rec.marshal())
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	r := newTestReader(t, path)
	require.NoError(t, r.Start())

	id, s, err := r.Sample(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, good, id)
	require.Equal(t, sample.Timestamp(0), s.DataTimestamp())

	id, _, err = r.Sample(context.Background(), 0)
	require.ErrorIs(t, err, sample.ErrFormat)
	require.Equal(t, bad, id)

	// The bad channel has ended, its last sample is skipped.
	id, s, err = r.Sample(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, good, id)
	require.Equal(t, sample.Timestamp(2), s.DataTimestamp())

	_, _, err = r.Sample(context.Background(), 0)
	require.ErrorIs(t, err, io.EOF)
}

func TestOpenErr(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "missing"))
		require.ErrorIs(t, err, ErrOpen)
	})
	t.Run("notContainer", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.db")
		db, err := bolt.Open(path, 0o600, nil)
		require.NoError(t, err)
		require.NoError(t, db.Close())

		_, err = Open(path)
		require.ErrorIs(t, err, ErrOpen)
	})
	t.Run("writer", func(t *testing.T) {
		w := NewWriter()
		err := w.Start(filepath.Join(t.TempDir(), "missing", "dir", "x.rec"))
		require.ErrorIs(t, err, ErrOpen)
	})
}
