// SPDX-License-Identifier: GPL-2.0-or-later

package container

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"devrec/pkg/sample"

	bolt "go.etcd.io/bbolt"
)

const chunkSize = 256

// Reader reads a container in recording order.
type Reader struct {
	db       *bolt.DB
	channels *Registry
	samples  *sample.Registry

	startTime time.Time
	duration  float64

	chunk     []record
	nextSeq   uint64
	exhausted bool
	ended     map[ChannelID]struct{}

	started   bool
	startedAt time.Time
	mu        sync.Mutex
}

// Open opens an existing container read-only and loads its channels.
func Open(path string) (*Reader, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:  1 * time.Second,
		ReadOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %v", ErrOpen, path, err)
	}

	r := &Reader{
		db:       db,
		channels: NewRegistry(),
		samples:  sample.NewRegistry(),
		ended:    make(map[ChannelID]struct{}),
	}
	if err := r.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v: %v", ErrOpen, path, err)
	}
	r.channels.Close()
	return r, nil
}

func (r *Reader) load() error {
	return r.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		channels := tx.Bucket(bucketChannels)
		if meta == nil || channels == nil || tx.Bucket(bucketSamples) == nil {
			return fmt.Errorf("%w: missing bucket", sample.ErrFormat)
		}

		if v := string(meta.Get(keyVersion)); v != version {
			return fmt.Errorf("%w: unsupported version: %q", sample.ErrFormat, v)
		}
		start, ok := decodeFloat64(meta.Get(keyStart))
		if !ok {
			return fmt.Errorf("%w: invalid start time", sample.ErrFormat)
		}
		sec := int64(start)
		r.startTime = time.Unix(sec, int64((start-float64(sec))*float64(time.Second)))

		if duration, ok := decodeFloat64(meta.Get(keyDuration)); ok {
			r.duration = duration
		}

		// Keys are big-endian so the cursor returns ids in order.
		return channels.ForEach(func(k, v []byte) error {
			var c Channel
			if err := c.unmarshal(k, v); err != nil {
				return err
			}
			return r.channels.load(c)
		})
	})
}

// RegisterSample registers a decoder for sampleType.
func (r *Reader) RegisterSample(sampleType string, f sample.Factory) error {
	return r.samples.Register(sampleType, f)
}

// Channels returns all channels in id order.
func (r *Reader) Channels() []Channel {
	return r.channels.Channels()
}

// ChannelConfiguration returns the channel with the given id.
func (r *Reader) ChannelConfiguration(id ChannelID) (Channel, bool) {
	return r.channels.Configuration(id)
}

// StartTime returns the time the recording was started.
func (r *Reader) StartTime() time.Time {
	return r.startTime
}

// Duration returns the largest playback timestamp.
func (r *Reader) Duration() time.Duration {
	return time.Duration(r.duration * float64(time.Second))
}

// Start starts reading from the first sample, the playback clock starts now.
func (r *Reader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return ErrNotOpen
	}
	r.chunk = nil
	r.nextSeq = 0
	r.exhausted = false
	r.ended = make(map[ChannelID]struct{})
	r.started = true
	r.startedAt = time.Now()
	return nil
}

// Sample returns the next sample in recording order. With speed > 0 it
// waits until the sample's playback timestamp divided by speed has passed
// since Start. Samples are not reordered, one whose playback timestamp
// is already due is returned without waiting.
// Returns io.EOF once all samples have been read.
// A decode error is returned once and ends the channel, its later
// samples are skipped.
func (r *Reader) Sample(ctx context.Context, speed float64) (ChannelID, sample.Sample, error) {
	r.mu.Lock()
	id, s, err := r.next()
	startedAt := r.startedAt
	r.mu.Unlock()
	if err != nil {
		return id, nil, err
	}

	if speed > 0 {
		due := startedAt.Add(time.Duration(s.PlaybackTimestamp() / speed * float64(time.Second)))
		if wait := time.Until(due); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return InvalidChannelID, nil, ctx.Err()
			}
		}
	}
	return id, s, nil
}

func (r *Reader) next() (ChannelID, sample.Sample, error) {
	if r.db == nil {
		return InvalidChannelID, nil, ErrNotOpen
	}
	if !r.started {
		return InvalidChannelID, nil, ErrNotStarted
	}

	for {
		if len(r.chunk) == 0 {
			if r.exhausted {
				return InvalidChannelID, nil, io.EOF
			}
			if err := r.fetch(); err != nil {
				return InvalidChannelID, nil, err
			}
			continue
		}

		rec := r.chunk[0]
		r.chunk = r.chunk[1:]

		if _, ended := r.ended[rec.channel]; ended {
			continue
		}

		c, exists := r.channels.Configuration(rec.channel)
		if !exists {
			r.ended[rec.channel] = struct{}{}
			return rec.channel, nil, fmt.Errorf("%w: sample of unknown channel %d", sample.ErrFormat, rec.channel)
		}

		s, err := r.samples.Decode(c.SampleType, rec.payload)
		if err != nil {
			r.ended[rec.channel] = struct{}{}
			return rec.channel, nil, fmt.Errorf("channel %d: %w", rec.channel, err)
		}
		return rec.channel, s, nil
	}
}

// fetch reads the next chunk of records.
func (r *Reader) fetch() error {
	var chunk []record
	err := r.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSamples).Cursor()
		for k, v := c.Seek(encodeSeq(r.nextSeq)); k != nil && len(chunk) < chunkSize; k, v = c.Next() {
			rec, err := unmarshalRecord(k, v)
			if err != nil {
				return err
			}
			chunk = append(chunk, rec)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(chunk) < chunkSize {
		r.exhausted = true
	}
	if len(chunk) != 0 {
		r.nextSeq = chunk[len(chunk)-1].seq + 1
	}
	r.chunk = chunk
	return nil
}

// HasFinished returns true once every sample has been read.
func (r *Reader) HasFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started && r.exhausted && len(r.chunk) == 0
}

// ChannelStats summary of a channel.
type ChannelStats struct {
	Samples       int
	FirstPlayback float64
	LastPlayback  float64
}

// Stats counts the samples of every channel without decoding them.
func (r *Reader) Stats() (map[ChannelID]ChannelStats, error) {
	stats := make(map[ChannelID]ChannelStats)
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSamples).ForEach(func(k, v []byte) error {
			rec, err := unmarshalRecord(k, v)
			if err != nil {
				return err
			}
			s, exists := stats[rec.channel]
			if !exists {
				s.FirstPlayback = rec.playback
			}
			s.Samples++
			s.LastPlayback = rec.playback
			stats[rec.channel] = s
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Close the file.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}
