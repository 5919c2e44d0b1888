// SPDX-License-Identifier: GPL-2.0-or-later

package container

import (
	"fmt"
	"sync"
	"time"

	"devrec/pkg/sample"

	bolt "go.etcd.io/bbolt"
)

// Writer writes a single container. Samples are buffered
// until Flush and written in one transaction.
type Writer struct {
	registry *Registry

	db        *bolt.DB
	startTime time.Time
	persisted int
	pending   []record
	duration  float64
	mu        sync.Mutex
}

// NewWriter creates a writer, channels can be added before Start.
func NewWriter() *Writer {
	return &Writer{
		registry: NewRegistry(),
	}
}

// AddChannel adds a channel, see Registry.Add.
func (w *Writer) AddChannel(sampleType string, name string, contentType string) (ChannelID, error) {
	return w.registry.Add(sampleType, name, contentType)
}

// ChannelConfiguration see Registry.Configuration.
func (w *Writer) ChannelConfiguration(id ChannelID) (Channel, bool) {
	return w.registry.Configuration(id)
}

// Channels returns all channels.
func (w *Writer) Channels() []Channel {
	return w.registry.Channels()
}

// Start creates the file at path, an existing file is truncated.
func (w *Writer) Start(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db != nil {
		return fmt.Errorf("%w: already started", ErrOpen)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("%w: %v: %v", ErrOpen, path, err)
	}

	startTime := time.Now()
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketChannels, bucketSamples} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keyVersion, []byte(version)); err != nil {
			return err
		}
		start := float64(startTime.UnixNano()) / float64(time.Second)
		return meta.Put(keyStart, encodeFloat64(start))
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("%w: %v: %v", ErrOpen, path, err)
	}

	w.db = db
	w.startTime = startTime
	return w.flush()
}

// StartTime returns the time Start was called.
func (w *Writer) StartTime() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.startTime
}

// IsOpen returns true between Start and Close.
func (w *Writer) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.db != nil
}

// AddSample encodes s and buffers it until the next flush.
func (w *Writer) AddSample(id ChannelID, s sample.Sample) error {
	if _, exists := w.registry.Configuration(id); !exists {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, id)
	}

	payload, err := sample.Encode(s)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return ErrNotOpen
	}
	w.pending = append(w.pending, record{
		channel:  id,
		playback: s.PlaybackTimestamp(),
		payload:  payload,
	})
	return nil
}

// Flush writes new channels and buffered samples.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flush()
}

func (w *Writer) flush() error {
	if w.db == nil {
		return ErrNotOpen
	}

	channels := w.registry.Channels()
	if w.persisted == len(channels) && len(w.pending) == 0 {
		return nil
	}

	duration := w.duration
	err := w.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChannels)
		for _, c := range channels[w.persisted:] {
			if err := b.Put(encodeChannelKey(c.ID), c.marshal()); err != nil {
				return fmt.Errorf("put channel: %w", err)
			}
		}

		b = tx.Bucket(bucketSamples)
		for _, r := range w.pending {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			if err := b.Put(encodeSeq(seq), r.marshal()); err != nil {
				return fmt.Errorf("put sample: %w", err)
			}
			if r.playback > duration {
				duration = r.playback
			}
		}
		return tx.Bucket(bucketMeta).Put(keyDuration, encodeFloat64(duration))
	})
	if err != nil {
		return err
	}

	w.persisted = len(channels)
	w.pending = nil
	w.duration = duration
	return nil
}

// Close flushes and closes the file, no channels can be added afterwards.
func (w *Writer) Close() error {
	w.registry.Close()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return nil
	}
	flushErr := w.flush()
	closeErr := w.db.Close()
	w.db = nil
	if flushErr != nil {
		return fmt.Errorf("flush: %w", flushErr)
	}
	return closeErr
}
