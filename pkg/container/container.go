// SPDX-License-Identifier: GPL-2.0-or-later

// Package container stores multiplexed sample channels in a bbolt file.
//
//  Bucket "meta":
//     version      "1"
//     start        float64 unix seconds
//     duration     float64 seconds, largest playback timestamp
//
//  Bucket "channels", key uint32 channel id:
//     Sample type  uint16 length + string
//     Name         uint16 length + string
//     Content type uint16 length + string
//
//  Bucket "samples", key uint64 sequence number:
//     Channel id   uint32
//     Playback     float64
//     Payload      sample encoding
//
// All integers are big-endian.
package container

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"devrec/pkg/sample"
)

// ChannelID channel identifier, assigned in ascending order from 0.
type ChannelID uint32

// InvalidChannelID is returned when no channel could be assigned,
// it never identifies a stored channel.
const InvalidChannelID = ChannelID(math.MaxUint32)

// ContentTypeFrame content type of media frame channels.
const ContentTypeFrame = "frame"

// Channel configuration.
type Channel struct {
	ID          ChannelID
	SampleType  string
	Name        string
	ContentType string
}

// Errors.
var (
	ErrOpen           = errors.New("could not open container")
	ErrNotOpen        = errors.New("container not open")
	ErrUnknownChannel = errors.New("unknown channel")
	ErrNotStarted     = errors.New("reader not started")
	ErrStringTooLong  = errors.New("channel string too long")
)

// MaxStringLength longest sample type, name or content type a channel can store.
const MaxStringLength = math.MaxUint16

const version = "1"

var (
	bucketMeta     = []byte("meta")
	bucketChannels = []byte("channels")
	bucketSamples  = []byte("samples")

	keyVersion  = []byte("version")
	keyStart    = []byte("start")
	keyDuration = []byte("duration")
)

// Registry assigns channel ids.
type Registry struct {
	channels []Channel
	closed   bool
	mu       sync.Mutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add channel and return its id. Fails once the registry is closed.
func (r *Registry) Add(sampleType string, name string, contentType string) (ChannelID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return InvalidChannelID, ErrNotOpen
	}
	for _, value := range []string{sampleType, name, contentType} {
		if len(value) > MaxStringLength {
			return InvalidChannelID, fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(value))
		}
	}
	id := ChannelID(len(r.channels))
	if id == InvalidChannelID {
		return InvalidChannelID, fmt.Errorf("too many channels: %d", id)
	}

	r.channels = append(r.channels, Channel{
		ID:          id,
		SampleType:  sampleType,
		Name:        name,
		ContentType: contentType,
	})
	return id, nil
}

// Configuration returns the channel with the given id.
func (r *Registry) Configuration(id ChannelID) (Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if int64(id) >= int64(len(r.channels)) {
		return Channel{}, false
	}
	return r.channels[id], true
}

// Channels returns all channels in id order.
func (r *Registry) Channels() []Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	channels := make([]Channel, len(r.channels))
	copy(channels, r.channels)
	return channels
}

// Len number of channels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// Close the registry, later calls to Add fail.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// load appends a persisted channel, ids must be contiguous.
func (r *Registry) load(c Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if int64(c.ID) != int64(len(r.channels)) {
		return fmt.Errorf("%w: channel id %d, expected %d", sample.ErrFormat, c.ID, len(r.channels))
	}
	r.channels = append(r.channels, c)
	return nil
}

func (c Channel) marshal() []byte {
	size := 6 + len(c.SampleType) + len(c.Name) + len(c.ContentType)
	out := make([]byte, size)
	pos := 0
	marshalString(out, &pos, c.SampleType)
	marshalString(out, &pos, c.Name)
	marshalString(out, &pos, c.ContentType)
	return out
}

func marshalString(out []byte, pos *int, value string) {
	binary.BigEndian.PutUint16(out[*pos:*pos+2], uint16(len(value)))
	*pos += 2
	*pos += copy(out[*pos:], value)
}

func (c *Channel) unmarshal(key []byte, buf []byte) error {
	if len(key) != 4 {
		return fmt.Errorf("%w: channel key length %d", sample.ErrFormat, len(key))
	}
	c.ID = ChannelID(binary.BigEndian.Uint32(key))

	pos := 0
	var err error
	if c.SampleType, err = unmarshalString(buf, &pos); err != nil {
		return err
	}
	if c.Name, err = unmarshalString(buf, &pos); err != nil {
		return err
	}
	if c.ContentType, err = unmarshalString(buf, &pos); err != nil {
		return err
	}
	if pos != len(buf) {
		return fmt.Errorf("%w: channel %d: trailing bytes", sample.ErrFormat, c.ID)
	}
	return nil
}

func unmarshalString(buf []byte, pos *int) (string, error) {
	if len(buf) < *pos+2 {
		return "", fmt.Errorf("%w: channel truncated", sample.ErrFormat)
	}
	n := int(binary.BigEndian.Uint16(buf[*pos:]))
	*pos += 2
	if len(buf) < *pos+n {
		return "", fmt.Errorf("%w: channel truncated", sample.ErrFormat)
	}
	value := string(buf[*pos : *pos+n])
	*pos += n
	return value, nil
}

func encodeChannelKey(id ChannelID) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(id))
	return out
}

func encodeSeq(seq uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, seq)
	return out
}

func encodeFloat64(v float64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, math.Float64bits(v))
	return out
}

func decodeFloat64(b []byte) (float64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), true
}

const recordHeaderSize = 12

// record is a stored sample.
type record struct {
	seq      uint64
	channel  ChannelID
	playback float64
	payload  []byte
}

func (r record) marshal() []byte {
	out := make([]byte, recordHeaderSize+len(r.payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(r.channel))
	binary.BigEndian.PutUint64(out[4:12], math.Float64bits(r.playback))
	copy(out[recordHeaderSize:], r.payload)
	return out
}

// unmarshalRecord copies buf, values are only valid inside a transaction.
func unmarshalRecord(key []byte, buf []byte) (record, error) {
	if len(key) != 8 || len(buf) < recordHeaderSize {
		return record{}, fmt.Errorf("%w: record truncated", sample.ErrFormat)
	}
	payload := make([]byte, len(buf)-recordHeaderSize)
	copy(payload, buf[recordHeaderSize:])
	return record{
		seq:      binary.BigEndian.Uint64(key),
		channel:  ChannelID(binary.BigEndian.Uint32(buf[0:4])),
		playback: math.Float64frombits(binary.BigEndian.Uint64(buf[4:12])),
		payload:  payload,
	}, nil
}
