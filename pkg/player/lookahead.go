// SPDX-License-Identifier: GPL-2.0-or-later

package player

import (
	"devrec/pkg/container"
	"devrec/pkg/sample"
)

// PlayNextFrame plays until the next sample of the reference frame
// channel and returns its data timestamp. Samples of other channels
// with a data timestamp at or before the frame are dispatched first,
// samples up to the lookahead tolerance ahead of the frame are read
// to find them. Returns an invalid timestamp at the end of the
// recording or if the player is not in stop-motion mode.
func (p *Player) PlayNextFrame() sample.Timestamp {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started.Load() || p.speed > 0 || p.reader == nil {
		return sample.InvalidTimestamp
	}
	if p.reference == container.InvalidChannelID {
		p.logger.Warn().Src("player").Msg("recording has no frame channel")
		return sample.InvalidTimestamp
	}

	for {
		var id container.ChannelID
		var s sample.Sample

		if len(p.pending) != 0 {
			next := p.pending[0]
			p.pending[0] = pending{}
			p.pending = p.pending[1:]
			if next.sample == nil {
				continue
			}
			id, s = next.channel, next.sample
		} else {
			var ok bool
			id, s, ok = p.read()
			if !ok {
				break
			}
		}

		if id == p.reference {
			t := s.DataTimestamp()
			p.lookahead(t, s.PlaybackTimestamp()+p.tolerance)
			p.dispatch(id, s)
			return t
		}
		p.dispatch(id, s)
	}

	p.started.Store(false)
	return sample.InvalidTimestamp
}

// lookahead dispatches the samples of other channels with a data
// timestamp at or before t, reading ahead until maxPlayback.
func (p *Player) lookahead(t sample.Timestamp, maxPlayback float64) {
	for i := range p.pending {
		e := &p.pending[i]
		if e.sample == nil {
			continue
		}
		if e.sample.PlaybackTimestamp() > maxPlayback {
			return
		}
		if e.channel == p.reference || e.sample.DataTimestamp() > t {
			continue
		}
		p.dispatch(e.channel, e.sample)
		e.sample = nil
	}

	for {
		id, s, ok := p.read()
		if !ok {
			return
		}
		if id != p.reference && s.DataTimestamp() <= t {
			p.dispatch(id, s)
			continue
		}

		p.pending = append(p.pending, pending{channel: id, sample: s})
		if s.PlaybackTimestamp() > maxPlayback {
			return
		}
	}
}
