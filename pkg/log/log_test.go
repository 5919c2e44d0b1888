// SPDX-License-Identifier: GPL-2.0-or-later

package log

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *Logger {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := NewLogger(&sync.WaitGroup{})
	logger.Start(ctx)
	return logger
}

func TestLogger(t *testing.T) {
	t.Run("msg", func(t *testing.T) {
		logger := newTestLogger(t)

		feed, cancel := logger.Subscribe()
		defer cancel()

		go logger.Info().Src("player").Channel(3).Device("gps_3").Msgf("%s", "test")
		actual := <-feed

		require.Equal(t, LevelInfo, actual.Level)
		require.Equal(t, "player", actual.Src)
		require.Equal(t, "3", actual.Channel)
		require.Equal(t, "gps_3", actual.Device)
		require.Equal(t, "test", actual.Msg)
		require.NotZero(t, actual.Time)
	})
	t.Run("unsubBeforeMsg", func(t *testing.T) {
		logger := newTestLogger(t)

		feed1, cancel1 := logger.Subscribe()
		feed2, cancel2 := logger.Subscribe()
		cancel2()

		go logger.Error().Msg("test")
		actual1 := <-feed1
		actual2, ok := <-feed2
		cancel1()

		require.Equal(t, "test", actual1.Msg)
		require.False(t, ok)
		require.Equal(t, Log{}, actual2)
	})
	t.Run("msgAfterStop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		wg := &sync.WaitGroup{}
		logger := NewLogger(wg)
		logger.Start(ctx)

		feed, _ := logger.Subscribe()
		cancel()
		wg.Wait()

		_, ok := <-feed
		require.False(t, ok)

		// Must not block.
		logger.Warn().Msg("dropped")
	})
}

func TestFormatLog(t *testing.T) {
	cases := []struct {
		input    Log
		expected string
	}{
		{Log{Level: LevelError, Msg: "a"}, "[ERROR] a"},
		{Log{Level: LevelInfo, Src: "recorder", Msg: "a"}, "[INFO] Recorder: a"},
		{
			Log{Level: LevelDebug, Src: "player", Channel: "2", Device: "gps_2", Msg: "a"},
			"[DEBUG] channel 2: gps_2: Player: a",
		},
	}
	for _, tc := range cases {
		require.Equal(t, tc.expected, formatLog(tc.input))
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("Warning")
	require.NoError(t, err)
	require.Equal(t, LevelWarning, level)

	_, err = ParseLevel("loud")
	require.ErrorIs(t, err, ErrInvalidLevel)
}
