// SPDX-License-Identifier: GPL-2.0-or-later

package log

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "logs.db")

	logDB := NewDB(dbPath, &sync.WaitGroup{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, logDB.Init(ctx))

	return logDB
}

func TestQuery(t *testing.T) {
	msg1 := Log{
		Level:   LevelError,
		Time:    4000,
		Src:     "s1",
		Channel: "1",
		Msg:     "msg1",
	}
	msg2 := Log{
		Level: LevelWarning,
		Time:  3000,
		Src:   "s1",
		Msg:   "msg2",
	}
	msg3 := Log{
		Level:   LevelInfo,
		Time:    2000,
		Src:     "s2",
		Channel: "2",
		Device:  "gps_2",
		Msg:     "msg3",
	}

	logDB := newTestDB(t)
	require.NoError(t, logDB.saveLog(msg3))
	require.NoError(t, logDB.saveLog(msg2))
	require.NoError(t, logDB.saveLog(msg1))

	cases := []struct {
		name     string
		input    Query
		expected []Log
	}{
		{
			name: "singleLevel",
			input: Query{
				Levels:  []Level{LevelWarning},
				Sources: []string{"s1"},
			},
			expected: []Log{msg2},
		},
		{
			name: "multipleLevels",
			input: Query{
				Levels:  []Level{LevelError, LevelWarning},
				Sources: []string{"s1"},
			},
			expected: []Log{msg1, msg2},
		},
		{
			name: "multipleSources",
			input: Query{
				Levels:  []Level{LevelError, LevelInfo},
				Sources: []string{"s1", "s2"},
			},
			expected: []Log{msg1, msg3},
		},
		{
			name: "singleChannel",
			input: Query{
				Channels: []string{"1"},
			},
			expected: []Log{msg1},
		},
		{
			name: "device",
			input: Query{
				Devices: []string{"gps_2"},
			},
			expected: []Log{msg3},
		},
		{
			name:     "all",
			input:    Query{},
			expected: []Log{msg1, msg2, msg3},
		},
		{
			name:     "limit",
			input:    Query{Limit: 2},
			expected: []Log{msg1, msg2},
		},
		{
			name:     "exactTime",
			input:    Query{Time: 4000},
			expected: []Log{msg2, msg3},
		},
		{
			name:     "time",
			input:    Query{Time: 3500},
			expected: []Log{msg2, msg3},
		},
		{
			name:     "timeAfterLast",
			input:    Query{Time: 9000},
			expected: []Log{msg1, msg2, msg3},
		},
		{
			name:     "timeBeforeFirst",
			input:    Query{Time: 1000},
			expected: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logs, err := logDB.Query(tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.expected, logs)
		})
	}
}

func TestQueryUnmarshalErr(t *testing.T) {
	logDB := newTestDB(t)

	err := logDB.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(dbAPIversion))
		return b.Put(encodeKey(1, 1), []byte("nil"))
	})
	require.NoError(t, err)

	_, err = logDB.Query(Query{})
	require.Error(t, err)
}

func TestDB(t *testing.T) {
	t.Run("maxKeys", func(t *testing.T) {
		logDB := newTestDB(t)
		logDB.maxKeys = 3

		for i := 1; i <= 5; i++ {
			require.NoError(t, logDB.saveLog(Log{Time: UnixMicro(i)}))
		}

		logs, err := logDB.Query(Query{})
		require.NoError(t, err)
		require.Len(t, logs, 3)
		require.Equal(t, UnixMicro(5), logs[0].Time)
		require.Equal(t, UnixMicro(3), logs[2].Time)
	})
	t.Run("sameTime", func(t *testing.T) {
		logDB := newTestDB(t)
		require.NoError(t, logDB.saveLog(Log{Time: 1, Msg: "a"}))
		require.NoError(t, logDB.saveLog(Log{Time: 1, Msg: "b"}))

		logs, err := logDB.Query(Query{})
		require.NoError(t, err)
		require.Len(t, logs, 2)
	})
	t.Run("openDBerr", func(t *testing.T) {
		logDB := NewDB("/dev/null", nil)
		require.Error(t, logDB.Init(context.Background()))
	})
	t.Run("saveLogs", func(t *testing.T) {
		logDB := newTestDB(t)
		logger := NewMockLogger()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			logDB.SaveLogs(ctx, logger)
			close(done)
		}()

		// Wait for the subscription.
		require.Eventually(t, func() bool {
			logger.Info().Src("recorder").Channel(7).Msg("a")
			logs, err := logDB.Query(Query{Channels: []string{"7"}})
			return err == nil && len(logs) != 0
		}, time.Second, 5*time.Millisecond)

		cancel()
		<-done
	})
}

func TestQueryNotInitialized(t *testing.T) {
	logDB := NewDB(filepath.Join(t.TempDir(), "logs.db"), nil)
	_, err := logDB.Query(Query{})
	require.ErrorIs(t, err, ErrNotInitialized)
}
