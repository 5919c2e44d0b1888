// SPDX-License-Identifier: GPL-2.0-or-later

package system

import (
	"context"
	"errors"
	"testing"
	"time"

	"devrec/pkg/log"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/require"
)

func mockCPU(context.Context, time.Duration, bool) ([]float64, error) {
	return []float64{11}, nil
}

func mockRAM() (*mem.VirtualMemoryStat, error) {
	return &mem.VirtualMemoryStat{UsedPercent: 22}, nil
}

func mockDisk(string) (*disk.UsageStat, error) {
	return &disk.UsageStat{UsedPercent: 33, Free: 44 * megabyte}, nil
}

var errMock = errors.New("mock")

func newTestSystem() *System {
	return &System{
		cpu:      mockCPU,
		ram:      mockRAM,
		disk:     mockDisk,
		dir:      "/",
		duration: time.Millisecond,
		logger:   log.NewMockLogger(),
	}
}

func TestUpdate(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		s := newTestSystem()
		require.NoError(t, s.update(context.Background()))

		expected := Status{
			CPUUsage:   11,
			RAMUsage:   22,
			DiskUsage:  33,
			DiskFreeMB: 44,
		}
		require.Equal(t, expected, s.Status())
	})
	t.Run("cpuErr", func(t *testing.T) {
		s := newTestSystem()
		s.cpu = func(context.Context, time.Duration, bool) ([]float64, error) {
			return nil, errMock
		}
		require.ErrorIs(t, s.update(context.Background()), errMock)
	})
	t.Run("ramErr", func(t *testing.T) {
		s := newTestSystem()
		s.ram = func() (*mem.VirtualMemoryStat, error) {
			return nil, errMock
		}
		require.ErrorIs(t, s.update(context.Background()), errMock)
	})
	t.Run("diskErr", func(t *testing.T) {
		s := newTestSystem()
		s.disk = func(string) (*disk.UsageStat, error) {
			return nil, errMock
		}
		require.ErrorIs(t, s.update(context.Background()), errMock)
	})
}

func TestStatusLoop(t *testing.T) {
	s := newTestSystem()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.StatusLoop(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return s.Status().CPUUsage == 11
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("status loop did not stop")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	require.NoError(t, checkFreeSpace(mockDisk, "/", 44))
	require.ErrorIs(t, checkFreeSpace(mockDisk, "/", 45), ErrDiskFull)

	err := checkFreeSpace(func(string) (*disk.UsageStat, error) {
		return nil, errMock
	}, "/", 1)
	require.ErrorIs(t, err, errMock)

	require.NoError(t, CheckFreeSpace(t.TempDir(), 0))
}
