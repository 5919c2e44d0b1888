// SPDX-License-Identifier: GPL-2.0-or-later

package system

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"devrec/pkg/log"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Status stores system status.
type Status struct {
	CPUUsage   int    `json:"cpuUsage"`
	RAMUsage   int    `json:"ramUsage"`
	DiskUsage  int    `json:"diskUsage"`
	DiskFreeMB uint64 `json:"diskFreeMB"`
}

type (
	cpuFunc  func(context.Context, time.Duration, bool) ([]float64, error)
	ramFunc  func() (*mem.VirtualMemoryStat, error)
	diskFunc func(string) (*disk.UsageStat, error)
)

// System monitors the host while recording.
type System struct {
	cpu  cpuFunc
	ram  ramFunc
	disk diskFunc

	dir      string
	status   Status
	duration time.Duration

	logger *log.Logger
	mu     sync.Mutex
	o      sync.Once
}

// New returns a System reporting the disk usage of dir.
func New(dir string, logger *log.Logger) *System {
	return &System{
		cpu:  cpu.PercentWithContext,
		ram:  mem.VirtualMemory,
		disk: disk.Usage,

		dir:      dir,
		duration: 10 * time.Second,

		logger: logger,
	}
}

func (s *System) update(ctx context.Context) error {
	cpuUsage, err := s.cpu(ctx, s.duration, false)
	if err != nil {
		return fmt.Errorf("could not get cpu usage %w", err)
	}
	if len(cpuUsage) == 0 {
		return errors.New("could not get cpu usage")
	}
	ramUsage, err := s.ram()
	if err != nil {
		return fmt.Errorf("could not get ram usage %w", err)
	}
	diskUsage, err := s.disk(s.dir)
	if err != nil {
		return fmt.Errorf("could not get disk usage %w", err)
	}

	s.mu.Lock()
	s.status = Status{
		CPUUsage:   int(cpuUsage[0]),
		RAMUsage:   int(ramUsage.UsedPercent),
		DiskUsage:  int(diskUsage.UsedPercent),
		DiskFreeMB: diskUsage.Free / megabyte,
	}
	status := s.status
	s.mu.Unlock()

	s.logger.Debug().Src("system").Msgf("cpu %d%% ram %d%% disk %d%% (%dMB free)",
		status.CPUUsage, status.RAMUsage, status.DiskUsage, status.DiskFreeMB)
	return nil
}

// StatusLoop updates system status until context is canceled.
func (s *System) StatusLoop(ctx context.Context) {
	s.o.Do(func() {
		for {
			if ctx.Err() != nil {
				return
			}
			if err := s.update(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error().Src("system").Msgf("could not update system status: %v", err)
				select {
				case <-ctx.Done():
				case <-time.After(s.duration):
				}
			}
		}
	})
}

// Status returns cpu, ram and disk usage.
func (s *System) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

const megabyte = 1000 * 1000

// ErrDiskFull not enough free disk space.
var ErrDiskFull = errors.New("not enough free disk space")

// CheckFreeSpace returns ErrDiskFull if the file system
// of dir has less than minMB megabytes available.
func CheckFreeSpace(dir string, minMB uint64) error {
	return checkFreeSpace(disk.Usage, dir, minMB)
}

func checkFreeSpace(usage diskFunc, dir string, minMB uint64) error {
	stat, err := usage(dir)
	if err != nil {
		return fmt.Errorf("disk usage: %v: %w", dir, err)
	}
	if free := stat.Free / megabyte; free < minMB {
		return fmt.Errorf("%w: %v: %dMB free, %dMB required", ErrDiskFull, dir, free, minMB)
	}
	return nil
}
