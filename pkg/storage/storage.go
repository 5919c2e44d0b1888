// SPDX-License-Identifier: GPL-2.0-or-later

// Package storage manages the recordings directory.
package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"devrec/pkg/log"
)

// Ext recording file extension.
const Ext = ".rec"

// Recording file.
type Recording struct {
	Name    string // Path relative to the recordings directory.
	Size    int64
	ModTime time.Time
}

// Manager storage manager.
type Manager struct {
	recordingsDir string
	fsys          fs.FS
	maxBytes      int64
	removeAll     func(string) error

	cache      DiskUsage
	lastUpdate time.Time
	cacheLock  sync.Mutex
	updateLock sync.Mutex

	logger *log.Logger
}

// NewManager returns new manager, recordings are purged
// when they use more than maxMB megabytes. 0 disables purging.
func NewManager(recordingsDir string, maxMB uint64, logger *log.Logger) *Manager {
	return &Manager{
		recordingsDir: recordingsDir,
		fsys:          os.DirFS(recordingsDir),
		maxBytes:      int64(maxMB) * int64(megabyte),
		removeAll:     os.RemoveAll,
		logger:        logger,
	}
}

// Recordings returns all recordings, oldest first.
func (s *Manager) Recordings() ([]Recording, error) {
	var recordings []Recording
	err := fs.WalkDir(s.fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), Ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		recordings = append(recordings, Recording{
			Name:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read recordings: %w", err)
	}

	sort.Slice(recordings, func(i, j int) bool {
		a, b := recordings[i], recordings[j]
		if a.ModTime.Equal(b.ModTime) {
			return a.Name < b.Name
		}
		return a.ModTime.Before(b.ModTime)
	})
	return recordings, nil
}

// DiskUsage in Bytes.
type DiskUsage struct {
	Used      int64
	Percent   int // Of the maximum, 0 without maximum.
	Formatted string
}

// Usage returns cached value if within maxAge.
// Will update and return new value if the cached value is too old.
func (s *Manager) Usage(maxAge time.Duration) (DiskUsage, error) {
	maxTime := time.Now().Add(-maxAge)

	s.cacheLock.Lock()
	if s.lastUpdate.After(maxTime) {
		defer s.cacheLock.Unlock()
		return s.cache, nil
	}
	s.cacheLock.Unlock()

	// Cache is too old, acquire update lock and update it.
	s.updateLock.Lock()
	defer s.updateLock.Unlock()

	// Check if it was updated while we were waiting for the update lock.
	s.cacheLock.Lock()
	if s.lastUpdate.After(maxTime) {
		defer s.cacheLock.Unlock()
		return s.cache, nil
	}
	s.cacheLock.Unlock()

	recordings, err := s.Recordings()
	if err != nil {
		return DiskUsage{}, err
	}
	usage := s.calculateUsage(recordings)

	s.cacheLock.Lock()
	s.cache = usage
	s.lastUpdate = time.Now()
	s.cacheLock.Unlock()

	return usage, nil
}

func (s *Manager) calculateUsage(recordings []Recording) DiskUsage {
	var used int64
	for _, rec := range recordings {
		used += rec.Size
	}

	percent := 0
	if s.maxBytes != 0 {
		percent = int((used * 100) / s.maxBytes)
	}
	return DiskUsage{
		Used:      used,
		Percent:   percent,
		Formatted: FormatSize(used),
	}
}

// Purge deletes the oldest recordings until the
// recordings use less than the maximum.
func (s *Manager) Purge() error {
	if s.maxBytes == 0 {
		return nil
	}

	recordings, err := s.Recordings()
	if err != nil {
		return err
	}
	used := s.calculateUsage(recordings).Used

	for _, rec := range recordings {
		if used <= s.maxBytes {
			break
		}
		path := filepath.Join(s.recordingsDir, rec.Name)
		if err := s.removeAll(path); err != nil {
			return fmt.Errorf("remove recording: %w", err)
		}
		used -= rec.Size
		s.logger.Info().Src("storage").Msgf("purged %v", rec.Name)
	}

	// Invalidate cache.
	s.cacheLock.Lock()
	s.lastUpdate = time.Time{}
	s.cacheLock.Unlock()
	return nil
}

// PurgeLoop runs Purge on an interval until context is canceled.
func (s *Manager) PurgeLoop(ctx context.Context, interval time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			if err := s.Purge(); err != nil {
				s.logger.Error().Src("storage").Msgf("could not purge storage: %v", err)
			}
		}
	}
}

const (
	kilobyte float64 = 1000
	megabyte         = kilobyte * 1000
	gigabyte         = megabyte * 1000
	terabyte         = gigabyte * 1000
)

// FormatSize formats bytes as MB, GB or TB.
func FormatSize(bytes int64) string {
	used := float64(bytes)
	switch {
	case used < 1000*megabyte:
		return fmt.Sprintf("%.0fMB", used/megabyte)
	case used < 10*gigabyte:
		return fmt.Sprintf("%.2fGB", used/gigabyte)
	case used < 100*gigabyte:
		return fmt.Sprintf("%.1fGB", used/gigabyte)
	case used < 1000*gigabyte:
		return fmt.Sprintf("%.0fGB", used/gigabyte)
	case used < 10*terabyte:
		return fmt.Sprintf("%.2fTB", used/terabyte)
	case used < 100*terabyte:
		return fmt.Sprintf("%.1fTB", used/terabyte)
	default:
		return fmt.Sprintf("%.0fTB", used/terabyte)
	}
}
