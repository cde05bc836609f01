package server

import (
	"fmt"
	"os"
	"sync"
	"time"

	"watchtrail/internal/core"
	"watchtrail/internal/render"
)

// snapshot is one parsed version of the clustered file
type snapshot struct {
	records  []core.ClusteredRecord
	groups   []core.WatchGroup
	loadedAt time.Time
	modTime  time.Time
}

// dataset reloads the clustered file whenever its modification time changes,
// so a new cluster run shows up without restarting the server.
type dataset struct {
	path string

	mu   sync.RWMutex
	snap *snapshot
}

func newDataset(path string) *dataset {
	return &dataset{path: path}
}

func (d *dataset) current() (*snapshot, error) {
	info, err := os.Stat(d.path)
	if err != nil {
		return nil, fmt.Errorf("clustered file unavailable: %w", err)
	}

	d.mu.RLock()
	snap := d.snap
	d.mu.RUnlock()
	if snap != nil && snap.modTime.Equal(info.ModTime()) {
		return snap, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.snap != nil && d.snap.modTime.Equal(info.ModTime()) {
		return d.snap, nil
	}

	records, err := render.LoadClusteredFile(d.path)
	if err != nil {
		return nil, err
	}
	d.snap = &snapshot{
		records:  records,
		groups:   render.BuildGroups(records),
		loadedAt: time.Now(),
		modTime:  info.ModTime(),
	}
	return d.snap, nil
}
