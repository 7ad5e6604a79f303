package zonestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Protryon/adns/internal/dns/common/log"
	"github.com/Protryon/adns/internal/dns/domain"
)

// watchSettle coalesces bursts of filesystem events (editors write several
// times) into one reload.
const watchSettle = 250 * time.Millisecond

// File serves zones from a YAML zone file, reloading when the file changes
// on disk. With writable set it also persists dynamic updates back to the
// file, atomically via a rename.
type File struct {
	name     string
	path     string
	writable bool
	log      log.Logger
}

// NewFile builds a file provider. writable selects between a read-only
// zonefile and one that accepts dynamic updates.
func NewFile(name, path string, writable bool, logger log.Logger) *File {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &File{name: name, path: path, writable: writable, log: logger}
}

var _ Provider = (*File)(nil)

func (f *File) Name() string { return f.name }

func (f *File) Load(context.Context) ([]*domain.Zone, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("zone file %s: %w", f.path, err)
	}
	return ParseZones(data)
}

func (f *File) Persist(_ context.Context, zones []*domain.Zone) error {
	if !f.writable {
		return domain.ErrReadOnlyZone
	}
	data, err := RenderZones(zones)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".zones-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// Watch signals whenever the zone file is rewritten. The parent directory
// is watched because renames replace the inode.
func (f *File) Watch(ctx context.Context, changed chan<- string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return err
	}
	var settle *time.Timer
	var settleC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(f.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if settle == nil {
				settle = time.NewTimer(watchSettle)
				settleC = settle.C
			} else {
				settle.Reset(watchSettle)
			}
		case <-settleC:
			settle = nil
			settleC = nil
			select {
			case changed <- f.name:
			case <-ctx.Done():
				return ctx.Err()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.log.Warn(map[string]any{"path": f.path, "error": err.Error()}, "zone file watcher error")
		}
	}
}
