package backend

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"settle/internal/fileid"
	"settle/internal/logger"
	"settle/internal/model"
	"settle/internal/pathutil"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

type entry struct {
	id      fileid.ID
	hasID   bool
	isDir   bool
	size    int64
	mode    fs.FileMode
	modTime time.Time
	sum     []byte
}

func (e entry) equal(o entry) bool {
	return e.id == o.id && e.hasID == o.hasID && e.isDir == o.isDir &&
		e.size == o.size && e.mode == o.mode && e.modTime.Equal(o.modTime) &&
		bytes.Equal(e.sum, o.sum)
}

type snapshot map[string]entry

type pollRoot struct {
	recursive bool
	snap      snapshot
}

// pollBackend diffs periodic snapshots of every root. It is the fallback
// for filesystems without change notification.
type pollBackend struct {
	interval time.Duration
	compare  bool
	eventCh  chan model.Event
	errCh    chan error
	doneCh   chan struct{}
	wg       sync.WaitGroup

	mu    sync.Mutex
	roots map[string]*pollRoot
	once  sync.Once
}

func newPoll(opts Options) *pollBackend {
	b := &pollBackend{
		interval: opts.PollInterval,
		compare:  opts.CompareContents,
		eventCh:  make(chan model.Event, opts.BufferSize),
		errCh:    make(chan error, opts.BufferSize),
		doneCh:   make(chan struct{}),
		roots:    make(map[string]*pollRoot),
	}

	b.wg.Add(1)
	go b.run()

	return b
}

func (b *pollBackend) Watch(path string, recursive bool) error {
	dir, err := pathutil.Canonical(path)
	if err != nil {
		return err
	}

	snap, err := b.scan(dir, recursive, nil)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	b.mu.Lock()
	b.roots[dir] = &pollRoot{recursive: recursive, snap: snap}
	b.mu.Unlock()

	logger.Log.Info("watcher started",
		zap.String("backend", string(KindPoll)),
		zap.String("dir", dir),
		zap.Bool("recursive", recursive),
		zap.Int("entries", len(snap)))
	return nil
}

func (b *pollBackend) Unwatch(path string) error {
	dir, err := pathutil.Canonical(path)
	if err != nil {
		return err
	}

	b.mu.Lock()
	delete(b.roots, dir)
	b.mu.Unlock()
	return nil
}

func (b *pollBackend) run() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.doneCh:
			return
		case <-ticker.C:
			for _, event := range b.poll() {
				select {
				case b.eventCh <- event:
				case <-b.doneCh:
					return
				}
			}
		}
	}
}

// poll rescans every root and returns the changes since the previous pass.
func (b *pollBackend) poll() []model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	var events []model.Event
	for dir, root := range b.roots {
		snap, err := b.scan(dir, root.recursive, root.snap)
		if err != nil {
			logger.Log.Warn("poll failed",
				zap.String("dir", dir),
				zap.Error(err))
			select {
			case b.errCh <- fmt.Errorf("poll of %s failed: %w", dir, err):
			default:
			}
			continue
		}

		events = append(events, diff(root.snap, snap, b.compare, now)...)
		root.snap = snap
	}
	return events
}

// scan walks dir. Checksums of unchanged files are carried over from prev.
func (b *pollBackend) scan(dir string, recursive bool, prev snapshot) (snapshot, error) {
	snap := make(snapshot)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		e := entry{
			isDir:   d.IsDir(),
			size:    info.Size(),
			mode:    info.Mode(),
			modTime: info.ModTime(),
		}
		if id, err := fileid.Get(path); err == nil {
			e.id, e.hasID = id, true
		}
		if b.compare && !e.isDir {
			if old, ok := prev[path]; ok && old.size == e.size && old.modTime.Equal(e.modTime) {
				e.sum = old.sum
			} else if sum, err := checksum(path); err == nil {
				e.sum = sum
			} else {
				logger.Log.Debug("checksum failed, skipping",
					zap.String("path", path),
					zap.Error(err))
			}
		}
		snap[path] = e

		if path != dir && d.IsDir() && !recursive {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// diff lists what changed between two snapshots of one root. A path that
// vanished while its identity showed up elsewhere is reported as a rename.
func diff(old, cur snapshot, compare bool, now time.Time) []model.Event {
	var removed, added []string
	for path := range old {
		if _, ok := cur[path]; !ok {
			removed = append(removed, path)
		}
	}
	for path := range cur {
		if _, ok := old[path]; !ok {
			added = append(added, path)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)

	addedByID := make(map[fileid.ID]string)
	for _, path := range added {
		if e := cur[path]; e.hasID {
			addedByID[e.id] = path
		}
	}

	var events []model.Event
	moved := make(map[string]bool)
	var gone []string
	for _, path := range removed {
		e := old[path]
		if to, ok := addedByID[e.id]; ok && e.hasID && !moved[to] {
			moved[to] = true
			events = append(events,
				model.NewEvent(model.RenameFrom, now, path),
				model.NewEvent(model.RenameTo, now, to))
			continue
		}
		gone = append(gone, path)
	}

	for _, path := range added {
		if moved[path] {
			continue
		}
		kind := model.CreateFile
		if cur[path].isDir {
			kind = model.CreateFolder
		}
		events = append(events, model.NewEvent(kind, now, path))
	}

	var changed []string
	for path, c := range cur {
		if o, ok := old[path]; ok && !o.equal(c) {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	for _, path := range changed {
		if kind, ok := modification(old[path], cur[path], compare); ok {
			events = append(events, model.NewEvent(kind, now, path))
		}
	}

	// children before parents
	for i := len(gone) - 1; i >= 0; i-- {
		kind := model.RemoveFile
		if old[gone[i]].isDir {
			kind = model.RemoveFolder
		}
		events = append(events, model.NewEvent(kind, now, gone[i]))
	}
	return events
}

func modification(o, c entry, compare bool) (model.EventKind, bool) {
	if o.mode != c.mode {
		return model.ModifyMetadataPermissions, true
	}
	if c.isDir {
		return model.KindUnknown, false
	}
	if o.size != c.size {
		return model.ModifyDataContent, true
	}
	if !o.modTime.Equal(c.modTime) {
		if compare && o.sum != nil && bytes.Equal(o.sum, c.sum) {
			return model.ModifyMetadataWriteTime, true
		}
		return model.ModifyDataContent, true
	}
	return model.KindUnknown, false
}

func checksum(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

func (b *pollBackend) Events() <-chan model.Event {
	return b.eventCh
}

func (b *pollBackend) Errors() <-chan error {
	return b.errCh
}

func (b *pollBackend) Close() error {
	b.once.Do(func() {
		close(b.doneCh)
		b.wg.Wait()
		close(b.eventCh)
		close(b.errCh)
	})
	return nil
}
