package backend

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"settle/internal/debouncer"
	"settle/internal/logger"
	"settle/internal/model"
	"settle/internal/pathutil"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// a Create this close behind a Rename is taken to be its other half
const renamePairWindow = 50 * time.Millisecond

type fsnotifyBackend struct {
	fw      *fsnotify.Watcher
	eventCh chan model.Event
	errCh   chan error
	doneCh  chan struct{}
	wg      sync.WaitGroup

	mu    sync.Mutex
	roots map[string]bool
	once  sync.Once
}

func newFsnotify(opts Options) (*fsnotifyBackend, error) {
	fw, err := fsnotify.NewBufferedWatcher(uint(opts.BufferSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	b := &fsnotifyBackend{
		fw:      fw,
		eventCh: make(chan model.Event, opts.BufferSize),
		errCh:   make(chan error, opts.BufferSize),
		doneCh:  make(chan struct{}),
		roots:   make(map[string]bool),
	}

	b.wg.Add(1)
	go b.run()

	return b, nil
}

func (b *fsnotifyBackend) Watch(path string, recursive bool) error {
	dir, err := pathutil.Canonical(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("watch root not found: %w", err)
	}

	if recursive {
		err = b.addRecursive(dir)
	} else {
		err = b.fw.Add(dir)
	}
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	b.mu.Lock()
	b.roots[dir] = recursive
	b.mu.Unlock()

	logger.Log.Info("watcher started",
		zap.String("backend", string(KindFsnotify)),
		zap.String("dir", dir),
		zap.Bool("recursive", recursive))
	return nil
}

func (b *fsnotifyBackend) Unwatch(path string) error {
	dir, err := pathutil.Canonical(path)
	if err != nil {
		return err
	}

	b.mu.Lock()
	delete(b.roots, dir)
	b.mu.Unlock()

	for _, w := range b.fw.WatchList() {
		if pathutil.IsWithin(w, dir) {
			_ = b.fw.Remove(w)
		}
	}
	return nil
}

func (b *fsnotifyBackend) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if err := b.fw.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			logger.Log.Debug("watching directory",
				zap.String("path", path))
		}

		return nil
	})
}

func (b *fsnotifyBackend) recursiveFor(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for root, recursive := range b.roots {
		if recursive && pathutil.IsWithin(path, root) {
			return true
		}
	}
	return false
}

func (b *fsnotifyBackend) run() {
	defer b.wg.Done()
	defer close(b.eventCh)
	defer close(b.errCh)

	var lastRename time.Time

	for {
		select {
		case <-b.doneCh:
			logger.Log.Info("watcher stopping")
			return

		case fsEvent, ok := <-b.fw.Events:
			if !ok {
				return
			}

			now := time.Now()
			kind := toEventKind(fsEvent.Op, fsEvent.Name)
			if kind == model.KindUnknown {
				continue
			}

			if kind.IsCreate() {
				if !lastRename.IsZero() && now.Sub(lastRename) < renamePairWindow {
					kind = model.RenameTo
				}
				if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() && b.recursiveFor(fsEvent.Name) {
					if err := b.addRecursive(fsEvent.Name); err != nil {
						logger.Log.Warn("failed to watch new directory",
							zap.String("path", fsEvent.Name),
							zap.Error(err))
					} else {
						logger.Log.Debug("added new directory to watch",
							zap.String("path", fsEvent.Name))
					}
				}
			}

			lastRename = time.Time{}
			if kind == model.RenameFrom {
				lastRename = now
			}

			b.send(model.NewEvent(kind, now, fsEvent.Name))

		case err, ok := <-b.fw.Errors:
			if !ok {
				return
			}

			if errors.Is(err, fsnotify.ErrEventOverflow) {
				err = fmt.Errorf("%w: %w", debouncer.ErrEventsLost, err)
			}
			logger.Log.Error("watcher error",
				zap.Error(err))
			b.report(err)
		}
	}
}

func (b *fsnotifyBackend) send(event model.Event) {
	select {
	case b.eventCh <- event:
	default:
		logger.Log.Warn("event channel is full, dropping event",
			zap.String("path", event.Path()))
		b.report(fmt.Errorf("%w: event channel full", debouncer.ErrEventsLost))
	}
}

func (b *fsnotifyBackend) report(err error) {
	select {
	case b.errCh <- err:
	default:
	}
}

func (b *fsnotifyBackend) Events() <-chan model.Event {
	return b.eventCh
}

func (b *fsnotifyBackend) Errors() <-chan error {
	return b.errCh
}

func (b *fsnotifyBackend) Close() error {
	var err error
	b.once.Do(func() {
		close(b.doneCh)
		err = b.fw.Close()
		b.wg.Wait()
	})
	return err
}

// toEventKind maps an fsnotify op to the most specific kind it implies.
// Create is refined by looking at what is on disk now.
func toEventKind(op fsnotify.Op, path string) model.EventKind {
	switch {
	case op.Has(fsnotify.Create):
		info, err := os.Lstat(path)
		switch {
		case err != nil:
			return model.CreateAny
		case info.IsDir():
			return model.CreateFolder
		default:
			return model.CreateFile
		}
	case op.Has(fsnotify.Write):
		return model.ModifyDataContent
	case op.Has(fsnotify.Remove):
		return model.RemoveAny
	case op.Has(fsnotify.Rename):
		return model.RenameFrom
	case op.Has(fsnotify.Chmod):
		return model.ModifyMetadataAny
	default:
		return model.KindUnknown
	}
}
