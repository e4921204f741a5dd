//go:build linux

package backend

import (
	"fmt"
	"path/filepath"
	"settle/internal/debouncer"
	"settle/internal/logger"
	"settle/internal/model"
	"settle/internal/pathutil"
	"sync"
	"time"

	"github.com/syncthing/notify"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const notifyMask = notify.InCreate | notify.InModify | notify.InAttrib |
	notify.InDelete | notify.InDeleteSelf | notify.InMovedFrom | notify.InMovedTo

// notifyBackend reads inotify through syncthing/notify, which exposes the
// move cookie that pairs IN_MOVED_FROM with IN_MOVED_TO.
type notifyBackend struct {
	bufferSize int
	eventCh    chan model.Event
	errCh      chan error
	doneCh     chan struct{}
	wg         sync.WaitGroup

	mu      sync.Mutex
	watches map[string]chan notify.EventInfo
	once    sync.Once
}

func newNotify(opts Options) (Backend, error) {
	return &notifyBackend{
		bufferSize: opts.BufferSize,
		eventCh:    make(chan model.Event, opts.BufferSize),
		errCh:      make(chan error, opts.BufferSize),
		doneCh:     make(chan struct{}),
		watches:    make(map[string]chan notify.EventInfo),
	}, nil
}

func (b *notifyBackend) Watch(path string, recursive bool) error {
	dir, err := pathutil.Canonical(path)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.watches[dir]; ok {
		return nil
	}

	target := dir
	if recursive {
		target = filepath.Join(dir, "...")
	}

	ch := make(chan notify.EventInfo, b.bufferSize)
	if err := notify.Watch(target, ch, notifyMask); err != nil {
		notify.Stop(ch)
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	b.watches[dir] = ch

	b.wg.Add(1)
	go b.loop(ch)

	logger.Log.Info("watcher started",
		zap.String("backend", string(KindNotify)),
		zap.String("dir", dir),
		zap.Bool("recursive", recursive))
	return nil
}

func (b *notifyBackend) Unwatch(path string) error {
	dir, err := pathutil.Canonical(path)
	if err != nil {
		return err
	}

	b.mu.Lock()
	ch, ok := b.watches[dir]
	delete(b.watches, dir)
	b.mu.Unlock()

	if ok {
		notify.Stop(ch)
	}
	return nil
}

func (b *notifyBackend) loop(ch chan notify.EventInfo) {
	defer b.wg.Done()

	for {
		// notify never blocks on a full channel; it drops
		if len(ch) == cap(ch) {
			logger.Log.Warn("inotify channel saturated, events lost")
			b.report(fmt.Errorf("%w: inotify channel saturated", debouncer.ErrEventsLost))
		}

		select {
		case <-b.doneCh:
			return
		case ei := <-ch:
			if ev, ok := fromEventInfo(ei, time.Now()); ok {
				b.send(ev)
			}
		}
	}
}

func fromEventInfo(ei notify.EventInfo, now time.Time) (model.Event, bool) {
	var tracker model.Tracker
	isDir := false
	if sys, ok := ei.Sys().(*unix.InotifyEvent); ok {
		tracker = model.Tracker(sys.Cookie)
		isDir = sys.Mask&unix.IN_ISDIR != 0
	}

	var kind model.EventKind
	switch e := ei.Event(); {
	case e&notify.InCreate != 0:
		kind = model.CreateFile
		if isDir {
			kind = model.CreateFolder
		}
	case e&notify.InMovedFrom != 0:
		kind = model.RenameFrom
	case e&notify.InMovedTo != 0:
		kind = model.RenameTo
	case e&(notify.InDelete|notify.InDeleteSelf) != 0:
		kind = model.RemoveFile
		if isDir {
			kind = model.RemoveFolder
		}
	case e&notify.InModify != 0:
		kind = model.ModifyDataContent
	case e&notify.InAttrib != 0:
		kind = model.ModifyMetadataAny
	default:
		return model.Event{}, false
	}

	ev := model.NewEvent(kind, now, ei.Path())
	if kind.IsRename() {
		ev.Tracker = tracker
	}
	return ev, true
}

func (b *notifyBackend) send(event model.Event) {
	select {
	case b.eventCh <- event:
	case <-b.doneCh:
	}
}

func (b *notifyBackend) report(err error) {
	select {
	case b.errCh <- err:
	default:
	}
}

func (b *notifyBackend) Events() <-chan model.Event {
	return b.eventCh
}

func (b *notifyBackend) Errors() <-chan error {
	return b.errCh
}

func (b *notifyBackend) Close() error {
	b.once.Do(func() {
		b.mu.Lock()
		for dir, ch := range b.watches {
			notify.Stop(ch)
			delete(b.watches, dir)
		}
		b.mu.Unlock()

		close(b.doneCh)
		b.wg.Wait()
		close(b.eventCh)
		close(b.errCh)
	})
	return nil
}
