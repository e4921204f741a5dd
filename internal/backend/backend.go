// Package backend adapts native watch facilities to the event vocabulary of
// the debouncer. The set of backends is closed and picked once at startup.
package backend

import (
	"errors"
	"fmt"
	"settle/internal/model"
	"time"
)

var (
	ErrUnknownBackend = errors.New("unknown backend")
	ErrUnsupported    = errors.New("backend not supported on this platform")
)

type Kind string

const (
	KindFsnotify Kind = "fsnotify"
	KindNotify   Kind = "notify"
	KindPoll     Kind = "poll"
)

func Kinds() []Kind {
	return []Kind{KindFsnotify, KindNotify, KindPoll}
}

// Backend delivers classified, timestamped events for the paths it
// watches. Lost events are reported on Errors wrapped in
// debouncer.ErrEventsLost.
type Backend interface {
	Watch(path string, recursive bool) error
	Unwatch(path string) error
	Events() <-chan model.Event
	Errors() <-chan error
	Close() error
}

type Options struct {
	BufferSize      int
	PollInterval    time.Duration
	CompareContents bool
}

func DefaultOptions() Options {
	return Options{
		BufferSize:   1024,
		PollInterval: 2 * time.Second,
	}
}

func New(kind Kind, opts Options) (Backend, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions().BufferSize
	}

	switch kind {
	case KindFsnotify, "":
		b, err := newFsnotify(opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	case KindNotify:
		return newNotify(opts)
	case KindPoll:
		if opts.PollInterval <= 0 {
			opts.PollInterval = DefaultOptions().PollInterval
		}
		return newPoll(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
}
