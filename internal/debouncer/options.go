package debouncer

import (
	"time"
)

const (
	DefaultTimeout    = 500 * time.Millisecond
	DefaultBufferSize = 1024
)

type options struct {
	timeout         time.Duration
	tickInterval    time.Duration
	ongoingInterval time.Duration
	fileIDCache     bool
	cache           IdentityCache
	drainOnStop     bool
	bufferSize      int
	now             func() time.Time
}

func defaultOptions() options {
	return options{
		timeout:         DefaultTimeout,
		ongoingInterval: DefaultTimeout,
		fileIDCache:     true,
		bufferSize:      DefaultBufferSize,
		now:             time.Now,
	}
}

type Option func(*options)

// WithTimeout sets how long a path has to stay quiet before its events are
// emitted. The ongoing-write interval follows it unless set explicitly.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if o.ongoingInterval == o.timeout {
			o.ongoingInterval = d
		}
		o.timeout = d
	}
}

// WithTickInterval sets the scheduler period. Zero means a quarter of the
// timeout.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) {
		o.tickInterval = d
	}
}

// WithOngoingInterval sets how often a path under continuous writes has its
// expired events surfaced early. Zero disables early surfacing.
func WithOngoingInterval(d time.Duration) Option {
	return func(o *options) {
		o.ongoingInterval = d
	}
}

func WithFileIDCache(enabled bool) Option {
	return func(o *options) {
		o.fileIDCache = enabled
	}
}

// WithCache replaces the identity cache. It takes precedence over
// WithFileIDCache.
func WithCache(c IdentityCache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithDrainOnStop makes Stop emit every pending event before closing.
func WithDrainOnStop() Option {
	return func(o *options) {
		o.drainOnStop = true
	}
}

func WithBufferSize(n int) Option {
	return func(o *options) {
		o.bufferSize = n
	}
}

// WithClock replaces the time source used by Serve, Stop and for events
// ingested without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
