// Package debouncer turns a raw stream of filesystem notifications into
// batches of settled, deduplicated events. Events are buffered per path
// until the path has been quiet for the configured timeout; renames are
// correlated into a single event and conflicting histories are merged.
package debouncer

import (
	"context"
	"errors"
	"fmt"
	"settle/internal/logger"
	"settle/internal/model"
	"settle/internal/pathutil"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrMalformedEvent      = errors.New("malformed event")
	ErrEventsLost          = errors.New("events lost")
	ErrInvalidTickInterval = errors.New("tick interval must not exceed the timeout")
	ErrStopped             = errors.New("debouncer stopped")
)

type Debouncer struct {
	mu      sync.Mutex
	store   *QueueStore
	renames *renameCorrelator
	cache   IdentityCache
	rescan  *model.Event
	errs    []error
	ongoing map[string]time.Time // last early surfacing per path

	timeout         time.Duration
	tickInterval    time.Duration
	ongoingInterval time.Duration
	drainOnStop     bool
	now             func() time.Time

	batches chan model.Batch
	errors  chan error

	stopped  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	serving  sync.WaitGroup
}

func New(opts ...Option) (*Debouncer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.timeout <= 0 {
		return nil, fmt.Errorf("invalid timeout %s", o.timeout)
	}
	if o.tickInterval > o.timeout {
		return nil, fmt.Errorf("%w: tick %s, timeout %s", ErrInvalidTickInterval, o.tickInterval, o.timeout)
	}
	if o.tickInterval <= 0 {
		o.tickInterval = o.timeout / 4
	}
	if o.ongoingInterval < 0 {
		o.ongoingInterval = 0
	}
	if o.bufferSize < 0 {
		o.bufferSize = 0
	}

	cache := o.cache
	if cache == nil {
		if o.fileIDCache {
			cache = NewPathCache()
		} else {
			cache = NoCache{}
		}
	}

	return &Debouncer{
		store:           NewQueueStore(),
		renames:         newRenameCorrelator(),
		cache:           cache,
		ongoing:         make(map[string]time.Time),
		timeout:         o.timeout,
		tickInterval:    o.tickInterval,
		ongoingInterval: o.ongoingInterval,
		drainOnStop:     o.drainOnStop,
		now:             o.now,
		batches:         make(chan model.Batch, o.bufferSize),
		errors:          make(chan error, o.bufferSize),
		stopCh:          make(chan struct{}),
	}, nil
}

func (d *Debouncer) Timeout() time.Duration {
	return d.timeout
}

func (d *Debouncer) TickInterval() time.Duration {
	return d.tickInterval
}

// Batches delivers one batch per tick that emitted anything. It is closed
// by Stop.
func (d *Debouncer) Batches() <-chan model.Batch {
	return d.batches
}

// Errors delivers backend and rescan errors. It is closed by Stop.
func (d *Debouncer) Errors() <-chan error {
	return d.errors
}

// Pending returns the number of paths with queued events.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.Len()
}

func (d *Debouncer) AddRoot(path string, recursive bool) error {
	canonical, err := pathutil.Canonical(path)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.cache.AddRoot(canonical, recursive); err != nil {
		return fmt.Errorf("failed to add root %s: %w", canonical, err)
	}
	return nil
}

func (d *Debouncer) RemoveRoot(path string) error {
	canonical, err := pathutil.Canonical(path)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.RemoveRoot(canonical)
	return nil
}

// Ingest accepts one raw event. RenameBoth takes the source and destination
// paths; every other kind takes one path. A zero ts is stamped with the
// current time.
func (d *Debouncer) Ingest(kind model.EventKind, paths []string, ts time.Time, tracker model.Tracker) error {
	ev := model.NewEvent(kind, ts, paths...)
	ev.Tracker = tracker
	return d.IngestEvent(ev)
}

// Rescan asks for the roots to be re-read and for consumers to be told that
// their view may be stale.
func (d *Debouncer) Rescan(ts time.Time) error {
	ev := model.NewEvent(model.Other, ts)
	ev.Flags |= model.FlagRescan
	return d.IngestEvent(ev)
}

func (d *Debouncer) IngestEvent(ev model.Event) error {
	ev, err := d.normalize(ev)
	if err != nil {
		metricMalformed.Inc()
		logger.Log.Warn("dropping malformed event", zap.Stringer("event", ev), zap.Error(err))
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrStopped
	}

	metricEventsIngested.WithLabelValues(ev.Kind.String()).Inc()
	d.add(ev)
	return nil
}

func (d *Debouncer) normalize(ev model.Event) (model.Event, error) {
	if !ev.Kind.Valid() {
		return ev, fmt.Errorf("%w: unknown kind %d", ErrMalformedEvent, ev.Kind)
	}

	want := 1
	switch ev.Kind {
	case model.RenameBoth:
		want = 2
	case model.Other:
		want = -1
	}
	if want > 0 && len(ev.Paths) != want {
		return ev, fmt.Errorf("%w: %s needs %d path(s), got %d", ErrMalformedEvent, ev.Kind, want, len(ev.Paths))
	}

	ev = ev.Clone()
	for i, p := range ev.Paths {
		canonical, err := pathutil.Canonical(p)
		if err != nil {
			return ev, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
		}
		ev.Paths[i] = canonical
	}

	if ev.Time.IsZero() {
		ev.Time = d.now()
	}
	return ev, nil
}

// ReportError forwards a backend error to the consumer. Errors wrapping
// ErrEventsLost also trigger a rescan.
func (d *Debouncer) ReportError(err error) {
	if err == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.errs = append(d.errs, err)
	if errors.Is(err, ErrEventsLost) {
		ev := model.NewEvent(model.Other, d.now())
		ev.Flags |= model.FlagRescan
		d.handleRescan(ev)
	}
}

func (d *Debouncer) add(ev model.Event) {
	path := ev.Path()
	if ev.Kind != model.ModifyDataContent {
		delete(d.ongoing, path)
	}

	switch {
	case ev.Kind == model.Other:
		if ev.NeedRescan() {
			d.handleRescan(ev)
			return
		}
		metricEventsSuppressed.WithLabelValues(reasonIgnoredOther).Inc()
	case ev.Kind.IsCreate():
		d.cache.AddPath(path)
		d.enqueue(path, ev)
	case ev.Kind.IsModify():
		if _, ok := d.cache.Lookup(path); !ok {
			d.cache.AddPath(path)
		}
		d.enqueue(path, ev)
	case ev.Kind.IsRemove():
		d.handleRemove(ev)
	case ev.Kind == model.RenameFrom:
		d.handleRenameFrom(ev)
	case ev.Kind == model.RenameTo:
		d.handleRenameTo(ev)
	case ev.Kind == model.RenameBoth:
		d.handleRenameBoth(ev)
	}
}

func (d *Debouncer) enqueue(path string, ev model.Event) {
	if d.store.Enqueue(path, ev) {
		return
	}
	if ev.Kind.IsCreate() {
		metricEventsSuppressed.WithLabelValues(reasonDuplicateCreate).Inc()
	} else {
		metricEventsSuppressed.WithLabelValues(reasonPendingCreate).Inc()
	}
}

func (d *Debouncer) handleRemove(ev model.Event) {
	path := ev.Path()

	d.store.DeleteBelow(path)
	d.cache.Remove(path)
	for p := range d.ongoing {
		if pathutil.IsWithin(p, path) {
			delete(d.ongoing, p)
		}
	}

	q := d.store.Get(path)
	switch {
	case q != nil && q.creationPending():
		d.store.Delete(path)
		metricEventsSuppressed.WithLabelValues(reasonCreateRemoved).Inc()
	case q != nil:
		d.store.Replace(path, ev.Time, ev)
	default:
		d.store.Push(path, ev)
	}
}

func (d *Debouncer) handleRenameFrom(ev model.Event) {
	path := ev.Path()

	s := &stagedRename{source: path, time: ev.Time, tracker: ev.Tracker}
	s.id, s.hasID = d.cache.Lookup(path)
	d.renames.stage(s)

	d.cache.Remove(path)
	d.store.Push(path, ev)
}

func (d *Debouncer) handleRenameTo(ev model.Event) {
	path := ev.Path()

	d.cache.AddPath(path)
	id, hasID := d.cache.Lookup(path)

	s, method := d.renames.match(ev.Tracker, id, hasID)
	metricRenames.WithLabelValues(method).Inc()
	if s == nil {
		logger.Log.Debug("rename destination without source", zap.String("path", path))
		d.enqueue(path, ev)
		return
	}

	logger.Log.Debug("rename correlated",
		zap.String("from", s.source), zap.String("to", path), zap.String("method", method))
	d.resolveRename(s, ev)
}

// handleRenameBoth accepts a rename the backend already paired.
func (d *Debouncer) handleRenameBoth(ev model.Event) {
	from, to := ev.Paths[0], ev.Paths[1]

	fromEv := model.NewEvent(model.RenameFrom, ev.Time, from)
	fromEv.Tracker = ev.Tracker
	d.handleRenameFrom(fromEv)

	s := d.renames.bySource[from]
	d.cache.AddPath(to)

	toEv := model.NewEvent(model.RenameTo, ev.Time, to)
	toEv.Tracker = ev.Tracker
	metricRenames.WithLabelValues(matchTracker).Inc()
	d.resolveRename(s, toEv)
}

// resolveRename merges the history of the staged source into the queue of
// the RenameTo's path.
func (d *Debouncer) resolveRename(s *stagedRename, to model.Event) {
	source, target := s.source, to.Path()
	d.renames.remove(s)
	delete(d.ongoing, source)
	delete(d.ongoing, target)

	// the source queue leaves the store before the target is looked at, so
	// a rename onto its own path still resolves
	events := d.store.Events(source)
	d.store.Delete(source)

	// events after the staged RenameFrom belong to whatever appeared at
	// source since and stay there
	var after []model.Event
	if i := stagedIndex(events, s); i >= 0 {
		events, after = events[:i:i], events[i+1:]
	}

	origin, originTime := source, s.time
	for i, e := range events {
		if e.Kind == model.RenameBoth && len(e.Paths) == 2 && e.Paths[1] == source {
			origin, originTime = e.Paths[0], e.Time
			events = append(events[:i:i], events[i+1:]...)
			break
		}
	}

	// a remove ahead of the move belongs to whatever was at source before
	var leading *model.Event
	if len(events) > 0 && (events[0].Kind.IsRemove() || events[0].Kind == model.RenameFrom) {
		leading = &events[0]
		events = events[1:]
	}
	created := len(events) > 0 && (events[0].Kind.IsCreate() || events[0].Kind == model.RenameTo)

	var head, prior []model.Event
	if q := d.store.Get(target); q != nil && !q.wasCreated() {
		rm := model.NewEvent(model.RemoveAny, originTime, target)
		if !q.wasRemoved() {
			rm.Info = model.InfoOverride
			prior = d.store.Events(target)
		}
		head = append(head, rm)
	}
	if !created {
		both := model.NewEvent(model.RenameBoth, originTime, origin, target)
		both.Tracker = to.Tracker
		if both.Tracker == 0 {
			both.Tracker = s.tracker
		}
		head = append(head, both)
	}
	head = append(head, prior...)

	if source == target {
		var all []model.Event
		if leading != nil {
			all = append(all, *leading)
		}
		all = append(all, head...)
		all = append(all, events...)
		all = append(all, after...)
		d.store.Replace(target, to.Time, all...)
		return
	}

	d.store.Replace(target, to.Time, head...)
	d.store.Replace(source, to.Time, events...)
	d.store.SpliceInto(target, source)
	if q := d.store.Get(target); q != nil {
		q.touch(to.Time, to.Kind)
	}

	if leading != nil {
		d.store.Push(source, *leading)
	}
	for _, e := range after {
		d.store.Push(source, e)
	}
}

// stagedIndex returns the position of the RenameFrom that staged s, or -1.
func stagedIndex(events []model.Event, s *stagedRename) int {
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if e.Kind == model.RenameFrom && e.Tracker == s.tracker && e.Time.Equal(s.time) {
			return i
		}
	}
	return -1
}

func (d *Debouncer) handleRescan(ev model.Event) {
	metricRescans.Inc()

	added, err := d.cache.Rescan()
	if err != nil {
		logger.Log.Warn("rescan incomplete", zap.Error(err))
		d.errs = append(d.errs, err)
	}
	logger.Log.Debug("rescan requested", zap.Int("new_paths", len(added)))

	d.renames.reset()
	for _, p := range added {
		d.enqueue(p, model.NewEvent(model.CreateAny, ev.Time, p))
	}

	d.rescan = &ev
}

// Tick runs one scheduler pass at now and returns what it emitted. Serve
// calls it periodically; it may also be driven by hand.
func (d *Debouncer) Tick(now time.Time) (model.Batch, []error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flush(now, false)
}

// Serve runs the scheduler until ctx is done or Stop is called.
func (d *Debouncer) Serve(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.serving.Add(1)
	d.mu.Unlock()
	defer d.serving.Done()

	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()

	logger.Log.Debug("debouncer started",
		zap.Duration("timeout", d.timeout), zap.Duration("tick", d.tickInterval))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.stopCh:
			return nil
		case <-ticker.C:
			batch, errs := d.Tick(d.now())
			if !d.publish(ctx, batch, errs) {
				return nil
			}
		}
	}
}

// publish hands results to the consumer without holding the lock. It
// reports false once the debouncer is shutting down.
func (d *Debouncer) publish(ctx context.Context, batch model.Batch, errs []error) bool {
	if len(batch.Events) > 0 {
		select {
		case d.batches <- batch:
		case <-ctx.Done():
			return false
		case <-d.stopCh:
			return false
		}
	}

	for _, err := range errs {
		select {
		case d.errors <- err:
		case <-ctx.Done():
			return false
		case <-d.stopCh:
			return false
		}
	}
	return true
}

// Stop ends Serve, optionally drains every pending event, and closes the
// output channels. It is safe to call more than once.
func (d *Debouncer) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()

		close(d.stopCh)
		d.serving.Wait()

		if d.drainOnStop {
			d.mu.Lock()
			batch, errs := d.flush(d.now(), true)
			d.mu.Unlock()

			if len(batch.Events) > 0 {
				select {
				case d.batches <- batch:
				default:
					logger.Log.Warn("dropping final batch, consumer is not keeping up",
						zap.Int("events", len(batch.Events)))
				}
			}
			for _, err := range errs {
				select {
				case d.errors <- err:
				default:
				}
			}
		}

		close(d.batches)
		close(d.errors)
	})
}

func (d *Debouncer) String() string {
	return fmt.Sprintf("debouncer@%p", d)
}
