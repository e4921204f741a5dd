package debouncer

import (
	"settle/internal/model"
	"settle/internal/pathutil"
	"slices"
	"sort"
	"time"
)

// PathQueue holds the not yet emitted events of one canonical path in
// arrival order. Splicing may interleave timestamps; the order is never
// re-sorted.
type PathQueue struct {
	Owner        string
	Events       []model.Event
	LastActivity time.Time

	// kind of the latest event seen for the path, including suppressed ones
	lastKind model.EventKind
}

func (q *PathQueue) first() (model.Event, bool) {
	if len(q.Events) == 0 {
		return model.Event{}, false
	}
	return q.Events[0], true
}

func (q *PathQueue) last() (model.Event, bool) {
	if len(q.Events) == 0 {
		return model.Event{}, false
	}
	return q.Events[len(q.Events)-1], true
}

func (q *PathQueue) wasCreated() bool {
	e, ok := q.first()
	return ok && (e.Kind.IsCreate() || e.Kind == model.RenameTo)
}

func (q *PathQueue) wasRemoved() bool {
	e, ok := q.first()
	return ok && (e.Kind.IsRemove() || e.Kind == model.RenameFrom)
}

// creationPending reports whether the path came into existence inside the
// current window and has not been removed or moved away since.
func (q *PathQueue) creationPending() bool {
	if !q.wasCreated() {
		return false
	}
	for _, e := range q.Events[1:] {
		if e.Kind.IsRemove() || e.Kind == model.RenameFrom {
			return false
		}
	}
	return true
}

func (q *PathQueue) touch(at time.Time, kind model.EventKind) {
	if at.After(q.LastActivity) {
		q.LastActivity = at
	}
	q.lastKind = kind
}

// QueueStore owns one PathQueue per canonical path. It is not safe for
// concurrent use; the Debouncer serialises access.
type QueueStore struct {
	queues map[string]*PathQueue
}

func NewQueueStore() *QueueStore {
	return &QueueStore{
		queues: make(map[string]*PathQueue),
	}
}

func (s *QueueStore) Len() int {
	return len(s.queues)
}

func (s *QueueStore) Get(path string) *PathQueue {
	return s.queues[path]
}

// Events returns a copy of the events queued for path.
func (s *QueueStore) Events(path string) []model.Event {
	q, ok := s.queues[path]
	if !ok {
		return nil
	}
	return slices.Clone(q.Events)
}

func (s *QueueStore) Paths() []string {
	paths := make([]string, 0, len(s.queues))
	for p := range s.queues {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (s *QueueStore) queue(path string) *PathQueue {
	q, ok := s.queues[path]
	if !ok {
		q = &PathQueue{Owner: path}
		s.queues[path] = q
	}
	return q
}

// Enqueue appends ev to the queue of path after applying the insertion
// merge rules. A second creation, or a modification of a path whose
// creation is still pending, is dropped. The path's activity time is
// updated either way. It reports whether ev was queued.
func (s *QueueStore) Enqueue(path string, ev model.Event) bool {
	q := s.queue(path)
	q.touch(ev.Time, ev.Kind)

	if ev.Kind.IsCreate() || ev.Kind.IsModify() {
		if tail, ok := q.last(); ok && tail.Kind.IsCreate() || q.creationPending() {
			if len(q.Events) == 0 {
				delete(s.queues, path)
			}
			return false
		}
	}

	q.Events = append(q.Events, ev)
	return true
}

// Push appends ev without applying merge rules.
func (s *QueueStore) Push(path string, ev model.Event) {
	q := s.queue(path)
	q.touch(ev.Time, ev.Kind)
	q.Events = append(q.Events, ev)
}

// Replace discards the history of path and queues events in its place.
// Replacing with no events removes the queue.
func (s *QueueStore) Replace(path string, at time.Time, events ...model.Event) {
	if len(events) == 0 {
		delete(s.queues, path)
		return
	}

	q := s.queue(path)
	q.Events = append([]model.Event(nil), events...)
	q.touch(at, events[len(events)-1].Kind)
}

func (s *QueueStore) Delete(path string) {
	delete(s.queues, path)
}

// DeleteBelow removes the queues of every path strictly below path.
func (s *QueueStore) DeleteBelow(path string) {
	for p := range s.queues {
		if p != path && pathutil.IsWithin(p, path) {
			delete(s.queues, p)
		}
	}
}

// SpliceInto moves every event of source onto the end of target, keeping
// both sides' order, and deletes source. Relocated events are attributed
// to target.
func (s *QueueStore) SpliceInto(target, source string) {
	src, ok := s.queues[source]
	if !ok {
		return
	}
	delete(s.queues, source)

	if len(src.Events) == 0 {
		return
	}

	dst := s.queue(target)
	for _, e := range src.Events {
		e = e.Clone()
		e.Paths = []string{target}
		dst.Events = append(dst.Events, e)
	}
	if src.LastActivity.After(dst.LastActivity) {
		dst.LastActivity = src.LastActivity
	}
	dst.lastKind = src.lastKind
}

// TakeExpired removes and returns every queue that has been quiet for at
// least timeout.
func (s *QueueStore) TakeExpired(now time.Time, timeout time.Duration) []*PathQueue {
	var expired []*PathQueue
	for path, q := range s.queues {
		if !now.Before(q.LastActivity.Add(timeout)) {
			expired = append(expired, q)
			delete(s.queues, path)
		}
	}
	return expired
}

// TakeAll removes and returns every queue regardless of expiry.
func (s *QueueStore) TakeAll() []*PathQueue {
	all := make([]*PathQueue, 0, len(s.queues))
	for _, q := range s.queues {
		all = append(all, q)
	}
	s.queues = make(map[string]*PathQueue)
	return all
}

// TakePrefix pops the leading events of path stamped at or before cutoff.
func (s *QueueStore) TakePrefix(path string, cutoff time.Time) []model.Event {
	q, ok := s.queues[path]
	if !ok {
		return nil
	}

	n := 0
	for n < len(q.Events) && !q.Events[n].Time.After(cutoff) {
		n++
	}
	if n == 0 {
		return nil
	}

	prefix := q.Events[:n:n]
	q.Events = q.Events[n:]
	if len(q.Events) == 0 {
		delete(s.queues, path)
	}
	return prefix
}
