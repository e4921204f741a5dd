package debouncer

import (
	"settle/internal/model"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
)

// flush takes every eligible queue, or all of them when forced or after a
// rescan, and assembles the batch. Caller holds d.mu.
func (d *Debouncer) flush(now time.Time, force bool) (model.Batch, []error) {
	rescan := d.rescan
	d.rescan = nil

	var queues []*PathQueue
	if force || rescan != nil {
		queues = d.store.TakeAll()
	} else {
		queues = d.store.TakeExpired(now, d.timeout)
		queues = append(queues, d.takeOngoing(now)...)
	}
	sortQueues(queues)

	events := make([]model.Event, 0)
	for _, q := range queues {
		for _, e := range coalesce(q.Events) {
			if e.Kind == model.RenameFrom {
				d.renames.discard(e.Path())
			}
			events = append(events, e)
		}
	}
	if rescan != nil {
		events = append(events, *rescan)
	}

	d.renames.expire(now.Add(-d.timeout))
	for path, at := range d.ongoing {
		if d.store.Get(path) == nil && now.Sub(at) >= d.ongoingInterval {
			delete(d.ongoing, path)
		}
	}

	errs := d.errs
	d.errs = nil

	metricPendingPaths.Set(float64(d.store.Len()))
	batch := model.Batch{EmittedAt: now, Events: events}
	if len(events) > 0 {
		batch.ID = uuid.New()
		metricBatches.Inc()
		metricEventsEmitted.Add(float64(len(events)))
	}
	return batch, errs
}

// takeOngoing surfaces the expired head of queues that are kept alive by a
// continuous stream of content writes.
func (d *Debouncer) takeOngoing(now time.Time) []*PathQueue {
	if d.ongoingInterval <= 0 {
		return nil
	}

	cutoff := now.Add(-d.timeout)
	var surfaced []*PathQueue
	for _, path := range d.store.Paths() {
		q := d.store.Get(path)
		if q.lastKind != model.ModifyDataContent {
			continue
		}
		if first, ok := q.first(); !ok || first.Time.After(cutoff) {
			continue
		}
		if at, ok := d.ongoing[path]; ok && now.Sub(at) < d.ongoingInterval {
			continue
		}

		prefix := d.store.TakePrefix(path, cutoff)
		for i := range prefix {
			prefix[i].Flags |= model.FlagOngoing
		}
		d.ongoing[path] = now
		surfaced = append(surfaced, &PathQueue{Owner: path, Events: prefix})
	}
	return surfaced
}

// sortQueues orders queues by their first event, ties by path. Events of
// one queue stay together and in order.
func sortQueues(queues []*PathQueue) {
	sort.SliceStable(queues, func(i, j int) bool {
		a, b := queues[i].Events[0].Time, queues[j].Events[0].Time
		if !a.Equal(b) {
			return a.Before(b)
		}
		return queues[i].Owner < queues[j].Owner
	})
}

// coalesce collapses repeated modifications of the same kind to their
// latest occurrence.
func coalesce(events []model.Event) []model.Event {
	seen := make(map[model.EventKind]bool)
	out := make([]model.Event, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if e.Kind.IsModify() {
			if seen[e.Kind] {
				continue
			}
			seen[e.Kind] = true
		}
		out = append(out, e)
	}
	slices.Reverse(out)
	return out
}
