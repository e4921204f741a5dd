package debouncer

import (
	"settle/internal/fileid"
	"settle/internal/model"
	"time"
)

const (
	matchTracker   = "tracker"
	matchIdentity  = "identity"
	matchUnmatched = "unmatched"
)

// stagedRename is the source half of a rename waiting for its destination.
type stagedRename struct {
	source  string
	time    time.Time
	tracker model.Tracker
	id      fileid.ID
	hasID   bool
}

// renameCorrelator pairs RenameFrom events with later RenameTo events,
// first by backend tracker and then by file identity.
type renameCorrelator struct {
	bySource  map[string]*stagedRename
	byTracker map[model.Tracker]*stagedRename
	byID      map[fileid.ID]*stagedRename
}

func newRenameCorrelator() *renameCorrelator {
	r := &renameCorrelator{}
	r.reset()
	return r
}

func (r *renameCorrelator) reset() {
	r.bySource = make(map[string]*stagedRename)
	r.byTracker = make(map[model.Tracker]*stagedRename)
	r.byID = make(map[fileid.ID]*stagedRename)
}

func (r *renameCorrelator) len() int {
	return len(r.bySource)
}

func (r *renameCorrelator) stage(s *stagedRename) {
	r.discard(s.source)

	r.bySource[s.source] = s
	if s.tracker != 0 {
		r.byTracker[s.tracker] = s
	}
	if s.hasID {
		r.byID[s.id] = s
	}
}

// match returns the staged source a RenameTo with the given tracker and
// destination identity belongs to. Two non-zero trackers that differ never
// match, whatever the identities say.
func (r *renameCorrelator) match(tracker model.Tracker, id fileid.ID, hasID bool) (*stagedRename, string) {
	if tracker != 0 {
		if s, ok := r.byTracker[tracker]; ok {
			return s, matchTracker
		}
	}

	if hasID {
		if s, ok := r.byID[id]; ok && (s.tracker == 0 || tracker == 0) {
			return s, matchIdentity
		}
	}

	return nil, matchUnmatched
}

func (r *renameCorrelator) remove(s *stagedRename) {
	if r.bySource[s.source] == s {
		delete(r.bySource, s.source)
	}
	if s.tracker != 0 && r.byTracker[s.tracker] == s {
		delete(r.byTracker, s.tracker)
	}
	if s.hasID && r.byID[s.id] == s {
		delete(r.byID, s.id)
	}
}

func (r *renameCorrelator) discard(source string) {
	if s, ok := r.bySource[source]; ok {
		r.remove(s)
	}
}

// expire drops every staged source older than cutoff.
func (r *renameCorrelator) expire(cutoff time.Time) {
	for _, s := range r.bySource {
		if s.time.Before(cutoff) {
			r.remove(s)
		}
	}
}
