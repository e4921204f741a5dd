package debouncer

import (
	"settle/internal/fileid"
	"settle/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelatorMatch(t *testing.T) {
	id := fileid.ID{Device: 1, Index: 42}

	tests := []struct {
		name    string
		staged  stagedRename
		tracker model.Tracker
		id      fileid.ID
		hasID   bool
		method  string
	}{
		{"tracker", stagedRename{source: "/a", tracker: 3}, 3, fileid.ID{}, false, matchTracker},
		{"identity without trackers", stagedRename{source: "/a", id: id, hasID: true}, 0, id, true, matchIdentity},
		{"identity with one tracker", stagedRename{source: "/a", id: id, hasID: true}, 5, id, true, matchIdentity},
		{"different trackers", stagedRename{source: "/a", tracker: 4, id: id, hasID: true}, 5, id, true, matchUnmatched},
		{"different identity", stagedRename{source: "/a", id: id, hasID: true}, 0, fileid.ID{Device: 1, Index: 43}, true, matchUnmatched},
		{"nothing to go on", stagedRename{source: "/a"}, 0, fileid.ID{}, false, matchUnmatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRenameCorrelator()
			s := tt.staged
			r.stage(&s)

			got, method := r.match(tt.tracker, tt.id, tt.hasID)
			assert.Equal(t, tt.method, method)
			if tt.method == matchUnmatched {
				assert.Nil(t, got)
			} else {
				assert.Same(t, &s, got)
			}
		})
	}
}

func TestCorrelatorRestageReplaces(t *testing.T) {
	r := newRenameCorrelator()
	r.stage(&stagedRename{source: "/a", tracker: 1})
	r.stage(&stagedRename{source: "/a", tracker: 2})

	got, _ := r.match(1, fileid.ID{}, false)
	assert.Nil(t, got)
	got, _ = r.match(2, fileid.ID{}, false)
	assert.NotNil(t, got)
	assert.Equal(t, 1, r.len())
}

func TestCorrelatorExpire(t *testing.T) {
	r := newRenameCorrelator()
	r.stage(&stagedRename{source: "/old", time: at(1), tracker: 1})
	r.stage(&stagedRename{source: "/new", time: at(5), tracker: 2})

	r.expire(at(3))

	assert.Equal(t, 1, r.len())
	got, _ := r.match(2, fileid.ID{}, false)
	assert.NotNil(t, got)
}
