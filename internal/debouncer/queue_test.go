package debouncer

import (
	"settle/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(sec float64) time.Time {
	return epoch.Add(time.Duration(sec * float64(time.Second)))
}

func kinds(events []model.Event) []model.EventKind {
	out := make([]model.EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestEnqueueDropsDuplicateCreate(t *testing.T) {
	s := NewQueueStore()

	assert.True(t, s.Enqueue("/w/d", model.NewEvent(model.CreateFolder, at(1), "/w/d")))
	assert.False(t, s.Enqueue("/w/d", model.NewEvent(model.CreateFolder, at(2), "/w/d")))

	assert.Equal(t, []model.EventKind{model.CreateFolder}, kinds(s.Events("/w/d")))
	assert.Equal(t, at(2), s.Get("/w/d").LastActivity)
}

func TestEnqueueDropsModifyAfterCreate(t *testing.T) {
	s := NewQueueStore()

	s.Enqueue("/w/f", model.NewEvent(model.CreateFile, at(1), "/w/f"))
	assert.False(t, s.Enqueue("/w/f", model.NewEvent(model.ModifyDataContent, at(2), "/w/f")))
	assert.False(t, s.Enqueue("/w/f", model.NewEvent(model.ModifyMetadataPermissions, at(3), "/w/f")))

	assert.Equal(t, []model.EventKind{model.CreateFile}, kinds(s.Events("/w/f")))
}

func TestEnqueueKeepsModifyAfterRemoveAndCreate(t *testing.T) {
	s := NewQueueStore()

	s.Push("/w/f", model.NewEvent(model.RemoveFile, at(1), "/w/f"))
	assert.True(t, s.Enqueue("/w/f", model.NewEvent(model.CreateFile, at(2), "/w/f")))
	assert.False(t, s.Enqueue("/w/f", model.NewEvent(model.ModifyDataContent, at(3), "/w/f")))

	s.Push("/w/g", model.NewEvent(model.ModifyDataContent, at(1), "/w/g"))
	assert.True(t, s.Enqueue("/w/g", model.NewEvent(model.ModifyDataContent, at(2), "/w/g")))

	assert.Equal(t, []model.EventKind{model.RemoveFile, model.CreateFile}, kinds(s.Events("/w/f")))
	assert.Len(t, s.Events("/w/g"), 2)
}

func TestSpliceIntoRewritesPaths(t *testing.T) {
	s := NewQueueStore()

	s.Push("/w/dst", model.NewEvent(model.RenameBoth, at(5), "/w/src", "/w/dst"))
	s.Push("/w/src", model.NewEvent(model.ModifyDataContent, at(1), "/w/src"))
	s.Push("/w/src", model.NewEvent(model.ModifyMetadataAny, at(2), "/w/src"))

	s.SpliceInto("/w/dst", "/w/src")

	assert.Nil(t, s.Get("/w/src"))
	events := s.Events("/w/dst")
	require.Len(t, events, 3)
	assert.Equal(t, []model.EventKind{model.RenameBoth, model.ModifyDataContent, model.ModifyMetadataAny}, kinds(events))
	assert.Equal(t, []string{"/w/src", "/w/dst"}, events[0].Paths)
	assert.Equal(t, []string{"/w/dst"}, events[1].Paths)
	assert.Equal(t, at(1), events[1].Time)
	assert.Equal(t, at(5), s.Get("/w/dst").LastActivity)
}

func TestTakeExpiredBoundary(t *testing.T) {
	s := NewQueueStore()
	s.Push("/w/a", model.NewEvent(model.ModifyDataAny, at(1), "/w/a"))
	s.Push("/w/b", model.NewEvent(model.ModifyDataAny, at(2), "/w/b"))

	assert.Empty(t, s.TakeExpired(at(5.9), 5*time.Second))

	expired := s.TakeExpired(at(6), 5*time.Second)
	require.Len(t, expired, 1)
	assert.Equal(t, "/w/a", expired[0].Owner)
	assert.Equal(t, []string{"/w/b"}, s.Paths())
}

func TestTakePrefix(t *testing.T) {
	s := NewQueueStore()
	for i := 1; i <= 3; i++ {
		s.Push("/w/f", model.NewEvent(model.ModifyDataContent, at(float64(i)), "/w/f"))
	}

	prefix := s.TakePrefix("/w/f", at(2))
	require.Len(t, prefix, 2)
	assert.Equal(t, at(2), prefix[1].Time)
	assert.Len(t, s.Events("/w/f"), 1)

	assert.Empty(t, s.TakePrefix("/w/f", at(2)))
	assert.Len(t, s.TakePrefix("/w/f", at(3)), 1)
	assert.Zero(t, s.Len())
}

func TestDeleteBelow(t *testing.T) {
	s := NewQueueStore()
	s.Push("/w/d", model.NewEvent(model.ModifyDataAny, at(1), "/w/d"))
	s.Push("/w/d/x", model.NewEvent(model.ModifyDataAny, at(1), "/w/d/x"))
	s.Push("/w/d/y/z", model.NewEvent(model.ModifyDataAny, at(1), "/w/d/y/z"))
	s.Push("/w/dd", model.NewEvent(model.ModifyDataAny, at(1), "/w/dd"))

	s.DeleteBelow("/w/d")

	assert.Equal(t, []string{"/w/d", "/w/dd"}, s.Paths())
}
