package backend

import (
	"os"
	"path/filepath"
	"settle/internal/model"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect reads events until one satisfying done arrives or the deadline
// passes.
func collect(t *testing.T, b Backend, done func(model.Event) bool) []model.Event {
	t.Helper()

	var events []model.Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-b.Events():
			require.True(t, ok, "event channel closed")
			events = append(events, ev)
			if done(ev) {
				return events
			}
		case <-deadline:
			t.Fatalf("timed out, got %v", events)
			return nil
		}
	}
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New("inotify2", DefaultOptions())
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestToEventKind(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.Equal(t, model.CreateFolder, toEventKind(fsnotify.Create, dir))
	assert.Equal(t, model.CreateFile, toEventKind(fsnotify.Create, file))
	assert.Equal(t, model.CreateAny, toEventKind(fsnotify.Create, filepath.Join(dir, "gone")))
	assert.Equal(t, model.ModifyDataContent, toEventKind(fsnotify.Write, file))
	assert.Equal(t, model.ModifyMetadataAny, toEventKind(fsnotify.Chmod, file))
	assert.Equal(t, model.RemoveAny, toEventKind(fsnotify.Remove, file))
	assert.Equal(t, model.RenameFrom, toEventKind(fsnotify.Rename, file))
	assert.Equal(t, model.KindUnknown, toEventKind(0, file))
}

func TestFsnotifyReportsCreate(t *testing.T) {
	dir := t.TempDir()

	b, err := New(KindFsnotify, DefaultOptions())
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	require.NoError(t, b.Watch(dir, true))

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	collect(t, b, func(ev model.Event) bool {
		return ev.Kind == model.CreateFolder && ev.Path() == sub
	})

	// new directories under a recursive root are watched too
	file := filepath.Join(sub, "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	collect(t, b, func(ev model.Event) bool {
		return ev.Path() == file
	})
}

func TestFsnotifyCloseClosesChannels(t *testing.T) {
	b, err := New(KindFsnotify, DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, ok := <-b.Events()
	assert.False(t, ok)
}

func TestFsnotifyWatchMissingRoot(t *testing.T) {
	b, err := New(KindFsnotify, DefaultOptions())
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	assert.Error(t, b.Watch(filepath.Join(t.TempDir(), "missing"), true))
}
