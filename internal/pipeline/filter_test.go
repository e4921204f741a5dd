package pipeline

import (
	"settle/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreMatch(t *testing.T) {
	ig, err := NewIgnore([]string{".git", "*.swp", "node_modules/**", "build/*.o"})
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"/w/.git", true},
		{"/w/.git/objects/ab", true},
		{"/w/src/.main.go.swp", true},
		{"/w/web/node_modules/react/index.js", true},
		{"/w/build/main.o", true},
		{"/w/build/sub/main.o", false},
		{"/w/src/main.go", false},
		{"/w/gitignore", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ig.Match(tt.path))
		})
	}
}

func TestNewIgnoreInvalidPattern(t *testing.T) {
	_, err := NewIgnore([]string{"[unclosed"})
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	ig, err := NewIgnore([]string{"*.tmp"})
	require.NoError(t, err)

	now := time.Now()
	rescan := model.NewEvent(model.Other, now)
	rescan.Flags |= model.FlagRescan

	inCh := make(chan model.Event, 4)
	inCh <- model.NewEvent(model.CreateFile, now, "/w/a.tmp")
	inCh <- model.NewEvent(model.CreateFile, now, "/w/a.txt")
	inCh <- model.NewEvent(model.RenameBoth, now, "/w/a.tmp", "/w/b.txt")
	inCh <- rescan
	close(inCh)

	var got []model.Event
	for ev := range Filter(inCh, ig) {
		got = append(got, ev)
	}

	require.Len(t, got, 3)
	assert.Equal(t, "/w/a.txt", got[0].Path())
	assert.Equal(t, model.RenameBoth, got[1].Kind)
	assert.True(t, got[2].NeedRescan())
}
