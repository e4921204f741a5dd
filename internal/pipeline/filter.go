package pipeline

import (
	"fmt"
	"path/filepath"
	"settle/internal/model"
	"strings"

	"github.com/gobwas/glob"
)

// Ignore matches paths against ignore patterns. A pattern matches when it
// matches any single path component or any trailing run of components, so
// ".git" and "node_modules/**" both work without anchoring.
type Ignore struct {
	patterns []string
	globs    []glob.Glob
}

func NewIgnore(patterns []string) (*Ignore, error) {
	ig := &Ignore{patterns: patterns}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		ig.globs = append(ig.globs, g)
	}
	return ig, nil
}

func (ig *Ignore) Patterns() []string {
	return ig.patterns
}

func (ig *Ignore) Match(path string) bool {
	if ig == nil || len(ig.globs) == 0 {
		return false
	}

	parts := strings.Split(strings.Trim(filepath.ToSlash(path), "/"), "/")
	for i := range parts {
		suffix := strings.Join(parts[i:], "/")
		for _, g := range ig.globs {
			if g.Match(parts[i]) || g.Match(suffix) {
				return true
			}
		}
	}

	return false
}

// Drop reports whether every path of event is ignored. Events without
// paths, such as rescan requests, are never dropped.
func (ig *Ignore) Drop(event model.Event) bool {
	if len(event.Paths) == 0 {
		return false
	}
	for _, p := range event.Paths {
		if !ig.Match(p) {
			return false
		}
	}
	return true
}

func Filter(inCh <-chan model.Event, ig *Ignore) <-chan model.Event {
	outCh := make(chan model.Event, cap(inCh))

	go func() {
		defer close(outCh)

		for event := range inCh {
			if ig.Drop(event) {
				continue
			}
			outCh <- event
		}
	}()

	return outCh
}
