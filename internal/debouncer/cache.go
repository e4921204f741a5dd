package debouncer

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"settle/internal/fileid"
	"settle/internal/logger"
	"settle/internal/pathutil"
	"sort"

	"go.uber.org/zap"
)

// IdentityCache maps canonical paths under the watched roots to the durable
// identity of the file behind them. Rename correlation uses it when the
// backend supplies no tracker.
type IdentityCache interface {
	AddRoot(path string, recursive bool) error
	RemoveRoot(path string)
	Lookup(path string) (fileid.ID, bool)
	Update(path string, id fileid.ID)
	// AddPath reads the identity of path, and of everything below it when
	// path lives in a recursive root, from disk.
	AddPath(path string)
	// Remove forgets path and every path below it.
	Remove(path string)
	// Rescan rebuilds the mapping of the given roots, or of every root when
	// none are given, from disk and returns the paths it did not know of.
	Rescan(roots ...string) ([]string, error)
}

// RescanError reports a root that could not be walked during a rescan. The
// previous mapping of the root is kept.
type RescanError struct {
	Root string
	Err  error
}

func (e *RescanError) Error() string {
	return fmt.Sprintf("rescan of %s failed: %v", e.Root, e.Err)
}

func (e *RescanError) Unwrap() error {
	return e.Err
}

// NoCache is the IdentityCache used when identity tracking is disabled.
type NoCache struct{}

func (NoCache) AddRoot(string, bool) error         { return nil }
func (NoCache) RemoveRoot(string)                  {}
func (NoCache) Lookup(string) (fileid.ID, bool)    { return fileid.ID{}, false }
func (NoCache) Update(string, fileid.ID)           {}
func (NoCache) AddPath(string)                     {}
func (NoCache) Remove(string)                      {}
func (NoCache) Rescan(...string) ([]string, error) { return nil, nil }

type watchRoot struct {
	path      string
	recursive bool
}

// PathCache is an in-memory IdentityCache filled by walking the watched
// roots.
type PathCache struct {
	ids   map[string]fileid.ID
	roots []watchRoot
	stat  func(string) (fileid.ID, error)
}

func NewPathCache() *PathCache {
	return &PathCache{
		ids:  make(map[string]fileid.ID),
		stat: fileid.Get,
	}
}

func (c *PathCache) Len() int {
	return len(c.ids)
}

func (c *PathCache) AddRoot(path string, recursive bool) error {
	ids, err := c.walk(path, recursive)
	if err != nil {
		return err
	}

	c.RemoveRoot(path)
	c.roots = append(c.roots, watchRoot{path: path, recursive: recursive})
	for p, id := range ids {
		c.ids[p] = id
	}
	return nil
}

func (c *PathCache) RemoveRoot(path string) {
	c.roots = removeRoots(c.roots, path)
	c.Remove(path)
}

func removeRoots(roots []watchRoot, path string) []watchRoot {
	kept := roots[:0]
	for _, r := range roots {
		if !pathutil.IsWithin(r.path, path) {
			kept = append(kept, r)
		}
	}
	return kept
}

func (c *PathCache) Lookup(path string) (fileid.ID, bool) {
	id, ok := c.ids[path]
	return id, ok
}

func (c *PathCache) Update(path string, id fileid.ID) {
	c.ids[path] = id
}

func (c *PathCache) AddPath(path string) {
	recursive := false
	if r, ok := c.rootOf(path); ok {
		recursive = r.recursive
	}

	ids, err := c.walk(path, recursive)
	if err != nil {
		// gone again before we could look at it
		logger.Log.Debug("failed to read file id", zap.String("path", path), zap.Error(err))
		return
	}
	for p, id := range ids {
		c.ids[p] = id
	}
}

func (c *PathCache) Remove(path string) {
	for p := range c.ids {
		if pathutil.IsWithin(p, path) {
			delete(c.ids, p)
		}
	}
}

func (c *PathCache) Rescan(roots ...string) ([]string, error) {
	targets := c.roots
	if len(roots) > 0 {
		targets = nil
		for _, path := range roots {
			if r, ok := c.rootOf(path); ok {
				targets = append(targets, watchRoot{path: path, recursive: r.recursive})
			}
		}
	}

	var added []string
	var errs []error
	for _, r := range targets {
		fresh, err := c.walk(r.path, r.recursive)
		if err != nil {
			errs = append(errs, &RescanError{Root: r.path, Err: err})
			continue
		}

		for p := range c.ids {
			if _, ok := fresh[p]; !ok && c.covers(r, p) {
				delete(c.ids, p)
			}
		}
		for p, id := range fresh {
			if _, ok := c.ids[p]; !ok {
				added = append(added, p)
			}
			c.ids[p] = id
		}
	}

	sort.Strings(added)
	return added, errors.Join(errs...)
}

func (c *PathCache) rootOf(path string) (watchRoot, bool) {
	var best watchRoot
	found := false
	for _, r := range c.roots {
		if pathutil.IsWithin(path, r.path) && (!found || len(r.path) > len(best.path)) {
			best, found = r, true
		}
	}
	return best, found
}

// covers reports whether a walk of r would have visited path.
func (c *PathCache) covers(r watchRoot, path string) bool {
	if !pathutil.IsWithin(path, r.path) {
		return false
	}
	if r.recursive || path == r.path {
		return true
	}
	return filepath.Dir(path) == r.path
}

// walk reads the identity of path and, if it is a directory, of its
// children; of all descendants when recursive is set.
func (c *PathCache) walk(path string, recursive bool) (map[string]fileid.ID, error) {
	ids := make(map[string]fileid.ID)

	id, err := c.stat(path)
	if err != nil {
		return nil, err
	}
	ids[path] = id

	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries keep whatever was recorded for them so far
			if p == path {
				return filepath.SkipDir
			}
			return nil
		}
		if p == path {
			return nil
		}

		if childID, err := c.stat(p); err == nil {
			ids[p] = childID
		}
		if d.IsDir() && !recursive {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
