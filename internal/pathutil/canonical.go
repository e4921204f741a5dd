package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Canonical returns the absolute, cleaned and platform-normalised form of
// path. Every lookup in the engine is keyed by this form.
func Canonical(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	return normalize(filepath.Clean(abs)), nil
}

// IsWithin reports whether path equals root or lies below it.
func IsWithin(path, root string) bool {
	if path == root {
		return true
	}
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	return strings.HasPrefix(path, root)
}
