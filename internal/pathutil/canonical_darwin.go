//go:build darwin

package pathutil

import "golang.org/x/text/unicode/norm"

// HFS+ and some FSEvents deliveries report decomposed names.
func normalize(path string) string {
	if norm.NFC.IsNormalString(path) {
		return path
	}
	return norm.NFC.String(path)
}
