//go:build !darwin

package pathutil

func normalize(path string) string {
	return path
}
