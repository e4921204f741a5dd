//go:build !unix && !windows

package fileid

func get(string) (ID, error) {
	return ID{}, ErrUnsupported
}
