//go:build unix

package fileid

import "golang.org/x/sys/unix"

func get(path string) (ID, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return ID{}, err
	}

	return ID{
		Device: uint64(st.Dev),
		Index:  uint64(st.Ino),
	}, nil
}
