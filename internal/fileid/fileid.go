// Package fileid reads the durable identity of a file: device and inode on
// unix, volume serial number and file index on windows.
package fileid

import (
	"errors"
	"fmt"
)

var ErrUnsupported = errors.New("file identity not supported on this platform")

// ID identifies a file on its device at a point in time. IDs are comparable
// and may be reused by the OS once the file is gone.
type ID struct {
	Device uint64
	Index  uint64
}

func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.Device, id.Index)
}

// Get returns the identity of the file at path, following symlinks.
func Get(path string) (ID, error) {
	id, err := get(path)
	if err != nil {
		return ID{}, fmt.Errorf("failed to read file id of %s: %w", path, err)
	}
	return id, nil
}
