//go:build !linux

package backend

import (
	"fmt"
	"runtime"
)

func newNotify(Options) (Backend, error) {
	return nil, fmt.Errorf("%w: %s on %s", ErrUnsupported, KindNotify, runtime.GOOS)
}
