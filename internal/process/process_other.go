//go:build !linux

package process

import (
	"errors"
	"runtime"
)

var errUnsupported = errors.New("process attach is not supported on " + runtime.GOOS)

// Find is only implemented on Linux.
func Find(names ...string) (*Process, error) {
	return nil, errUnsupported
}

// Open is only implemented on Linux.
func Open(pid int) (*Process, error) {
	return nil, errUnsupported
}
