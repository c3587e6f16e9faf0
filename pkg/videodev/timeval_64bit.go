//go:build linux && (amd64 || arm64)

package videodev

import "syscall"

// makeTimeval builds a select(2) timeout from milliseconds.
func makeTimeval(ms int) *syscall.Timeval {
	return &syscall.Timeval{
		Sec:  int64(ms / 1000),
		Usec: int64(ms%1000) * 1000,
	}
}

// fdSetBit marks a descriptor in a select(2) fd set. FdSet.Bits is an array
// of 64-bit words on these architectures.
func fdSetBit(fds *syscall.FdSet, fd int) {
	fds.Bits[fd/64] |= 1 << (uint(fd) % 64)
}
