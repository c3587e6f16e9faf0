//go:build linux && arm

package videodev

import "syscall"

// makeTimeval builds a select(2) timeout from milliseconds.
func makeTimeval(ms int) *syscall.Timeval {
	return &syscall.Timeval{
		Sec:  int32(ms / 1000),
		Usec: int32(ms%1000) * 1000,
	}
}

// fdSetBit marks a descriptor in a select(2) fd set. FdSet.Bits is an array
// of 32-bit words on 32-bit ARM.
func fdSetBit(fds *syscall.FdSet, fd int) {
	fds.Bits[fd/32] |= 1 << (uint(fd) % 32)
}
