//go:build linux

package videodev

import (
	"syscall"
	"unsafe"
)

// ioctl issues a device ioctl and maps the errno to a syscall error value.
func ioctl(fd int, request uintptr, arg unsafe.Pointer) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), request, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
