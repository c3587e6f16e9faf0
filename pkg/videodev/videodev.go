//go:build linux

// Package videodev provides pure Go bindings to the Video4Linux2 capture API:
// capability queries, format negotiation and the memory-mapped buffer queue.
//
// The package does not use cgo, enabling simple cross-compilation for the
// Linux architectures camkit targets (amd64, arm64, arm). Struct layouts are
// declared per architecture in videodev2_*.go with compile-time size
// assertions.
//
// A Handle owns one open device descriptor. All buffer-queue operations
// (QueueBuffer, DequeueBuffer, WaitFrame) are expected to be driven from a
// single goroutine; the remaining queries are independent ioctls and carry no
// state beyond the descriptor.
package videodev

import (
	"errors"
	"fmt"
	"syscall"
	"time"
	"unsafe"
)

// Handle wraps an open V4L2 capture device descriptor.
type Handle struct {
	fd   int
	path string
}

// Open opens a V4L2 device node for capture.
func Open(path string) (*Handle, error) {
	fd, err := syscall.Open(path, syscall.O_RDWR|syscall.O_NONBLOCK|syscall.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Handle{fd: fd, path: path}, nil
}

// Path returns the device node path the handle was opened from.
func (h *Handle) Path() string { return h.path }

// Close releases the device descriptor.
func (h *Handle) Close() error {
	return syscall.Close(h.fd)
}

// Capability queries the device identity and capability flags.
func (h *Handle) Capability() (*Capability, error) {
	c := v4l2Capability{}
	if err := ioctl(h.fd, vidiocQuerycap, unsafe.Pointer(&c)); err != nil {
		return nil, fmt.Errorf("querycap: %w", err)
	}
	return &Capability{
		Driver:       cstr(c.driver[:]),
		Card:         cstr(c.card[:]),
		BusInfo:      cstr(c.busInfo[:]),
		Version:      fmt.Sprintf("%d.%d.%d", byte(c.version>>16), byte(c.version>>8), byte(c.version)),
		Capabilities: c.capabilities,
		DeviceCaps:   c.deviceCaps,
	}, nil
}

// EnumFormats enumerates the capture pixel formats the device supports, in
// kernel order. The enumeration ends when the kernel reports EINVAL.
func (h *Handle) EnumFormats() ([]FormatDesc, error) {
	var formats []FormatDesc

	for i := uint32(0); ; i++ {
		fd := v4l2Fmtdesc{
			index: i,
			typ:   bufTypeVideoCapture,
		}
		if err := ioctl(h.fd, vidiocEnumFmt, unsafe.Pointer(&fd)); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				break
			}
			return nil, fmt.Errorf("enumerate format %d: %w", i, err)
		}

		formats = append(formats, FormatDesc{
			Index:       i,
			PixelFormat: fd.pixelformat,
			Description: cstr(fd.description[:]),
			Emulated:    fd.flags&fmtFlagEmulated != 0,
		})
	}

	return formats, nil
}

// EnumFrameSizes enumerates the frame sizes supported for a pixel format.
// Stepwise and continuous ranges are reported as a single entry. Devices
// that do not implement the ioctl yield an empty list.
func (h *Handle) EnumFrameSizes(pixelFormat uint32) ([]FrameSize, error) {
	var sizes []FrameSize

	for i := uint32(0); ; i++ {
		fs := v4l2Frmsizeenum{
			index:       i,
			pixelFormat: pixelFormat,
		}
		if err := ioctl(h.fd, vidiocEnumFramesizes, unsafe.Pointer(&fs)); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				break
			}
			if errors.Is(err, syscall.ENOTTY) {
				return nil, nil
			}
			return nil, fmt.Errorf("enumerate frame size %d: %w", i, err)
		}

		switch fs.typ {
		case FrameSizeDiscrete:
			sizes = append(sizes, FrameSize{
				Type:   FrameSizeDiscrete,
				Width:  fs.discrete.width,
				Height: fs.discrete.height,
			})
		case FrameSizeContinuous, FrameSizeStepwise:
			// The stepwise struct overlays the discrete one in the kernel union.
			sw := (*v4l2FrmsizeStepwise)(unsafe.Pointer(&fs.discrete))
			sizes = append(sizes, FrameSize{
				Type:       fs.typ,
				MinWidth:   sw.minWidth,
				MaxWidth:   sw.maxWidth,
				StepWidth:  sw.stepWidth,
				MinHeight:  sw.minHeight,
				MaxHeight:  sw.maxHeight,
				StepHeight: sw.stepHeight,
			})
			return sizes, nil
		}
	}

	return sizes, nil
}

// SetFormat negotiates the capture format. The kernel may adjust the
// requested values; read them back with Format.
func (h *Handle) SetFormat(pf *PixFormat) error {
	f := v4l2Format{typ: bufTypeVideoCapture}
	f.pix.width = pf.Width
	f.pix.height = pf.Height
	f.pix.pixelformat = pf.PixelFormat
	f.pix.field = fieldNone
	if err := ioctl(h.fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return fmt.Errorf("set format: %w", err)
	}
	return nil
}

// Format reads back the current capture format, including the kernel's
// authoritative payload size.
func (h *Handle) Format() (*PixFormat, error) {
	f := v4l2Format{typ: bufTypeVideoCapture}
	if err := ioctl(h.fd, vidiocGFmt, unsafe.Pointer(&f)); err != nil {
		return nil, fmt.Errorf("get format: %w", err)
	}
	return &PixFormat{
		Width:        f.pix.width,
		Height:       f.pix.height,
		PixelFormat:  f.pix.pixelformat,
		BytesPerLine: f.pix.bytesperline,
		SizeImage:    f.pix.sizeimage,
	}, nil
}

// RequestBuffers asks the kernel to reserve count memory-mapped buffer
// slots. The granted count is returned and may differ from the request.
func (h *Handle) RequestBuffers(count uint32) (uint32, error) {
	rb := v4l2Requestbuffers{
		count:  count,
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
	}
	if err := ioctl(h.fd, vidiocReqbufs, unsafe.Pointer(&rb)); err != nil {
		return 0, fmt.Errorf("request buffers: %w", err)
	}
	return rb.count, nil
}

// QueryBuffer returns the kernel-side offset and length of a buffer slot.
func (h *Handle) QueryBuffer(index uint32) (BufferInfo, error) {
	b := v4l2Buffer{
		index:  index,
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
	}
	if err := ioctl(h.fd, vidiocQuerybuf, unsafe.Pointer(&b)); err != nil {
		return BufferInfo{}, fmt.Errorf("query buffer %d: %w", index, err)
	}
	return BufferInfo{Index: index, Offset: uint64(b.m), Length: b.length}, nil
}

// MapBuffer maps a buffer slot's kernel memory into the process.
func (h *Handle) MapBuffer(info BufferInfo) ([]byte, error) {
	data, err := syscall.Mmap(h.fd, int64(info.Offset), int(info.Length),
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap buffer %d: %w", info.Index, err)
	}
	return data, nil
}

// UnmapBuffer releases a mapping obtained from MapBuffer.
func (h *Handle) UnmapBuffer(data []byte) error {
	return syscall.Munmap(data)
}

// QueueBuffer hands a buffer slot to the kernel for capture.
func (h *Handle) QueueBuffer(index uint32) error {
	b := v4l2Buffer{
		index:  index,
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
	}
	if err := ioctl(h.fd, vidiocQbuf, unsafe.Pointer(&b)); err != nil {
		return fmt.Errorf("queue buffer %d: %w", index, err)
	}
	return nil
}

// DequeueBuffer retrieves one completed buffer slot from the kernel.
func (h *Handle) DequeueBuffer() (DoneBuffer, error) {
	b := v4l2Buffer{
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
	}
	if err := ioctl(h.fd, vidiocDqbuf, unsafe.Pointer(&b)); err != nil {
		return DoneBuffer{}, fmt.Errorf("dequeue buffer: %w", err)
	}
	return DoneBuffer{
		Index:     b.index,
		BytesUsed: b.bytesused,
		Length:    b.length,
		Sequence:  b.sequence,
		Sec:       timevalSec(&b.timestamp),
		Usec:      timevalUsec(&b.timestamp),
	}, nil
}

// StreamOn starts the kernel capture stream.
func (h *Handle) StreamOn() error {
	typ := uint32(bufTypeVideoCapture)
	if err := ioctl(h.fd, vidiocStreamon, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("stream on: %w", err)
	}
	return nil
}

// StreamOff stops the kernel capture stream and discards queued buffers.
func (h *Handle) StreamOff() error {
	typ := uint32(bufTypeVideoCapture)
	if err := ioctl(h.fd, vidiocStreamoff, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("stream off: %w", err)
	}
	return nil
}

// WaitFrame blocks until the descriptor becomes readable or the timeout
// elapses. Timeout and I/O error are distinct outcomes so callers can apply
// different policies to each.
func (h *Handle) WaitFrame(timeout time.Duration) (WaitStatus, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}

		// select mutates both the fd set and the timeout, so rebuild them
		// on every pass. The timeout comes from the deadline, so a retry
		// after an interrupted call waits only for the time left.
		var readFds syscall.FdSet
		fdSetBit(&readFds, h.fd)
		tv := makeTimeval(int(remaining / time.Millisecond))

		n, err := syscall.Select(h.fd+1, &readFds, nil, nil, tv)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return WaitError, fmt.Errorf("select: %w", err)
		}
		if n == 0 {
			return WaitTimeout, nil
		}
		return WaitReady, nil
	}
}

func cstr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
