//go:build linux

package videodev

import "syscall"

// Capability flag bits from v4l2_capability.
const (
	CapVideoCapture = 0x00000001
	CapStreaming    = 0x04000000
	CapDeviceCaps   = 0x80000000
)

// Capability describes the device identity reported by the driver.
type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      string
	Capabilities uint32
	DeviceCaps   uint32
}

// Caps returns the capability set that applies to the opened node. Drivers
// exposing multiple device nodes report per-node capabilities separately.
func (c *Capability) Caps() uint32 {
	if c.Capabilities&CapDeviceCaps != 0 {
		return c.DeviceCaps
	}
	return c.Capabilities
}

// FormatDesc is one entry of the device's pixel format enumeration.
type FormatDesc struct {
	Index       uint32
	PixelFormat uint32
	Description string
	Emulated    bool
}

// Frame size enumeration types from v4l2_frmsizetypes.
const (
	FrameSizeDiscrete   = 1
	FrameSizeContinuous = 2
	FrameSizeStepwise   = 3
)

// FrameSize is one entry of a frame size enumeration. Discrete entries fill
// Width and Height; continuous and stepwise entries fill the range fields.
type FrameSize struct {
	Type   uint32
	Width  uint32
	Height uint32

	MinWidth   uint32
	MaxWidth   uint32
	StepWidth  uint32
	MinHeight  uint32
	MaxHeight  uint32
	StepHeight uint32
}

// PixFormat mirrors the negotiated capture format.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	BytesPerLine uint32
	SizeImage    uint32
}

// BufferInfo locates one kernel buffer slot for mmap.
type BufferInfo struct {
	Index  uint32
	Offset uint64
	Length uint32
}

// DoneBuffer is the result of dequeuing one completed capture buffer.
type DoneBuffer struct {
	Index     uint32
	BytesUsed uint32
	Length    uint32
	Sequence  uint32
	Sec       int64
	Usec      int64
}

// WaitStatus reports the outcome of WaitFrame.
type WaitStatus int

const (
	WaitError WaitStatus = iota
	WaitReady
	WaitTimeout
)

// FourCC packs four characters into a pixel format code.
func FourCC(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

// FourCCString renders a pixel format code as its four-character tag.
func FourCCString(fourcc uint32) string {
	return string([]byte{
		byte(fourcc),
		byte(fourcc >> 8),
		byte(fourcc >> 16),
		byte(fourcc >> 24),
	})
}

// Common capture pixel formats.
var (
	PixFmtRGB24 = FourCC('R', 'G', 'B', '3')
	PixFmtBGR24 = FourCC('B', 'G', 'R', '3')
	PixFmtYUYV  = FourCC('Y', 'U', 'Y', 'V')
	PixFmtMJPEG = FourCC('M', 'J', 'P', 'G')
	PixFmtNV12  = FourCC('N', 'V', '1', '2')
)

func timevalSec(tv *syscall.Timeval) int64 { return int64(tv.Sec) }

func timevalUsec(tv *syscall.Timeval) int64 { return int64(tv.Usec) }
