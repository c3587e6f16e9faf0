package camera

import "sync"

// BufferStatus reports the outcome of the capture that filled a buffer.
type BufferStatus int

const (
	// BufferCleared marks a buffer that has not completed a capture yet.
	BufferCleared BufferStatus = iota
	// BufferSuccess marks a completed frame with valid metadata.
	BufferSuccess
)

// PayloadType identifies the kind of data a buffer carries.
type PayloadType int

// PayloadImage is the only payload type the capture engine produces.
const PayloadImage PayloadType = 1

// Endianness is the declared byte order of multi-byte pixel data.
type Endianness int

const (
	LittleEndian Endianness = iota
	BigEndian
)

// ImagePart describes the single image plane of a completed frame.
type ImagePart struct {
	PixelFormat PixelFormat
	Width       uint32
	Height      uint32
	XOffset     uint32
	YOffset     uint32
	XPadding    uint32
	YPadding    uint32
}

// Buffer is one frame's worth of capture memory plus the metadata stamped
// by the capture engine when the frame completes.
//
// SlotIndex ties the buffer to the kernel buffer slot whose memory backs
// Data; it is set at creation and never changes. The metadata fields are
// written only by the capture goroutine while the buffer is in flight, and
// are safe to read once the buffer appears on the exchange queue's output
// side.
type Buffer struct {
	// SlotIndex is the kernel buffer slot backing Data.
	SlotIndex uint32

	// Data is the mapped capture memory. Its full capacity is the kernel
	// slot length; ReceivedSize says how much of it the last frame used.
	Data []byte

	Status     BufferStatus
	Payload    PayloadType
	Endianness Endianness

	// DeviceTimestamp is the kernel-supplied capture time in nanoseconds
	// on the device clock; SystemTimestamp is host wall-clock nanoseconds
	// at dequeue.
	DeviceTimestamp int64
	SystemTimestamp int64

	// FrameID increments by one per completed frame within a stream run.
	FrameID uint64

	ReceivedSize int

	Part ImagePart

	release     func()
	releaseOnce sync.Once
}

// NewBuffer wraps capture memory in a buffer. The release function is
// invoked exactly once, from Release, no matter how many times Release is
// called or from which goroutine.
func NewBuffer(slotIndex uint32, data []byte, release func()) *Buffer {
	return &Buffer{
		SlotIndex: slotIndex,
		Data:      data,
		release:   release,
	}
}

// Release frees the buffer's backing memory. Safe to call more than once.
func (b *Buffer) Release() {
	b.releaseOnce.Do(func() {
		if b.release != nil {
			b.release()
		}
	})
}
