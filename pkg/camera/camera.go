// Package camera defines the backend-neutral camera model: a register-addressed
// device contract, frame buffers with capture metadata, the buffer exchange
// queue that moves frames between a capture engine and its consumer, and
// stream statistics.
//
// Backends (such as the V4L2 adapter in the v4l2 subpackage) implement the
// Device and Stream interfaces; a higher-level configuration layer drives a
// Device purely through its virtual register space and schema document.
package camera

// Device is a camera exposed through a virtual register address space.
//
// ReadRegister and WriteRegister transfer register values in host byte
// order; string registers are null-terminated and truncated to the supplied
// length. Schema returns the feature description document that tells the
// configuration layer how to interpret the address space.
type Device interface {
	ReadRegister(address uint64, data []byte) error
	WriteRegister(address uint64, data []byte) error
	Schema() ([]byte, error)
	CreateStream(callback StreamCallback) (Stream, error)
	Close() error
}

// Stream is one acquisition pipeline on a Device.
//
// CreateBuffers must be called exactly once before the first Start. Start
// and Stop bracket the capture goroutine's lifetime; Stop is idempotent and
// returns only after the goroutine has exited and all in-flight buffers have
// been reclaimed into the exchange queue.
type Stream interface {
	CreateBuffers(count int, size int) error
	Start() error
	Stop() error
	Queue() *ExchangeQueue
	Stats() StatsSnapshot
}

// StreamEvent identifies a stream lifecycle notification.
type StreamEvent int

const (
	// StreamEventInit fires once when the capture goroutine starts.
	StreamEventInit StreamEvent = iota
	// StreamEventBufferDone fires for every completed frame.
	StreamEventBufferDone
	// StreamEventExit fires once when the capture goroutine stops.
	StreamEventExit
)

func (e StreamEvent) String() string {
	switch e {
	case StreamEventInit:
		return "init"
	case StreamEventBufferDone:
		return "buffer-done"
	case StreamEventExit:
		return "exit"
	default:
		return "unknown"
	}
}

// StreamCallback receives stream lifecycle notifications. The buffer is nil
// except for StreamEventBufferDone. Callbacks run on the capture goroutine
// and must not block.
type StreamCallback func(event StreamEvent, buffer *Buffer)
