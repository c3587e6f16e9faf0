package events

// Event type constants for kelindar/event.
const (
	TypeDeviceAttached uint32 = iota + 1
	TypeDeviceDetached
	TypeStreamStarted
	TypeStreamStopped
	TypeStreamStats
	TypeCaptureError
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceAttachedEvent is published when a capture device node appears.
type DeviceAttachedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Driver     string `json:"driver,omitempty" example:"uvcvideo" doc:"Kernel driver name"`
	Card       string `json:"card,omitempty" example:"HD Webcam" doc:"Device card name"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceAttachedEvent.
func (e DeviceAttachedEvent) Type() uint32 { return TypeDeviceAttached }

// DeviceDetachedEvent is published when a capture device node disappears.
type DeviceDetachedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDetachedEvent.
func (e DeviceDetachedEvent) Type() uint32 { return TypeDeviceDetached }

// StreamStartedEvent is published when an acquisition stream starts.
type StreamStartedEvent struct {
	DevicePath  string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	PixelFormat string `json:"pixel_format" example:"YUV422_8" doc:"Negotiated generic pixel format"`
	Width       uint32 `json:"width" example:"1280" doc:"Frame width in pixels"`
	Height      uint32 `json:"height" example:"720" doc:"Frame height in pixels"`
	Timestamp   string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStartedEvent.
func (e StreamStartedEvent) Type() uint32 { return TypeStreamStarted }

// StreamStoppedEvent is published when an acquisition stream stops.
type StreamStoppedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Frames     uint64 `json:"frames" example:"1500" doc:"Completed frames over the stream's lifetime"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStoppedEvent.
func (e StreamStoppedEvent) Type() uint32 { return TypeStreamStopped }

// StreamStatsEvent carries a periodic snapshot of a stream's counters.
type StreamStatsEvent struct {
	DevicePath       string `json:"device_path"`
	Completed        uint64 `json:"completed"`
	Failures         uint64 `json:"failures"`
	Underruns        uint64 `json:"underruns"`
	TransferredBytes uint64 `json:"transferred_bytes"`
}

// Type returns the event type identifier for StreamStatsEvent.
func (e StreamStatsEvent) Type() uint32 { return TypeStreamStats }

// CaptureErrorEvent is published when acquisition fails outside the capture
// loop's tolerated error paths.
type CaptureErrorEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Message    string `json:"message" doc:"Error message"`
	Error      string `json:"error" doc:"Detailed error description"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Error timestamp"`
}

// Type returns the event type identifier for CaptureErrorEvent.
func (e CaptureErrorEvent) Type() uint32 { return TypeCaptureError }
