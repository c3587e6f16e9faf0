//go:build linux

package v4l2

import (
	"sync"
	"syscall"
	"time"

	"github.com/videokit/camkit/pkg/videodev"
)

// fakePort simulates the kernel side of the capture protocol: format
// enumeration, format negotiation and the buffer queue. Tests drive frame
// completion explicitly with completeNext.
type fakePort struct {
	mu sync.Mutex

	cap        videodev.Capability
	formats    []videodev.FormatDesc
	frameSizes map[uint32][]videodev.FrameSize

	current   videodev.PixFormat
	setCalls  int
	streaming bool
	closed    bool

	grant   uint32
	slotLen uint32

	queueErr     error
	streamOnErr  error
	enumSizesErr error

	queued    []uint32
	completed []videodev.DoneBuffer
	ready     chan struct{}
}

func newFakePort() *fakePort {
	return &fakePort{
		cap: videodev.Capability{
			Driver:       "uvcvideo",
			Card:         "Fake Camera",
			BusInfo:      "usb-0000:00:14.0-1",
			Version:      "6.1.0",
			Capabilities: videodev.CapVideoCapture | videodev.CapStreaming,
		},
		formats: []videodev.FormatDesc{
			{Index: 0, PixelFormat: videodev.PixFmtRGB24, Description: "RGB 8:8:8"},
			{Index: 1, PixelFormat: videodev.PixFmtYUYV, Description: "YUYV 4:2:2"},
		},
		frameSizes: map[uint32][]videodev.FrameSize{
			videodev.PixFmtRGB24: {{Type: videodev.FrameSizeDiscrete, Width: 640, Height: 480}},
			videodev.PixFmtYUYV:  {{Type: videodev.FrameSizeDiscrete, Width: 320, Height: 240}},
		},
		grant:   3,
		slotLen: 1 << 16,
		ready:   make(chan struct{}, 64),
	}
}

func (f *fakePort) Capability() (*videodev.Capability, error) {
	c := f.cap
	return &c, nil
}

func (f *fakePort) EnumFormats() ([]videodev.FormatDesc, error) {
	return f.formats, nil
}

func (f *fakePort) EnumFrameSizes(pixelFormat uint32) ([]videodev.FrameSize, error) {
	if f.enumSizesErr != nil {
		return nil, f.enumSizesErr
	}
	return f.frameSizes[pixelFormat], nil
}

func (f *fakePort) SetFormat(pf *videodev.PixFormat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	f.current = *pf
	// The kernel fills in the derived fields.
	f.current.BytesPerLine = pf.Width * 2
	f.current.SizeImage = pf.Width * pf.Height * 2
	return nil
}

func (f *fakePort) Format() (*videodev.PixFormat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.current
	return &c, nil
}

func (f *fakePort) RequestBuffers(count uint32) (uint32, error) {
	if f.grant < count {
		return f.grant, nil
	}
	return count, nil
}

func (f *fakePort) QueryBuffer(index uint32) (videodev.BufferInfo, error) {
	return videodev.BufferInfo{Index: index, Offset: uint64(index) * uint64(f.slotLen), Length: f.slotLen}, nil
}

func (f *fakePort) MapBuffer(info videodev.BufferInfo) ([]byte, error) {
	return make([]byte, info.Length), nil
}

func (f *fakePort) UnmapBuffer(data []byte) error { return nil }

func (f *fakePort) QueueBuffer(index uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queueErr != nil {
		return f.queueErr
	}
	f.queued = append(f.queued, index)
	return nil
}

func (f *fakePort) DequeueBuffer() (videodev.DoneBuffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.completed) == 0 {
		return videodev.DoneBuffer{}, syscall.EAGAIN
	}
	done := f.completed[0]
	f.completed = f.completed[1:]
	return done, nil
}

func (f *fakePort) StreamOn() error {
	if f.streamOnErr != nil {
		return f.streamOnErr
	}
	f.mu.Lock()
	f.streaming = true
	f.mu.Unlock()
	return nil
}

func (f *fakePort) StreamOff() error {
	f.mu.Lock()
	f.streaming = false
	f.mu.Unlock()
	return nil
}

// WaitFrame reports ready once per injected completion and times out
// quickly otherwise to keep the capture loop responsive in tests.
func (f *fakePort) WaitFrame(timeout time.Duration) (videodev.WaitStatus, error) {
	select {
	case <-f.ready:
		return videodev.WaitReady, nil
	case <-time.After(10 * time.Millisecond):
		return videodev.WaitTimeout, nil
	}
}

func (f *fakePort) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// completeNext marks the oldest kernel-queued slot as a finished frame.
func (f *fakePort) completeNext(bytesUsed uint32, sec, usec int64) bool {
	f.mu.Lock()
	if len(f.queued) == 0 {
		f.mu.Unlock()
		return false
	}
	slot := f.queued[0]
	f.queued = f.queued[1:]
	f.completed = append(f.completed, videodev.DoneBuffer{
		Index:     slot,
		BytesUsed: bytesUsed,
		Length:    f.slotLen,
		Sec:       sec,
		Usec:      usec,
	})
	f.mu.Unlock()
	f.ready <- struct{}{}
	return true
}

// injectCompletion pushes a completion for an arbitrary slot, bypassing the
// queued list.
func (f *fakePort) injectCompletion(done videodev.DoneBuffer) {
	f.mu.Lock()
	f.completed = append(f.completed, done)
	f.mu.Unlock()
	f.ready <- struct{}{}
}

func (f *fakePort) queuedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queued)
}
