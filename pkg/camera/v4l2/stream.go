//go:build linux

package v4l2

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/videokit/camkit/internal/logging"
	"github.com/videokit/camkit/pkg/camera"
	"github.com/videokit/camkit/pkg/videodev"
)

const (
	// DefaultBufferCount is the usual number of kernel buffer slots.
	DefaultBufferCount = 3

	// frameWaitTimeout bounds one wait-phase pass. It also bounds how long
	// Stop may block before the capture goroutine observes cancellation.
	frameWaitTimeout = 2 * time.Second
)

// Stream is the capture engine for one acquisition pipeline. A dedicated
// goroutine owns all interactions with the kernel buffer queue; the control
// goroutine only creates buffers, starts, stops and reads statistics.
type Stream struct {
	dev      *Device
	port     port
	callback camera.StreamCallback
	queue    *camera.ExchangeQueue
	stats    camera.Stats
	log      *slog.Logger

	mu             sync.Mutex
	buffersCreated bool
	running        bool

	cancel atomic.Bool
	done   chan struct{}
}

var _ camera.Stream = (*Stream)(nil)

func newStream(d *Device, callback camera.StreamCallback) *Stream {
	return &Stream{
		dev:      d,
		port:     d.port,
		callback: callback,
		queue:    camera.NewExchangeQueue(),
		log:      logging.GetLogger("camera.v4l2.stream").With("device", d.path),
	}
}

// Queue returns the stream's buffer exchange queue.
func (s *Stream) Queue() *camera.ExchangeQueue { return s.queue }

// Stats returns a snapshot of the stream's monotonic counters.
func (s *Stream) Stats() camera.StatsSnapshot { return s.stats.Snapshot() }

// CreateBuffers reserves count kernel buffer slots, maps each slot's memory
// and seeds the exchange queue with one buffer per slot. It must be called
// exactly once, before the first Start. The kernel decides the actual slot
// size; size is only a lower-bound hint.
func (s *Stream) CreateBuffers(count int, size int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buffersCreated {
		return fmt.Errorf("%w: buffers already created", camera.ErrProtocol)
	}
	if count <= 0 {
		count = DefaultBufferCount
	}

	granted, err := s.port.RequestBuffers(uint32(count))
	if err != nil {
		return fmt.Errorf("%w: %s", camera.ErrProtocol, err)
	}
	if granted == 0 {
		return fmt.Errorf("%w: kernel granted no buffers", camera.ErrProtocol)
	}
	if int(granted) != count {
		s.log.Debug("kernel adjusted buffer count", "requested", count, "granted", granted)
	}

	for i := uint32(0); i < granted; i++ {
		info, err := s.port.QueryBuffer(i)
		if err != nil {
			return fmt.Errorf("%w: %s", camera.ErrProtocol, err)
		}
		data, err := s.port.MapBuffer(info)
		if err != nil {
			return fmt.Errorf("%w: %s", camera.ErrProtocol, err)
		}
		if int(info.Length) < size {
			s.log.Debug("kernel slot smaller than requested size",
				"slot", i, "length", info.Length, "requested", size)
		}

		p := s.port
		buf := camera.NewBuffer(i, data, func() {
			if err := p.UnmapBuffer(data); err != nil {
				s.log.Warn("unmap failed", "slot", i, "error", err)
			}
		})
		s.queue.PushInput(buf)
	}

	s.buffersCreated = true
	return nil
}

// Start spawns the capture goroutine. It negotiates the image format first
// and returns without starting anything if that fails. On success it blocks
// until the goroutine has signalled readiness, so a returned nil means the
// kernel queue is being serviced.
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("%w: stream already started", camera.ErrProtocol)
	}
	if !s.buffersCreated {
		return fmt.Errorf("%w: buffers not created", camera.ErrProtocol)
	}

	info, err := s.dev.ImageInfo()
	if err != nil {
		return err
	}

	s.cancel.Store(false)
	s.done = make(chan struct{})
	started := make(chan struct{})

	go s.run(info, started)
	<-started

	s.running = true
	return nil
}

// Stop cancels the capture goroutine and waits for it to exit. When Stop
// returns, every buffer that was in flight is back on the exchange queue's
// output side. Stopping a stream that is not running is a no-op.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.cancel.Store(true)
	<-s.done
	s.running = false
	return nil
}

// run is the capture goroutine. It alone touches the kernel buffer queue
// and the in-flight map. The readiness channel is closed unconditionally so
// Start never deadlocks, and shutdown always drains in-flight buffers back
// to the exchange queue so no buffer is stranded.
func (s *Stream) run(info *ImageInfo, started chan<- struct{}) {
	defer close(s.done)

	inFlight := make(map[uint32]*camera.Buffer)
	var frameID uint64

	s.notify(camera.StreamEventInit, nil)
	close(started)

	s.log.Debug("capture loop started",
		"width", info.Width, "height", info.Height, "format", info.PixelFormat)

	for !s.cancel.Load() {
		// Submit every available buffer to the kernel. A failed submit
		// returns the buffer to the consumer side untouched instead of
		// retrying.
		for {
			buf := s.queue.TryPopInput()
			if buf == nil {
				break
			}
			if err := s.port.QueueBuffer(buf.SlotIndex); err != nil {
				s.log.Warn("buffer submit failed", "slot", buf.SlotIndex, "error", err)
				s.stats.AddFailure()
				s.queue.PushOutput(buf)
				continue
			}
			inFlight[buf.SlotIndex] = buf
		}

		status, err := s.port.WaitFrame(frameWaitTimeout)
		switch {
		case err != nil:
			s.log.Warn("frame wait failed", "error", err)
			s.stats.AddFailure()
			continue
		case status == videodev.WaitTimeout:
			s.stats.AddUnderrun()
			continue
		}

		done, err := s.port.DequeueBuffer()
		if err != nil {
			s.log.Warn("dequeue failed", "error", err)
			s.stats.AddFailure()
			continue
		}

		buf, ok := inFlight[done.Index]
		if !ok {
			s.log.Warn("dequeued unknown slot", "slot", done.Index)
			continue
		}
		delete(inFlight, done.Index)

		buf.Status = camera.BufferSuccess
		buf.Payload = camera.PayloadImage
		buf.Endianness = camera.BigEndian
		buf.DeviceTimestamp = done.Sec*1e9 + done.Usec*1e3
		buf.SystemTimestamp = time.Now().UnixNano()
		buf.FrameID = frameID
		frameID++
		buf.ReceivedSize = int(done.BytesUsed)
		buf.Part = camera.ImagePart{
			PixelFormat: info.PixelFormat,
			Width:       info.Width,
			Height:      info.Height,
		}

		s.stats.AddCompleted(uint64(done.BytesUsed))
		s.queue.PushOutput(buf)
		s.notify(camera.StreamEventBufferDone, buf)
	}

	// Reclaim buffers the kernel never completed.
	for slot, buf := range inFlight {
		delete(inFlight, slot)
		s.queue.PushOutput(buf)
	}

	s.notify(camera.StreamEventExit, nil)
	s.log.Debug("capture loop stopped")
}

func (s *Stream) notify(event camera.StreamEvent, buf *camera.Buffer) {
	if s.callback != nil {
		s.callback(event, buf)
	}
}
