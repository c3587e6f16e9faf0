// Package capture supervises acquisition sessions. A session owns one opened
// camera device and its stream: the manager drives the device purely through
// its virtual register space, recycles completed buffers back to the capture
// engine and keeps the metrics collector fed with counter snapshots.
package capture

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/videokit/camkit/internal/events"
	"github.com/videokit/camkit/internal/logging"
	"github.com/videokit/camkit/internal/metrics/collectors"
	"github.com/videokit/camkit/pkg/camera"
	"github.com/videokit/camkit/pkg/camera/v4l2"
)

// outputPollInterval bounds one consumer wait so session shutdown is prompt.
const outputPollInterval = 200 * time.Millisecond

// FrameSink receives each successfully completed frame before its buffer is
// recycled. The buffer's data is only valid for the duration of the call.
type FrameSink func(*camera.Buffer)

// Options configure one acquisition session.
type Options struct {
	// BufferCount is the number of kernel buffer slots to request; zero
	// uses the engine default.
	BufferCount int

	// PixelFormat selects the generic pixel format before acquisition
	// starts; zero keeps the device's active format.
	PixelFormat camera.PixelFormat

	// Sink receives completed frames. May be nil.
	Sink FrameSink
}

// Opener opens a camera device by path. It exists so tests can substitute a
// fake device.
type Opener func(path string) (camera.Device, error)

type session struct {
	path   string
	dev    camera.Device
	stream camera.Stream
	quit   chan struct{}
	done   chan struct{}
}

// Manager runs acquisition sessions, one per device path.
type Manager struct {
	bus       *events.Bus
	collector *collectors.StreamCollector
	open      Opener
	log       *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager creates a session manager. Bus and collector are optional.
func NewManager(bus *events.Bus, collector *collectors.StreamCollector) *Manager {
	return &Manager{
		bus:       bus,
		collector: collector,
		open: func(path string) (camera.Device, error) {
			return v4l2.Open(path)
		},
		log:      logging.GetLogger("capture"),
		sessions: make(map[string]*session),
	}
}

// Start opens the device at path and begins acquisition.
func (m *Manager) Start(path string, opts Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[path]; exists {
		return fmt.Errorf("session already active for %s", path)
	}

	dev, err := m.open(path)
	if err != nil {
		return err
	}

	s, err := m.startSession(path, dev, opts)
	if err != nil {
		dev.Close()
		return err
	}

	m.sessions[path] = s
	return nil
}

func (m *Manager) startSession(path string, dev camera.Device, opts Options) (*session, error) {
	if opts.PixelFormat != camera.PixelFormatUnknown {
		if err := writeU32(dev, v4l2.RegPixelFormat, uint32(opts.PixelFormat)); err != nil {
			return nil, fmt.Errorf("select pixel format: %w", err)
		}
	}

	payload, err := readU32(dev, v4l2.RegPayloadSize)
	if err != nil {
		return nil, fmt.Errorf("read payload size: %w", err)
	}
	width, err := readU32(dev, v4l2.RegWidth)
	if err != nil {
		return nil, fmt.Errorf("read width: %w", err)
	}
	height, err := readU32(dev, v4l2.RegHeight)
	if err != nil {
		return nil, fmt.Errorf("read height: %w", err)
	}
	format, err := readU32(dev, v4l2.RegPixelFormat)
	if err != nil {
		return nil, fmt.Errorf("read pixel format: %w", err)
	}

	stream, err := dev.CreateStream(nil)
	if err != nil {
		return nil, err
	}
	if err := stream.CreateBuffers(opts.BufferCount, int(payload)); err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		return nil, err
	}
	if err := writeU32(dev, v4l2.RegAcquisitionCommand, 1); err != nil {
		stream.Stop()
		return nil, fmt.Errorf("start acquisition: %w", err)
	}

	s := &session{
		path:   path,
		dev:    dev,
		stream: stream,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go m.consume(s, opts.Sink)

	if m.collector != nil {
		m.collector.Register(path, stream.Stats)
	}
	if m.bus != nil {
		m.bus.Publish(events.StreamStartedEvent{
			DevicePath:  path,
			PixelFormat: camera.PixelFormat(format).String(),
			Width:       width,
			Height:      height,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		})
	}

	m.log.Info("Acquisition started",
		"device", path,
		"pixel_format", camera.PixelFormat(format).String(),
		"width", width, "height", height,
		"payload_size", payload)
	return s, nil
}

// consume drains the stream's output side, hands completed frames to the
// sink and recycles every buffer back to the input side.
func (m *Manager) consume(s *session, sink FrameSink) {
	defer close(s.done)
	queue := s.stream.Queue()

	for {
		select {
		case <-s.quit:
			return
		default:
		}

		buf := queue.PopOutput(outputPollInterval)
		if buf == nil {
			continue
		}
		if sink != nil && buf.Status == camera.BufferSuccess {
			sink(buf)
		}
		buf.Status = camera.BufferCleared
		queue.PushInput(buf)
	}
}

// Stop ends the session for path and closes its device.
func (m *Manager) Stop(path string) error {
	m.mu.Lock()
	s, exists := m.sessions[path]
	if exists {
		delete(m.sessions, path)
	}
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("no session for %s", path)
	}

	if err := writeU32(s.dev, v4l2.RegAcquisitionCommand, 0); err != nil {
		m.log.Warn("Stopping kernel stream failed", "device", path, "error", err)
	}
	if err := s.stream.Stop(); err != nil {
		m.log.Warn("Stopping capture engine failed", "device", path, "error", err)
	}
	close(s.quit)
	<-s.done

	// The consumer is gone and the engine has drained its in-flight
	// buffers, so every mapping is parked on the exchange queue. Free
	// them before the device goes away.
	releaseBuffers(s.stream.Queue())

	stats := s.stream.Stats()
	if m.collector != nil {
		m.collector.Unregister(path)
	}
	if m.bus != nil {
		m.bus.Publish(events.StreamStoppedEvent{
			DevicePath: path,
			Frames:     stats.Completed,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
	}

	m.log.Info("Acquisition stopped", "device", path, "frames", stats.Completed)
	return s.dev.Close()
}

// StopAll ends every active session.
func (m *Manager) StopAll() {
	m.mu.Lock()
	paths := make([]string, 0, len(m.sessions))
	for path := range m.sessions {
		paths = append(paths, path)
	}
	m.mu.Unlock()

	for _, path := range paths {
		if err := m.Stop(path); err != nil {
			m.log.Warn("Session stop failed", "device", path, "error", err)
		}
	}
}

// Active reports whether a session is running for path.
func (m *Manager) Active(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.sessions[path]
	return exists
}

// releaseBuffers empties both sides of the exchange queue and frees each
// buffer's backing memory exactly once.
func releaseBuffers(q *camera.ExchangeQueue) {
	for {
		buf := q.TryPopOutput()
		if buf == nil {
			buf = q.TryPopInput()
		}
		if buf == nil {
			return
		}
		buf.Release()
	}
}

func readU32(dev camera.Device, address uint64) (uint32, error) {
	var data [4]byte
	if err := dev.ReadRegister(address, data[:]); err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint32(data[:]), nil
}

func writeU32(dev camera.Device, address uint64, value uint32) error {
	var data [4]byte
	binary.NativeEndian.PutUint32(data[:], value)
	return dev.WriteRegister(address, data[:])
}
