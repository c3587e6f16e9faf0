// Package collectors provides periodic metrics collection for acquisition streams.
package collectors

import (
	"context"
	"sync"
	"time"

	"github.com/videokit/camkit/internal/events"
	"github.com/videokit/camkit/internal/logging"
	"github.com/videokit/camkit/internal/metrics"
	"github.com/videokit/camkit/pkg/camera"
)

// SnapshotFunc returns a point-in-time copy of a stream's counters.
type SnapshotFunc func() camera.StatsSnapshot

// StreamCollector polls registered streams and publishes their counters to
// Prometheus and the event bus.
type StreamCollector struct {
	logger   logging.Logger
	bus      *events.Bus
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	sources map[string]SnapshotFunc
}

// NewStreamCollector creates a new stream collector. The bus is optional;
// when nil, snapshots go to Prometheus only.
func NewStreamCollector(bus *events.Bus, interval time.Duration) *StreamCollector {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &StreamCollector{
		logger:   logging.GetLogger("metrics"),
		bus:      bus,
		interval: interval,
		sources:  make(map[string]SnapshotFunc),
	}
}

// Register adds a stream's snapshot source under its device label.
func (c *StreamCollector) Register(device string, fn SnapshotFunc) {
	c.mu.Lock()
	c.sources[device] = fn
	c.mu.Unlock()
}

// Unregister removes a stream's snapshot source and its exported metrics.
func (c *StreamCollector) Unregister(device string) {
	c.mu.Lock()
	delete(c.sources, device)
	c.mu.Unlock()
	metrics.DeleteStreamStats(device)
}

// Start begins periodic collection.
func (c *StreamCollector) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.run()
	return nil
}

// Stop stops the collector.
func (c *StreamCollector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *StreamCollector) run() {
	c.logger.Info("Starting stream metrics collection", "interval", c.interval)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *StreamCollector) collect() {
	c.mu.Lock()
	sources := make(map[string]SnapshotFunc, len(c.sources))
	for device, fn := range c.sources {
		sources[device] = fn
	}
	c.mu.Unlock()

	for device, fn := range sources {
		snap := fn()
		metrics.SetStreamStats(device, snap)

		if c.bus != nil {
			c.bus.Publish(events.StreamStatsEvent{
				DevicePath:       device,
				Completed:        snap.Completed,
				Failures:         snap.Failures,
				Underruns:        snap.Underruns,
				TransferredBytes: snap.TransferredBytes,
			})
		}
	}
}
