//go:build linux

package hotplug

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/videokit/camkit/internal/events"
	"github.com/videokit/camkit/internal/logging"
	"github.com/videokit/camkit/pkg/videodev"
)

// Notifier bridges kernel uevents to the application event bus. It watches
// the video4linux subsystem and publishes attach/detach events for capture
// device nodes.
type Notifier struct {
	monitor *Monitor
	bus     *events.Bus
	log     *slog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewNotifier creates a notifier publishing to the given bus.
func NewNotifier(bus *events.Bus) (*Notifier, error) {
	monitor, err := NewMonitor()
	if err != nil {
		return nil, err
	}
	monitor.AddSubsystemFilter(SubsystemVideo4Linux)

	return &Notifier{
		monitor: monitor,
		bus:     bus,
		log:     logging.GetLogger("hotplug"),
	}, nil
}

// Start begins watching for device events. It returns immediately; events
// are published from a background goroutine until Stop is called.
func (n *Notifier) Start(ctx context.Context) error {
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})

	ch := make(chan Event, 16)
	go func() {
		if err := n.monitor.Run(ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
			n.log.Error("Hotplug monitor stopped", "error", err)
		}
	}()
	go func() {
		defer close(n.done)
		for ev := range ch {
			n.handle(ev)
		}
	}()
	return nil
}

// Stop halts the notifier and releases the netlink socket.
func (n *Notifier) Stop() error {
	if n.cancel != nil {
		n.cancel()
	}
	if n.done != nil {
		<-n.done
	}
	return n.monitor.Close()
}

// handle maps a single uevent onto the bus. Only video device nodes produce
// bus events; sub-device and metadata nodes pass through unnoticed.
func (n *Notifier) handle(ev Event) {
	if !strings.HasPrefix(ev.DevName, "video") || ev.Node == "" {
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)

	switch ev.Action {
	case ActionAdd:
		driver, card := n.probe(ev.Node)
		n.log.Info("Video device attached", "node", ev.Node, "driver", driver, "card", card)
		n.bus.Publish(events.DeviceAttachedEvent{
			DevicePath: ev.Node,
			Driver:     driver,
			Card:       card,
			Timestamp:  now,
		})
	case ActionRemove:
		n.log.Info("Video device detached", "node", ev.Node)
		n.bus.Publish(events.DeviceDetachedEvent{
			DevicePath: ev.Node,
			Timestamp:  now,
		})
	}
}

// probe reads driver and card identity from a freshly attached node.
// Best-effort: the node may not be openable yet, or at all.
func (n *Notifier) probe(node string) (driver, card string) {
	h, err := videodev.Open(node)
	if err != nil {
		n.log.Debug("Could not probe attached device", "node", node, "error", err)
		return "", ""
	}
	defer h.Close()

	caps, err := h.Capability()
	if err != nil {
		return "", ""
	}
	return caps.Driver, caps.Card
}
