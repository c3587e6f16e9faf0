// Package metrics provides Prometheus metrics for acquisition streams.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/videokit/camkit/pkg/camera"
)

var (
	streamFramesCompleted = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camkit",
		Subsystem: "stream",
		Name:      "frames_completed_total",
		Help:      "Frames delivered to the output queue over the stream's lifetime",
	}, []string{"device"})

	streamFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camkit",
		Subsystem: "stream",
		Name:      "capture_failures_total",
		Help:      "Failed buffer submissions and dequeues over the stream's lifetime",
	}, []string{"device"})

	streamUnderruns = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camkit",
		Subsystem: "stream",
		Name:      "queue_underruns_total",
		Help:      "Frame waits that timed out with no data available",
	}, []string{"device"})

	streamBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camkit",
		Subsystem: "stream",
		Name:      "bytes_transferred_total",
		Help:      "Payload bytes delivered over the stream's lifetime",
	}, []string{"device"})

	// Local cache so callers can read back the last published snapshot
	// without scraping the registry.
	streamCache   = make(map[string]camera.StatsSnapshot)
	streamCacheMu sync.RWMutex
)

// SetStreamStats publishes a stream's counter snapshot under its device label.
func SetStreamStats(device string, snap camera.StatsSnapshot) {
	streamFramesCompleted.WithLabelValues(device).Set(float64(snap.Completed))
	streamFailures.WithLabelValues(device).Set(float64(snap.Failures))
	streamUnderruns.WithLabelValues(device).Set(float64(snap.Underruns))
	streamBytes.WithLabelValues(device).Set(float64(snap.TransferredBytes))

	streamCacheMu.Lock()
	streamCache[device] = snap
	streamCacheMu.Unlock()
}

// DeleteStreamStats removes all metrics for a device.
func DeleteStreamStats(device string) {
	streamFramesCompleted.DeleteLabelValues(device)
	streamFailures.DeleteLabelValues(device)
	streamUnderruns.DeleteLabelValues(device)
	streamBytes.DeleteLabelValues(device)

	streamCacheMu.Lock()
	delete(streamCache, device)
	streamCacheMu.Unlock()
}

// GetStreamStats returns the last published snapshot for a device.
func GetStreamStats(device string) (camera.StatsSnapshot, bool) {
	streamCacheMu.RLock()
	defer streamCacheMu.RUnlock()
	snap, ok := streamCache[device]
	return snap, ok
}

// GetAllStreamStats returns the last published snapshot for every device.
func GetAllStreamStats() map[string]camera.StatsSnapshot {
	streamCacheMu.RLock()
	defer streamCacheMu.RUnlock()
	result := make(map[string]camera.StatsSnapshot, len(streamCache))
	for device, snap := range streamCache {
		result[device] = snap
	}
	return result
}
