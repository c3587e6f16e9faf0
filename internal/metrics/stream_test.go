package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/videokit/camkit/pkg/camera"
)

func TestStreamStats(t *testing.T) {
	device := "/dev/video-test"

	snap := camera.StatsSnapshot{
		Completed:        120,
		Failures:         3,
		Underruns:        7,
		TransferredBytes: 73728000,
	}
	SetStreamStats(device, snap)

	// Verify values via prometheus testutil
	if got := testutil.ToFloat64(streamFramesCompleted.WithLabelValues(device)); got != 120 {
		t.Errorf("streamFramesCompleted = %v, want 120", got)
	}
	if got := testutil.ToFloat64(streamFailures.WithLabelValues(device)); got != 3 {
		t.Errorf("streamFailures = %v, want 3", got)
	}
	if got := testutil.ToFloat64(streamUnderruns.WithLabelValues(device)); got != 7 {
		t.Errorf("streamUnderruns = %v, want 7", got)
	}
	if got := testutil.ToFloat64(streamBytes.WithLabelValues(device)); got != 73728000 {
		t.Errorf("streamBytes = %v, want 73728000", got)
	}

	// Cache read-back
	cached, ok := GetStreamStats(device)
	if !ok {
		t.Fatal("expected cached snapshot")
	}
	if cached != snap {
		t.Errorf("cached snapshot = %+v, want %+v", cached, snap)
	}

	all := GetAllStreamStats()
	if _, ok := all[device]; !ok {
		t.Error("expected device in GetAllStreamStats")
	}

	// Delete metrics
	DeleteStreamStats(device)
	if _, ok := GetStreamStats(device); ok {
		t.Error("expected snapshot removed after delete")
	}

	// Delete non-existent should not panic
	DeleteStreamStats("non-existent-device")
}
