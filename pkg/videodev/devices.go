//go:build linux

package videodev

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DeviceInfo identifies one capture-capable video node.
type DeviceInfo struct {
	Path    string
	Driver  string
	Card    string
	BusInfo string
}

// FindDevices scans sysfs for video nodes and returns the ones that expose
// streaming video capture. Nodes that cannot be opened or probed are
// skipped; metadata-only and output nodes are filtered out.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir("/sys/class/video4linux")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var devices []DeviceInfo
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "video") {
			continue
		}
		path := filepath.Join("/dev", entry.Name())

		h, err := Open(path)
		if err != nil {
			continue
		}
		cap, err := h.Capability()
		h.Close()
		if err != nil {
			continue
		}

		caps := cap.Caps()
		if caps&CapVideoCapture == 0 || caps&CapStreaming == 0 {
			continue
		}

		devices = append(devices, DeviceInfo{
			Path:    path,
			Driver:  cap.Driver,
			Card:    cap.Card,
			BusInfo: cap.BusInfo,
		})
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices, nil
}
