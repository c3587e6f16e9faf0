//go:build linux

package hotplug

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestParseUEvent(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected *Event
	}{
		{
			name:     "empty input",
			input:    []byte{},
			expected: nil,
		},
		{
			name:     "nil input",
			input:    nil,
			expected: nil,
		},
		{
			name:     "no @ separator",
			input:    []byte("invalid"),
			expected: nil,
		},
		{
			name:     "missing action",
			input:    []byte("@/devices/foo"),
			expected: nil,
		},
		{
			name:  "simple add event",
			input: []byte("add@/devices/pci0000:00/video0\x00SUBSYSTEM=video4linux\x00DEVNAME=video0\x00"),
			expected: &Event{
				Action:    "add",
				KObj:      "/devices/pci0000:00/video0",
				Subsystem: "video4linux",
				DevName:   "video0",
				Node:      "/dev/video0",
				Env: map[string]string{
					"SUBSYSTEM": "video4linux",
					"DEVNAME":   "video0",
				},
			},
		},
		{
			name:  "absolute devname",
			input: []byte("add@/devices/platform/foo\x00SUBSYSTEM=video4linux\x00DEVNAME=/dev/video2\x00"),
			expected: &Event{
				Action:    "add",
				KObj:      "/devices/platform/foo",
				Subsystem: "video4linux",
				DevName:   "/dev/video2",
				Node:      "/dev/video2",
				Env: map[string]string{
					"SUBSYSTEM": "video4linux",
					"DEVNAME":   "/dev/video2",
				},
			},
		},
		{
			name:  "remove event with multiple properties",
			input: []byte("remove@/devices/usb/1-1\x00SUBSYSTEM=usb\x00DEVTYPE=usb_device\x00PRODUCT=1234/5678/0100\x00"),
			expected: &Event{
				Action:    "remove",
				KObj:      "/devices/usb/1-1",
				Subsystem: "usb",
				Env: map[string]string{
					"SUBSYSTEM": "usb",
					"DEVTYPE":   "usb_device",
					"PRODUCT":   "1234/5678/0100",
				},
			},
		},
		{
			name:  "event with empty values",
			input: []byte("add@/devices/test\x00KEY1=value1\x00KEY2=\x00KEY3=value3\x00"),
			expected: &Event{
				Action: "add",
				KObj:   "/devices/test",
				Env: map[string]string{
					"KEY1": "value1",
					"KEY2": "",
					"KEY3": "value3",
				},
			},
		},
		{
			name:  "event with trailing nulls",
			input: []byte("bind@/devices/foo\x00SUBSYSTEM=pci\x00\x00\x00"),
			expected: &Event{
				Action:    "bind",
				KObj:      "/devices/foo",
				Subsystem: "pci",
				Env: map[string]string{
					"SUBSYSTEM": "pci",
				},
			},
		},
		{
			name:     "only null bytes",
			input:    []byte{0, 0, 0, 0},
			expected: nil,
		},
		{
			name:  "key with equals in value",
			input: []byte("add@/dev/foo\x00KEY=val=ue=with=equals\x00"),
			expected: &Event{
				Action: "add",
				KObj:   "/dev/foo",
				Env:    map[string]string{"KEY": "val=ue=with=equals"},
			},
		},
		{
			name:  "very long path",
			input: []byte("add@/devices/" + strings.Repeat("a", 500) + "\x00"),
			expected: &Event{
				Action: "add",
				KObj:   "/devices/" + strings.Repeat("a", 500),
				Env:    map[string]string{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseUEvent(tt.input)

			if tt.expected == nil {
				if result != nil {
					t.Errorf("expected nil, got %+v", result)
				}
				return
			}

			if result == nil {
				t.Fatalf("expected %+v, got nil", tt.expected)
			}

			if result.Action != tt.expected.Action {
				t.Errorf("Action: expected %q, got %q", tt.expected.Action, result.Action)
			}
			if result.KObj != tt.expected.KObj {
				t.Errorf("KObj: expected %q, got %q", tt.expected.KObj, result.KObj)
			}
			if result.Subsystem != tt.expected.Subsystem {
				t.Errorf("Subsystem: expected %q, got %q", tt.expected.Subsystem, result.Subsystem)
			}
			if result.DevName != tt.expected.DevName {
				t.Errorf("DevName: expected %q, got %q", tt.expected.DevName, result.DevName)
			}
			if result.Node != tt.expected.Node {
				t.Errorf("Node: expected %q, got %q", tt.expected.Node, result.Node)
			}

			if len(result.Env) != len(tt.expected.Env) {
				t.Errorf("Env length: expected %d, got %d", len(tt.expected.Env), len(result.Env))
			}
			for k, v := range tt.expected.Env {
				if result.Env[k] != v {
					t.Errorf("Env[%q]: expected %q, got %q", k, v, result.Env[k])
				}
			}
		})
	}
}

func TestNewMonitor(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Skipf("netlink socket unavailable: %v", err)
	}
	defer func() { _ = m.Close() }()

	if m.fd <= 0 {
		t.Errorf("expected valid fd, got %d", m.fd)
	}
}

func TestMonitorClose(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Skipf("netlink socket unavailable: %v", err)
	}

	if closeErr := m.Close(); closeErr != nil {
		t.Errorf("Close() error: %v", closeErr)
	}

	// Second close should fail (bad file descriptor)
	if closeErr := m.Close(); closeErr == nil {
		t.Error("expected error on second Close()")
	}
}

func TestMonitorRunCancellation(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Skipf("netlink socket unavailable: %v", err)
	}
	defer func() { _ = m.Close() }()

	// Use already-cancelled context - Run() should return immediately
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eventCh := make(chan Event, 10)
	runErr := m.Run(ctx, eventCh)

	if !errors.Is(runErr, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", runErr)
	}
}

// TestMonitorConcurrentFilterAdd tests for race conditions when adding filters
// concurrently. Run with: go test -race -run TestMonitorConcurrentFilterAdd.
func TestMonitorConcurrentFilterAdd(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Skipf("netlink socket unavailable: %v", err)
	}
	defer func() { _ = m.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.AddSubsystemFilter(SubsystemVideo4Linux)
				m.AddSubsystemFilter("usb")
				m.AddSubsystemFilter("sound")
			}
		}()
	}
	wg.Wait()

	m.filtersMu.RLock()
	if len(m.filters) != 3 {
		t.Errorf("expected 3 filters, got %d", len(m.filters))
	}
	m.filtersMu.RUnlock()
}
