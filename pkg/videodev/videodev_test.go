//go:build linux

package videodev

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFourCC(t *testing.T) {
	tests := []struct {
		name string
		code uint32
		tag  string
	}{
		{"rgb24", PixFmtRGB24, "RGB3"},
		{"bgr24", PixFmtBGR24, "BGR3"},
		{"yuyv", PixFmtYUYV, "YUYV"},
		{"mjpeg", PixFmtMJPEG, "MJPG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.tag, FourCCString(tt.code))
			assert.Equal(t, tt.code, FourCC(tt.tag[0], tt.tag[1], tt.tag[2], tt.tag[3]))
		})
	}
}

func TestFourCCKnownValues(t *testing.T) {
	// Values from <linux/videodev2.h>.
	assert.Equal(t, uint32(0x56595559), PixFmtYUYV)
	assert.Equal(t, uint32(0x33424752), PixFmtRGB24)
}

func TestCstr(t *testing.T) {
	assert.Equal(t, "uvcvideo", cstr([]byte("uvcvideo\x00\x00\x00")))
	assert.Equal(t, "", cstr([]byte{0, 'x'}))
	assert.Equal(t, "abc", cstr([]byte("abc")))
}

func TestCapabilityCaps(t *testing.T) {
	c := &Capability{Capabilities: CapVideoCapture | CapStreaming}
	assert.Equal(t, uint32(CapVideoCapture|CapStreaming), c.Caps())

	// Per-node caps take over when the device advertises them.
	c = &Capability{
		Capabilities: CapDeviceCaps | CapVideoCapture | CapStreaming,
		DeviceCaps:   CapVideoCapture,
	}
	assert.Equal(t, uint32(CapVideoCapture), c.Caps())
}

func TestMakeTimeval(t *testing.T) {
	tv := makeTimeval(2500)
	require.NotNil(t, tv)
	assert.EqualValues(t, 2, tv.Sec)
	assert.EqualValues(t, 500000, tv.Usec)
}

func pipeHandle(t *testing.T) (*Handle, int) {
	t.Helper()
	fds := make([]int, 2)
	require.NoError(t, syscall.Pipe(fds))
	t.Cleanup(func() {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
	})
	return &Handle{fd: fds[0], path: "pipe"}, fds[1]
}

func TestWaitFrameTimeout(t *testing.T) {
	h, _ := pipeHandle(t)

	start := time.Now()
	status, err := h.WaitFrame(50 * time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, WaitTimeout, status)
	// The wait is bounded by the deadline taken at entry, so even with
	// retries it must not run far past the requested timeout.
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestWaitFrameReady(t *testing.T) {
	h, w := pipeHandle(t)

	_, err := syscall.Write(w, []byte{1})
	require.NoError(t, err)

	status, err := h.WaitFrame(time.Second)
	require.NoError(t, err)
	assert.Equal(t, WaitReady, status)
}

func TestWaitFrameZeroTimeout(t *testing.T) {
	h, _ := pipeHandle(t)

	status, err := h.WaitFrame(0)
	require.NoError(t, err)
	assert.Equal(t, WaitTimeout, status)
}
