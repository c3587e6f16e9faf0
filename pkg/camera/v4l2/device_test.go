//go:build linux

package v4l2

import (
	"encoding/binary"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videokit/camkit/pkg/camera"
	"github.com/videokit/camkit/pkg/genicam"
	"github.com/videokit/camkit/pkg/videodev"
)

func newTestDevice(t *testing.T, p port) *Device {
	t.Helper()
	d, err := newDevice(p, "/dev/video9")
	require.NoError(t, err)
	return d
}

func readU32(t *testing.T, d *Device, address uint64) uint32 {
	t.Helper()
	var data [4]byte
	require.NoError(t, d.ReadRegister(address, data[:]))
	return binary.NativeEndian.Uint32(data[:])
}

func writeU32(d *Device, address uint64, value uint32) error {
	var data [4]byte
	binary.NativeEndian.PutUint32(data[:], value)
	return d.WriteRegister(address, data[:])
}

func TestDeviceConstruction(t *testing.T) {
	f := newFakePort()
	d := newTestDevice(t, f)

	// Maxima across both enumerated formats.
	assert.Equal(t, uint32(640), d.sensorWidth)
	assert.Equal(t, uint32(480), d.sensorHeight)

	// Both formats recorded in kernel order; first supported one active.
	require.Len(t, d.formats, 2)
	assert.Equal(t, camera.PixelFormatRGB8, d.formats[0].genericCode)
	assert.Equal(t, camera.PixelFormatYUV4228, d.formats[1].genericCode)
	assert.Equal(t, 0, d.activeFormat)
}

func TestDeviceNotACaptureDevice(t *testing.T) {
	f := newFakePort()
	f.cap.Capabilities = videodev.CapStreaming

	_, err := newDevice(f, "/dev/video9")
	assert.ErrorIs(t, err, camera.ErrNotFound)
}

func TestDeviceNoSupportedFormat(t *testing.T) {
	f := newFakePort()
	f.formats = []videodev.FormatDesc{
		{Index: 0, PixelFormat: videodev.PixFmtMJPEG, Description: "Motion-JPEG"},
	}

	_, err := newDevice(f, "/dev/video9")
	assert.ErrorIs(t, err, camera.ErrNotFound)
}

func TestDeviceEnumerationFailureAborts(t *testing.T) {
	f := newFakePort()
	f.enumSizesErr = syscall.EIO

	_, err := newDevice(f, "/dev/video9")
	assert.ErrorIs(t, err, camera.ErrProtocol)
}

func TestUnsupportedFormatKeptAsSentinel(t *testing.T) {
	f := newFakePort()
	f.formats = append([]videodev.FormatDesc{
		{Index: 0, PixelFormat: videodev.PixFmtMJPEG, Description: "Motion-JPEG"},
	}, f.formats...)

	d := newTestDevice(t, f)

	// The unknown format stays in the table with the zero sentinel and the
	// first supported format becomes active.
	require.Len(t, d.formats, 3)
	assert.Equal(t, camera.PixelFormatUnknown, d.formats[0].genericCode)
	assert.Equal(t, 1, d.activeFormat)

	schema, err := d.Schema()
	require.NoError(t, err)
	doc, err := genicam.Parse(schema)
	require.NoError(t, err)
	assert.True(t, doc.HasNode("PixelFormat"))
	assert.NotContains(t, string(schema), "Motion-JPEG")
}

func TestSchemaPatched(t *testing.T) {
	f := newFakePort()
	d := newTestDevice(t, f)

	schema, err := d.Schema()
	require.NoError(t, err)

	doc, err := genicam.Parse(schema)
	require.NoError(t, err)
	assert.True(t, doc.HasNode("SensorWidth"))
	assert.True(t, doc.HasNode("SensorHeight"))
	assert.True(t, doc.HasNode("PixelFormat"))
	assert.True(t, doc.HasNode("PixelFormatRegister"))

	text := string(schema)
	assert.Contains(t, text, "<Value>640</Value>")
	assert.Contains(t, text, "<Value>480</Value>")
	assert.Contains(t, text, "<Value>0x02180014</Value>")
	assert.Contains(t, text, "<Value>0x02100032</Value>")
}

func TestIdentityStringTruncation(t *testing.T) {
	f := newFakePort()
	d := newTestDevice(t, f)

	// A short read keeps at most len-1 content bytes plus the terminator.
	data := make([]byte, 4)
	require.NoError(t, d.ReadRegister(RegDeviceVendorName, data))
	assert.Equal(t, []byte{'u', 'v', 'c', 0}, data)

	// A long read null-terminates and zero-fills the rest.
	data = make([]byte, StringRegisterLength)
	require.NoError(t, d.ReadRegister(RegDeviceModelName, data))
	assert.Equal(t, "Fake Camera", string(data[:11]))
	for _, b := range data[11:] {
		assert.Zero(t, b)
	}
}

func TestNumericRegisterReads(t *testing.T) {
	f := newFakePort()
	d := newTestDevice(t, f)

	assert.Equal(t, uint32(640), readU32(t, d, RegWidth))
	assert.Equal(t, uint32(480), readU32(t, d, RegHeight))
	assert.Equal(t, uint32(camera.PixelFormatRGB8), readU32(t, d, RegPixelFormat))
	assert.Equal(t, uint32(640*480*2), readU32(t, d, RegPayloadSize))
}

func TestInvalidRegisterAccess(t *testing.T) {
	f := newFakePort()
	d := newTestDevice(t, f)

	// Unknown address.
	err := d.ReadRegister(0x9999, make([]byte, 4))
	assert.ErrorIs(t, err, camera.ErrInvalidAddress)

	// Numeric register with the wrong width.
	err = d.ReadRegister(RegWidth, make([]byte, 8))
	assert.ErrorIs(t, err, camera.ErrInvalidAddress)

	// Writes only accept four bytes.
	err = d.WriteRegister(RegPixelFormat, make([]byte, 2))
	assert.ErrorIs(t, err, camera.ErrInvalidAddress)

	// Read-only address.
	err = writeU32(d, RegWidth, 100)
	assert.ErrorIs(t, err, camera.ErrInvalidAddress)
}

func TestPixelFormatRegisterRoundTrip(t *testing.T) {
	f := newFakePort()
	d := newTestDevice(t, f)

	require.NoError(t, writeU32(d, RegPixelFormat, uint32(camera.PixelFormatYUV4228)))
	assert.Equal(t, uint32(camera.PixelFormatYUV4228), readU32(t, d, RegPixelFormat))
	assert.Equal(t, 1, d.activeFormat)

	// The register now reflects the second format's frame size.
	assert.Equal(t, uint32(320), readU32(t, d, RegWidth))
}

func TestPixelFormatRegisterRejectsUnknown(t *testing.T) {
	f := newFakePort()
	d := newTestDevice(t, f)

	err := writeU32(d, RegPixelFormat, 0xdeadbeef)
	assert.ErrorIs(t, err, camera.ErrInvalidAddress)
	assert.Equal(t, 0, d.activeFormat)

	// The zero sentinel never matches an unsupported table entry.
	err = writeU32(d, RegPixelFormat, 0)
	assert.ErrorIs(t, err, camera.ErrInvalidAddress)
}

func TestAcquisitionCommandRegister(t *testing.T) {
	f := newFakePort()
	d := newTestDevice(t, f)

	require.NoError(t, writeU32(d, RegAcquisitionCommand, 1))
	assert.True(t, f.streaming)

	require.NoError(t, writeU32(d, RegAcquisitionCommand, 0))
	assert.False(t, f.streaming)

	f.streamOnErr = syscall.EIO
	err := writeU32(d, RegAcquisitionCommand, 1)
	assert.ErrorIs(t, err, camera.ErrProtocol)
}

func TestImageInfoIdempotent(t *testing.T) {
	f := newFakePort()
	d := newTestDevice(t, f)

	first, err := d.ImageInfo()
	require.NoError(t, err)
	second, err := d.ImageInfo()
	require.NoError(t, err)

	assert.Equal(t, first.PayloadSize, second.PayloadSize)
	assert.Equal(t, uint32(640), first.Width)
	assert.Equal(t, uint32(480), first.Height)
	assert.Equal(t, camera.PixelFormatRGB8, first.PixelFormat)
}

func TestDeviceCloseOnce(t *testing.T) {
	f := newFakePort()
	d := newTestDevice(t, f)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.True(t, f.closed)
}
