//go:build linux

package v4l2

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "embed"

	"github.com/videokit/camkit/internal/logging"
	"github.com/videokit/camkit/pkg/camera"
	"github.com/videokit/camkit/pkg/genicam"
	"github.com/videokit/camkit/pkg/videodev"
)

//go:embed schema/v4l2.xml
var baseSchema []byte

// port is the slice of the videodev API the adapter and its streams use.
// *videodev.Handle implements it; tests substitute a fake.
type port interface {
	Capability() (*videodev.Capability, error)
	EnumFormats() ([]videodev.FormatDesc, error)
	EnumFrameSizes(pixelFormat uint32) ([]videodev.FrameSize, error)
	SetFormat(pf *videodev.PixFormat) error
	Format() (*videodev.PixFormat, error)
	RequestBuffers(count uint32) (uint32, error)
	QueryBuffer(index uint32) (videodev.BufferInfo, error)
	MapBuffer(info videodev.BufferInfo) ([]byte, error)
	UnmapBuffer(data []byte) error
	QueueBuffer(index uint32) error
	DequeueBuffer() (videodev.DoneBuffer, error)
	StreamOn() error
	StreamOff() error
	WaitFrame(timeout time.Duration) (videodev.WaitStatus, error)
	Close() error
}

// formatEntry is one row of the adapter's pixel format table. Entries keep
// the kernel enumeration order; unsupported kernel formats stay in the table
// with the zero generic code so indices remain stable.
type formatEntry struct {
	kernelCode  uint32
	genericCode camera.PixelFormat
	description string
	frameSize   videodev.FrameSize
}

// Device adapts a kernel capture device to the camera.Device register
// contract. All identity, format table and schema state is built once at
// construction and immutable afterward; only the active format index changes
// at runtime.
type Device struct {
	port port
	path string
	log  *slog.Logger

	driver  string
	card    string
	version string
	busInfo string

	formats      []formatEntry
	activeFormat int

	sensorWidth  uint32
	sensorHeight uint32

	schema []byte

	mu        sync.Mutex
	closeOnce sync.Once
}

var _ camera.Device = (*Device)(nil)

// Open constructs an adapter for the device node at path. Construction is
// all-or-nothing: capability probing, format enumeration and schema patching
// either all succeed or the device is closed again and an error returned.
func Open(path string) (*Device, error) {
	h, err := videodev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", camera.ErrNotFound, err)
	}
	d, err := newDevice(h, path)
	if err != nil {
		h.Close()
		return nil, err
	}
	return d, nil
}

func newDevice(p port, path string) (*Device, error) {
	d := &Device{
		port:         p,
		path:         path,
		log:          logging.GetLogger("camera.v4l2").With("device", path),
		activeFormat: -1,
	}

	cap, err := p.Capability()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", camera.ErrNotFound, err)
	}
	if cap.Caps()&videodev.CapVideoCapture == 0 {
		return nil, fmt.Errorf("%w: %s is not a capture device", camera.ErrNotFound, path)
	}
	d.driver = cap.Driver
	d.card = cap.Card
	d.version = cap.Version
	d.busInfo = cap.BusInfo

	doc, err := genicam.Parse(baseSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", camera.ErrSchemaNotFound, err)
	}

	if err := d.enumerateFormats(); err != nil {
		return nil, err
	}
	if d.activeFormat < 0 {
		return nil, fmt.Errorf("%w: %s exposes no supported pixel format", camera.ErrNotFound, path)
	}

	if err := d.patchSchema(doc); err != nil {
		return nil, fmt.Errorf("%w: %s", camera.ErrSchemaNotFound, err)
	}

	d.log.Info("device opened",
		"driver", d.driver,
		"card", d.card,
		"formats", len(d.formats),
		"sensor_width", d.sensorWidth,
		"sensor_height", d.sensorHeight)

	return d, nil
}

// enumerateFormats fills the format table in kernel order and derives the
// sensor geometry from the maxima across all supported formats. The initial
// active format is the first supported entry whose frame size enumeration
// produced at least one entry.
func (d *Device) enumerateFormats() error {
	descs, err := d.port.EnumFormats()
	if err != nil {
		return fmt.Errorf("%w: %s", camera.ErrProtocol, err)
	}

	for _, desc := range descs {
		entry := formatEntry{
			kernelCode:  desc.PixelFormat,
			genericCode: toGenericFormat(desc.PixelFormat),
			description: desc.Description,
		}
		if entry.genericCode == camera.PixelFormatUnknown {
			d.log.Warn("ignoring unsupported pixel format",
				"fourcc", videodev.FourCCString(desc.PixelFormat),
				"description", desc.Description)
			d.formats = append(d.formats, entry)
			continue
		}

		sizes, err := d.port.EnumFrameSizes(desc.PixelFormat)
		if err != nil {
			return fmt.Errorf("%w: %s", camera.ErrProtocol, err)
		}
		for i, size := range sizes {
			if i == 0 {
				entry.frameSize = size
			}
			w, h := maxFrameSize(size)
			if w > d.sensorWidth {
				d.sensorWidth = w
			}
			if h > d.sensorHeight {
				d.sensorHeight = h
			}
		}

		d.formats = append(d.formats, entry)
		if d.activeFormat < 0 && len(sizes) > 0 {
			d.activeFormat = len(d.formats) - 1
		}
	}

	return nil
}

func maxFrameSize(s videodev.FrameSize) (uint32, uint32) {
	if s.Type == videodev.FrameSizeDiscrete {
		return s.Width, s.Height
	}
	return s.MaxWidth, s.MaxHeight
}

// patchSchema injects the computed sensor geometry and the pixel format
// enumeration into the base schema document.
func (d *Device) patchSchema(doc *genicam.Document) error {
	doc.SetDefaultNode("SensorWidth", fmt.Sprintf(
		"<Integer Name=\"SensorWidth\" NameSpace=\"Standard\">\n"+
			"<Value>%d</Value>\n<AccessMode>RO</AccessMode>\n</Integer>", d.sensorWidth))
	doc.SetDefaultNode("SensorHeight", fmt.Sprintf(
		"<Integer Name=\"SensorHeight\" NameSpace=\"Standard\">\n"+
			"<Value>%d</Value>\n<AccessMode>RO</AccessMode>\n</Integer>", d.sensorHeight))

	entries := ""
	for _, f := range d.formats {
		if f.genericCode == camera.PixelFormatUnknown {
			continue
		}
		entries += fmt.Sprintf(
			"<EnumEntry Name=\"%s\">\n<Value>0x%08x</Value>\n</EnumEntry>\n",
			f.genericCode, uint32(f.genericCode))
	}
	doc.SetDefaultNode("PixelFormat", fmt.Sprintf(
		"<Enumeration Name=\"PixelFormat\" NameSpace=\"Standard\">\n%s"+
			"<pValue>PixelFormatRegister</pValue>\n</Enumeration>", entries))

	schema, err := doc.XML()
	if err != nil {
		return err
	}
	d.schema = schema
	return nil
}

// Schema returns the patched feature description document.
func (d *Device) Schema() ([]byte, error) {
	return d.schema, nil
}

// Path returns the device node path.
func (d *Device) Path() string { return d.path }

// ReadRegister resolves a virtual register read. Identity string registers
// accept any length and truncate to fit; numeric registers require exactly
// four bytes.
func (d *Device) ReadRegister(address uint64, data []byte) error {
	switch address {
	case RegDeviceVendorName:
		return copyString(data, d.driver)
	case RegDeviceModelName:
		return copyString(data, d.card)
	case RegDeviceVersion:
		return copyString(data, d.version)
	case RegDeviceManufacturerInfo:
		return copyString(data, d.busInfo)
	case RegDeviceID:
		return copyString(data, d.path)
	}

	if len(data) != 4 {
		return fmt.Errorf("%w: read 0x%04x with length %d", camera.ErrInvalidAddress, address, len(data))
	}

	d.mu.Lock()
	entry := d.formats[d.activeFormat]
	d.mu.Unlock()

	switch address {
	case RegWidth:
		w, _ := maxFrameSize(entry.frameSize)
		binary.NativeEndian.PutUint32(data, w)
	case RegHeight:
		_, h := maxFrameSize(entry.frameSize)
		binary.NativeEndian.PutUint32(data, h)
	case RegPayloadSize:
		info, err := d.ImageInfo()
		if err != nil {
			return err
		}
		binary.NativeEndian.PutUint32(data, info.PayloadSize)
	case RegPixelFormat:
		binary.NativeEndian.PutUint32(data, uint32(entry.genericCode))
	default:
		return fmt.Errorf("%w: read 0x%04x", camera.ErrInvalidAddress, address)
	}
	return nil
}

// WriteRegister resolves a virtual register write. Only the acquisition
// command and pixel format registers are writable, with 4-byte values.
func (d *Device) WriteRegister(address uint64, data []byte) error {
	if len(data) != 4 {
		return fmt.Errorf("%w: write 0x%04x with length %d", camera.ErrInvalidAddress, address, len(data))
	}
	value := binary.NativeEndian.Uint32(data)

	switch address {
	case RegAcquisitionCommand:
		if value != 0 {
			if err := d.port.StreamOn(); err != nil {
				return fmt.Errorf("%w: %s", camera.ErrProtocol, err)
			}
			d.log.Debug("kernel stream started")
		} else {
			if err := d.port.StreamOff(); err != nil {
				return fmt.Errorf("%w: %s", camera.ErrProtocol, err)
			}
			d.log.Debug("kernel stream stopped")
		}
		return nil

	case RegPixelFormat:
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, f := range d.formats {
			if f.genericCode != camera.PixelFormatUnknown && uint32(f.genericCode) == value {
				d.activeFormat = i
				return nil
			}
		}
		return fmt.Errorf("%w: pixel format 0x%08x not supported", camera.ErrInvalidAddress, value)

	default:
		return fmt.Errorf("%w: write 0x%04x", camera.ErrInvalidAddress, address)
	}
}

// ImageInfo describes the negotiated capture geometry and payload size.
type ImageInfo struct {
	PayloadSize uint32
	PixelFormat camera.PixelFormat
	Width       uint32
	Height      uint32
}

// ImageInfo negotiates the active format with the kernel and reads back the
// authoritative result. The kernel may adjust geometry and payload size, so
// the returned values take precedence over the enumerated ones.
func (d *Device) ImageInfo() (*ImageInfo, error) {
	d.mu.Lock()
	entry := d.formats[d.activeFormat]
	d.mu.Unlock()

	w, h := maxFrameSize(entry.frameSize)
	req := videodev.PixFormat{
		Width:       w,
		Height:      h,
		PixelFormat: entry.kernelCode,
	}
	if err := d.port.SetFormat(&req); err != nil {
		return nil, fmt.Errorf("%w: %s", camera.ErrProtocol, err)
	}

	got, err := d.port.Format()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", camera.ErrProtocol, err)
	}

	generic := toGenericFormat(got.PixelFormat)
	if generic == camera.PixelFormatUnknown {
		generic = entry.genericCode
	}
	return &ImageInfo{
		PayloadSize: got.SizeImage,
		PixelFormat: generic,
		Width:       got.Width,
		Height:      got.Height,
	}, nil
}

// CreateStream builds a capture engine bound to this adapter's descriptor.
// The engine never closes the descriptor; Close the adapter only after
// stopping all its streams.
func (d *Device) CreateStream(callback camera.StreamCallback) (camera.Stream, error) {
	return newStream(d, callback), nil
}

// Close releases the kernel descriptor. Safe to call more than once.
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = d.port.Close()
	})
	return err
}

// copyString copies a null-terminated string into data, truncating to fit.
// At most len(data)-1 content bytes are written; the remainder is zeroed.
func copyString(data []byte, s string) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: zero-length string read", camera.ErrInvalidAddress)
	}
	n := copy(data[:len(data)-1], s)
	for i := n; i < len(data); i++ {
		data[i] = 0
	}
	return nil
}
