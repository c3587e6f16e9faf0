//go:build linux

package v4l2

import (
	"github.com/videokit/camkit/pkg/camera"
	"github.com/videokit/camkit/pkg/videodev"
)

// Virtual register address space exposed to the configuration layer. The
// addresses and widths are a fixed contract shared with the schema document;
// string registers are 32 bytes, numeric registers are 4-byte host-order
// integers.
const (
	RegDeviceVendorName       = 0x0048
	RegDeviceModelName        = 0x0068
	RegDeviceVersion          = 0x0088
	RegDeviceManufacturerInfo = 0x00a8
	RegDeviceID               = 0x00d8

	RegWidth              = 0x0100
	RegHeight             = 0x0104
	RegPayloadSize        = 0x0118
	RegAcquisitionCommand = 0x0124
	RegPixelFormat        = 0x0128

	StringRegisterLength = 0x20
)

// pixelFormatMap translates kernel pixel format codes to generic codes.
// Kernel formats outside this table are recorded with the zero sentinel and
// excluded from the generated schema.
var pixelFormatMap = []struct {
	kernel  uint32
	generic camera.PixelFormat
}{
	{videodev.PixFmtRGB24, camera.PixelFormatRGB8},
	{videodev.PixFmtBGR24, camera.PixelFormatBGR8},
	{videodev.PixFmtYUYV, camera.PixelFormatYUV4228},
}

func toGenericFormat(kernel uint32) camera.PixelFormat {
	for _, m := range pixelFormatMap {
		if m.kernel == kernel {
			return m.generic
		}
	}
	return camera.PixelFormatUnknown
}
