package camera

import "fmt"

// PixelFormat is a generic pixel format code following the GenICam pixel
// format naming convention. The zero value marks a kernel format with no
// generic equivalent.
type PixelFormat uint32

const (
	PixelFormatUnknown PixelFormat = 0

	PixelFormatRGB8    PixelFormat = 0x02180014
	PixelFormatBGR8    PixelFormat = 0x02180015
	PixelFormatYUV4228 PixelFormat = 0x02100032
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatUnknown:
		return "Unknown"
	case PixelFormatRGB8:
		return "RGB8"
	case PixelFormatBGR8:
		return "BGR8"
	case PixelFormatYUV4228:
		return "YUV422_8"
	default:
		return fmt.Sprintf("0x%08x", uint32(f))
	}
}

// ParsePixelFormat resolves a generic pixel format by name.
func ParsePixelFormat(name string) (PixelFormat, error) {
	switch name {
	case "RGB8":
		return PixelFormatRGB8, nil
	case "BGR8":
		return PixelFormatBGR8, nil
	case "YUV422_8":
		return PixelFormatYUV4228, nil
	default:
		return PixelFormatUnknown, fmt.Errorf("unknown pixel format %q", name)
	}
}

// BitsPerPixel extracts the per-pixel bit count encoded in the format code.
func (f PixelFormat) BitsPerPixel() int {
	return int(f >> 16 & 0xff)
}
