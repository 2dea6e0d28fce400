package frame

import (
	"fmt"
	"image"
	"image/color"

	"github.com/nfnt/resize"
)

// Resize scales img to width x height with Lanczos3. A zero dimension keeps
// the aspect ratio; both zero returns img unchanged.
func Resize(img image.Image, width, height uint) image.Image {
	if width == 0 && height == 0 {
		return img
	}
	return resize.Resize(width, height, img, resize.Lanczos3)
}

// FromImage converts a decoded image into a planar frame.
// One channel yields luma, three channels yield R, G, B planes.
func FromImage(img image.Image, channels int) (Frame, error) {
	if channels != 1 && channels != 3 {
		return Frame{}, fmt.Errorf("%w: unsupported channel count %d", ErrInvalidFrame, channels)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	data := make([]byte, channels*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			idx := y*width + x

			if channels == 1 {
				data[idx] = color.GrayModel.Convert(c).(color.Gray).Y
				continue
			}

			r, g, b, _ := c.RGBA()
			data[idx] = uint8(r >> 8)
			data[plane+idx] = uint8(g >> 8)
			data[2*plane+idx] = uint8(b >> 8)
		}
	}

	return Frame{Data: data, Width: width, Height: height, Channels: channels}, nil
}
