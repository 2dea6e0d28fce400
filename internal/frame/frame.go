// Package frame holds raw camera frames and turns them into model-ready tensors.
package frame

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidFrame is returned when a frame's buffer does not match its dimensions.
var ErrInvalidFrame = errors.New("frame: invalid frame")

// Frame is a planar (channel-major) pixel buffer.
type Frame struct {
	Data     []byte
	Width    int
	Height   int
	Channels int
}

// ExpectedLen returns Width*Height*Channels, or false if a dimension is
// non-positive or the product overflows int.
func (f Frame) ExpectedLen() (int, bool) {
	if f.Width <= 0 || f.Height <= 0 || f.Channels <= 0 {
		return 0, false
	}
	n := f.Width
	for _, d := range []int{f.Height, f.Channels} {
		if n > math.MaxInt/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}

// Validate checks dimensions and buffer length.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %dx%d", ErrInvalidFrame, f.Width, f.Height)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("%w: channel count must be positive, got %d", ErrInvalidFrame, f.Channels)
	}
	want, ok := f.ExpectedLen()
	if !ok {
		return fmt.Errorf("%w: %dx%dx%d overflows", ErrInvalidFrame, f.Width, f.Height, f.Channels)
	}
	if len(f.Data) != want {
		return fmt.Errorf("%w: expected %d bytes (%d channels × %d × %d), got %d",
			ErrInvalidFrame, want, f.Channels, f.Height, f.Width, len(f.Data))
	}
	return nil
}

// Shape is the NCHW tensor shape with a batch of one.
func (f Frame) Shape() []int64 {
	return []int64{1, int64(f.Channels), int64(f.Height), int64(f.Width)}
}

// Tensor returns the normalized pixel data.
func (f Frame) Tensor() []float32 {
	return Normalize(f.Data)
}

// Normalize maps each byte to [0, 1] by dividing by 255.
func Normalize(b []byte) []float32 {
	out := make([]float32, len(b))
	for i, v := range b {
		out[i] = float32(v) / 255.0
	}
	return out
}
