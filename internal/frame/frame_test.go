package frame

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		ok    bool
	}{
		{"rgb exact", Frame{Data: make([]byte, 2*3*3), Width: 2, Height: 3, Channels: 3}, true},
		{"gray 1x1", Frame{Data: []byte{255}, Width: 1, Height: 1, Channels: 1}, true},
		{"short buffer", Frame{Data: make([]byte, 5), Width: 2, Height: 1, Channels: 3}, false},
		{"long buffer", Frame{Data: make([]byte, 7), Width: 2, Height: 1, Channels: 3}, false},
		{"zero width", Frame{Data: nil, Width: 0, Height: 1, Channels: 3}, false},
		{"negative height", Frame{Data: nil, Width: 1, Height: -1, Channels: 3}, false},
		{"zero channels", Frame{Data: nil, Width: 1, Height: 1, Channels: 0}, false},
		{"overflow", Frame{Data: nil, Width: math.MaxInt / 2, Height: 3, Channels: 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidFrame)
		})
	}
}

func TestValidateMessageNamesLengths(t *testing.T) {
	err := Frame{Data: make([]byte, 4), Width: 2, Height: 2, Channels: 3}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 12 bytes")
	assert.Contains(t, err.Error(), "got 4")
}

func TestNormalize(t *testing.T) {
	out := Normalize([]byte{0, 255, 51, 255, 0})
	require.Len(t, out, 5)
	assert.Equal(t, float32(0), out[0])
	assert.Equal(t, float32(1), out[1])
	assert.InDelta(t, 0.2, out[2], 1e-6)
	assert.Equal(t, float32(1), out[3])
	assert.Equal(t, float32(0), out[4])
}

func TestNormalizeBounds(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	for i, v := range Normalize(all) {
		if v < 0 || v > 1 {
			t.Fatalf("byte %d normalized to %f, outside [0,1]", i, v)
		}
	}
}

func TestShape(t *testing.T) {
	f := Frame{Width: 640, Height: 480, Channels: 3}
	assert.Equal(t, []int64{1, 3, 480, 640}, f.Shape())
}

func TestFromImageRGBIsPlanar(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img.Set(1, 0, color.RGBA{R: 40, G: 50, B: 60, A: 255})

	f, err := FromImage(img, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Width)
	assert.Equal(t, 1, f.Height)
	assert.Equal(t, []byte{10, 40, 20, 50, 30, 60}, f.Data)
	assert.NoError(t, f.Validate())
}

func TestFromImageGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.SetGray(0, 0, color.Gray{Y: 255})

	f, err := FromImage(img, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{255}, f.Data)
	assert.Equal(t, []float32{1}, f.Tensor())
}

func TestFromImageOffsetBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src.Set(2, 2, color.RGBA{R: 200, A: 255})
	sub := src.SubImage(image.Rect(2, 2, 3, 3))

	f, err := FromImage(sub, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{200, 0, 0}, f.Data)
}

func TestFromImageRejectsChannels(t *testing.T) {
	_, err := FromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)), 4)
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestResize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))

	out := Resize(img, 16, 8)
	assert.Equal(t, 16, out.Bounds().Dx())
	assert.Equal(t, 8, out.Bounds().Dy())

	assert.Same(t, img, Resize(img, 0, 0).(*image.RGBA))
}
