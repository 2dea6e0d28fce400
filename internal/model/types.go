package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// DefaultChannels is used when neither the model nor the metadata fixes it.
const DefaultChannels = 3

// Metadata describes how frames are fed to the model. It is read from an
// optional JSON file next to the model.
type Metadata struct {
	InputName  string `json:"input_name,omitempty"`
	OutputName string `json:"output_name,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	ImageSize  int    `json:"image_size,omitempty"`
}

// Output is a copied float32 model output.
type Output struct {
	Shape []int64
	Data  []float32
}

// LoadMetadata reads metadata from path. A missing file yields defaults.
func LoadMetadata(path string) (Metadata, error) {
	meta := Metadata{Channels: DefaultChannels}
	if path == "" {
		return meta, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata: %w", err)
	}

	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if meta.Channels == 0 {
		meta.Channels = DefaultChannels
	}
	if meta.Channels != 1 && meta.Channels != 3 {
		return meta, fmt.Errorf("metadata: unsupported channel count %d", meta.Channels)
	}
	if meta.ImageSize < 0 {
		return meta, fmt.Errorf("metadata: negative image size %d", meta.ImageSize)
	}
	return meta, nil
}
