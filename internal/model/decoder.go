package model

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Brownie44l1/plate-api/internal/log"
)

// PlaceholderResult is what PlaceholderDecoder returns for every frame.
const PlaceholderResult = "Placa detectada: ABC123"

// Decoder turns a raw model output into a result string.
type Decoder interface {
	Decode(out *Output) (string, error)
}

// PlaceholderDecoder stands in for plate-text decoding, which is not
// implemented. It ignores the output values and returns PlaceholderResult.
//
// TODO: replace with a real decoder once the detection model's output
// layout (boxes + text head) is fixed.
type PlaceholderDecoder struct {
	// Logger receives the one-time warning; nil uses the package logger.
	Logger *slog.Logger

	warn sync.Once
}

func (d *PlaceholderDecoder) Decode(out *Output) (string, error) {
	if out == nil {
		return "", errors.New("decoder: nil output")
	}
	d.warn.Do(func() {
		logger := d.Logger
		if logger == nil {
			logger = log.L()
		}
		logger.Warn("plate decoding not implemented, returning placeholder result",
			"output_shape", fmt.Sprint(out.Shape))
	})
	return PlaceholderResult, nil
}
