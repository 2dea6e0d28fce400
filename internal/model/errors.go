package model

import "errors"

// Sentinel errors returned by the adapter.
var (
	// ErrNotInitialized is returned when no session is loaded.
	ErrNotInitialized = errors.New("model: session not initialized")

	// ErrAlreadyInitialized is returned by a second Initialize call.
	ErrAlreadyInitialized = errors.New("model: already initialized")

	// ErrInitialization wraps every model loading failure.
	ErrInitialization = errors.New("model: initialization failed")

	// ErrInvalidInput is returned when a frame does not match its dimensions.
	ErrInvalidInput = errors.New("model: invalid input")

	// ErrInference wraps failures during the forward pass or decoding.
	ErrInference = errors.New("model: inference failed")
)

// Error codes reported across the call boundary.
const (
	CodeInferenceError   = "INFERENCE_ERROR"
	CodeInvalidArguments = "INVALID_ARGUMENTS"
)

// Code maps an adapter error to its boundary code.
func Code(err error) string {
	if errors.Is(err, ErrInvalidInput) {
		return CodeInvalidArguments
	}
	return CodeInferenceError
}
