package model

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Brownie44l1/plate-api/internal/frame"
	"github.com/Brownie44l1/plate-api/internal/log"
)

// Session is a loaded model that can run forward passes.
type Session interface {
	// Run evaluates the model once on an NCHW float tensor.
	Run(input []float32, shape []int64) (*Output, error)
	// Channels is the channel count the model fixes, or 0 if dynamic.
	Channels() int
	Close() error
}

// Loader loads a Session from a model file.
type Loader interface {
	Load(modelPath string) (Session, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(modelPath string) (Session, error)

func (f LoaderFunc) Load(modelPath string) (Session, error) { return f(modelPath) }

// State is the adapter lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateReleased
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateReleased:
		return "released"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures an Adapter. Zero values pick defaults.
type Options struct {
	// Channels is used when the loaded model does not fix its channel count.
	Channels int
	Decoder  Decoder
	Logger   *slog.Logger
}

// Adapter owns a single model session and turns frames into result strings.
// Infer and Release are serialized; the adapter is safe for concurrent use.
type Adapter struct {
	loader  Loader
	decoder Decoder
	log     *slog.Logger

	mu       sync.Mutex
	state    State
	session  Session
	channels int
	initErr  error
}

func NewAdapter(loader Loader, opts Options) *Adapter {
	if opts.Channels <= 0 {
		opts.Channels = DefaultChannels
	}
	if opts.Logger == nil {
		opts.Logger = log.With("component", "adapter")
	}
	if opts.Decoder == nil {
		opts.Decoder = &PlaceholderDecoder{Logger: opts.Logger}
	}
	return &Adapter{
		loader:   loader,
		decoder:  opts.Decoder,
		log:      opts.Logger,
		channels: opts.Channels,
	}
}

// Initialize loads the model at modelPath. It may be called once; a failure
// leaves the adapter permanently failed.
func (a *Adapter) Initialize(modelPath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateUninitialized {
		return fmt.Errorf("%w (state %s)", ErrAlreadyInitialized, a.state)
	}

	session, err := a.loader.Load(modelPath)
	if err != nil {
		a.state = StateFailed
		a.initErr = fmt.Errorf("%w: %s: %w", ErrInitialization, modelPath, err)
		a.log.Error("model load failed", "path", modelPath, "err", err)
		return a.initErr
	}

	if ch := session.Channels(); ch > 0 {
		if ch != a.channels {
			a.log.Warn("model fixes channel count, overriding configured value",
				"model_channels", ch, "configured", a.channels)
		}
		a.channels = ch
	}

	a.session = session
	a.state = StateReady
	a.log.Info("model loaded", "path", modelPath, "channels", a.channels)
	return nil
}

// Infer runs one forward pass over a planar frame and returns the decoded result.
func (a *Adapter) Infer(buf []byte, width, height int) (result string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateReady:
	case StateFailed:
		return "", fmt.Errorf("%w: %w", ErrNotInitialized, a.initErr)
	default:
		return "", fmt.Errorf("%w (state %s)", ErrNotInitialized, a.state)
	}

	f := frame.Frame{Data: buf, Width: width, Height: height, Channels: a.channels}
	if err := f.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("panic during inference", "panic", r)
			result, err = "", fmt.Errorf("%w: panic: %v", ErrInference, r)
		}
	}()

	out, err := a.session.Run(f.Tensor(), f.Shape())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInference, err)
	}

	result, err = a.decoder.Decode(out)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInference, err)
	}
	return result, nil
}

// Release frees the session. Calling it without an active session is a no-op.
func (a *Adapter) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return nil
	}

	err := a.session.Close()
	a.session = nil
	a.state = StateReleased
	if err != nil {
		return fmt.Errorf("model: release session: %w", err)
	}
	a.log.Info("model released")
	return nil
}

// State reports the lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Err returns the initialization failure, if any.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initErr
}

// Channels is the channel count frames must carry.
func (a *Adapter) Channels() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.channels
}
