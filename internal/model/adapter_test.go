package model

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession records every forward pass.
type fakeSession struct {
	mu       sync.Mutex
	channels int
	runErr   error
	panicMsg string
	inputs   [][]float32
	shapes   [][]int64
	closed   int
	inRun    bool
	overlap  bool
}

func (s *fakeSession) Run(input []float32, shape []int64) (*Output, error) {
	s.mu.Lock()
	if s.inRun {
		s.overlap = true
	}
	s.inRun = true
	s.inputs = append(s.inputs, input)
	s.shapes = append(s.shapes, shape)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inRun = false
		s.mu.Unlock()
	}()

	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.runErr != nil {
		return nil, s.runErr
	}
	return &Output{Shape: []int64{1, 4}, Data: []float32{0.1, 0.2, 0.3, 0.4}}, nil
}

func (s *fakeSession) Channels() int { return s.channels }

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAdapter(session *fakeSession, loadErr error) *Adapter {
	loader := LoaderFunc(func(string) (Session, error) {
		if loadErr != nil {
			return nil, loadErr
		}
		return session, nil
	})
	return NewAdapter(loader, Options{Logger: quietLogger()})
}

func TestInferBeforeInitialize(t *testing.T) {
	a := newTestAdapter(&fakeSession{}, nil)

	_, err := a.Infer(make([]byte, 3), 1, 1)
	require.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, CodeInferenceError, Code(err))
	assert.Equal(t, StateUninitialized, a.State())
}

func TestInferReturnsPlaceholder(t *testing.T) {
	s := &fakeSession{}
	a := newTestAdapter(s, nil)
	require.NoError(t, a.Initialize("plate_detection.onnx"))
	assert.Equal(t, StateReady, a.State())

	res, err := a.Infer(make([]byte, 2*2*3), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, PlaceholderResult, res)

	require.Len(t, s.shapes, 1)
	assert.Equal(t, []int64{1, 3, 2, 2}, s.shapes[0])
}

func TestGrayscaleScenario(t *testing.T) {
	s := &fakeSession{channels: 1}
	a := newTestAdapter(s, nil)
	require.NoError(t, a.Initialize("gray.onnx"))
	assert.Equal(t, 1, a.Channels())

	_, err := a.Infer([]byte{255}, 1, 1)
	require.NoError(t, err)

	require.Len(t, s.inputs, 1)
	assert.Equal(t, []float32{1.0}, s.inputs[0])
	assert.Equal(t, []int64{1, 1, 1, 1}, s.shapes[0])
}

func TestInferZeroBytesNormalizeToZero(t *testing.T) {
	s := &fakeSession{}
	a := newTestAdapter(s, nil)
	require.NoError(t, a.Initialize("m.onnx"))

	_, err := a.Infer(make([]byte, 3*4*5), 4, 5)
	require.NoError(t, err)
	for i, v := range s.inputs[0] {
		if v != 0 {
			t.Fatalf("input[%d] = %f, want 0", i, v)
		}
	}
}

func TestInferRejectsMismatchedBuffer(t *testing.T) {
	s := &fakeSession{}
	a := newTestAdapter(s, nil)
	require.NoError(t, a.Initialize("m.onnx"))

	for _, tc := range []struct {
		name    string
		n, w, h int
	}{
		{"short", 5, 2, 1},
		{"long", 100, 2, 2},
		{"zero width", 0, 0, 4},
		{"negative height", 3, 1, -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Infer(make([]byte, tc.n), tc.w, tc.h)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, CodeInvalidArguments, Code(err))
		})
	}
	assert.Empty(t, s.inputs, "session must not run on invalid input")
}

func TestReleaseThenInfer(t *testing.T) {
	s := &fakeSession{}
	a := newTestAdapter(s, nil)
	require.NoError(t, a.Initialize("m.onnx"))
	require.NoError(t, a.Release())

	_, err := a.Infer(make([]byte, 3), 1, 1)
	require.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, StateReleased, a.State())
}

func TestReleaseIdempotent(t *testing.T) {
	s := &fakeSession{}
	a := newTestAdapter(s, nil)

	require.NoError(t, a.Release(), "release before initialize is a no-op")
	assert.Equal(t, StateUninitialized, a.State())

	require.NoError(t, a.Initialize("m.onnx"))
	require.NoError(t, a.Release())
	require.NoError(t, a.Release())

	assert.Equal(t, 1, s.closed)
	assert.Equal(t, StateReleased, a.State())
}

func TestInitializeFailureIsPermanent(t *testing.T) {
	cause := errors.New("protobuf parsing failed")
	a := newTestAdapter(nil, cause)

	err := a.Initialize("corrupt.onnx")
	require.ErrorIs(t, err, ErrInitialization)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, StateFailed, a.State())
	assert.ErrorIs(t, a.Err(), cause)

	_, err = a.Infer([]byte{1, 2, 3}, 1, 1)
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "corrupt.onnx")

	assert.ErrorIs(t, a.Initialize("corrupt.onnx"), ErrAlreadyInitialized)
}

func TestInitializeTwice(t *testing.T) {
	a := newTestAdapter(&fakeSession{}, nil)
	require.NoError(t, a.Initialize("m.onnx"))
	assert.ErrorIs(t, a.Initialize("m.onnx"), ErrAlreadyInitialized)

	require.NoError(t, a.Release())
	assert.ErrorIs(t, a.Initialize("m.onnx"), ErrAlreadyInitialized)
}

func TestInferSessionError(t *testing.T) {
	s := &fakeSession{runErr: errors.New("shape mismatch on input 'images'")}
	a := newTestAdapter(s, nil)
	require.NoError(t, a.Initialize("m.onnx"))

	_, err := a.Infer(make([]byte, 3), 1, 1)
	require.ErrorIs(t, err, ErrInference)
	assert.Contains(t, err.Error(), "shape mismatch")
	assert.Equal(t, CodeInferenceError, Code(err))
	assert.Equal(t, StateReady, a.State(), "no recovery or state change after a failed pass")
}

func TestInferRecoversPanic(t *testing.T) {
	s := &fakeSession{panicMsg: "boom"}
	a := newTestAdapter(s, nil)
	require.NoError(t, a.Initialize("m.onnx"))

	_, err := a.Infer(make([]byte, 3), 1, 1)
	require.ErrorIs(t, err, ErrInference)
	assert.Contains(t, err.Error(), "boom")

	// The mutex must have been released by the deferred unlock.
	assert.Equal(t, StateReady, a.State())
}

type failingDecoder struct{}

func (failingDecoder) Decode(*Output) (string, error) { return "", errors.New("no detections") }

func TestInferDecoderError(t *testing.T) {
	loader := LoaderFunc(func(string) (Session, error) { return &fakeSession{}, nil })
	a := NewAdapter(loader, Options{Decoder: failingDecoder{}, Logger: quietLogger()})
	require.NoError(t, a.Initialize("m.onnx"))

	_, err := a.Infer(make([]byte, 3), 1, 1)
	assert.ErrorIs(t, err, ErrInference)
}

func TestConcurrentInferIsSerialized(t *testing.T) {
	s := &fakeSession{}
	a := newTestAdapter(s, nil)
	require.NoError(t, a.Initialize("m.onnx"))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = a.Infer(make([]byte, 3*8*8), 8, 8)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = a.Release()
	}()
	wg.Wait()

	assert.False(t, s.overlap, "forward passes overlapped")
	assert.Equal(t, 1, s.closed)

	_, err := a.Infer(make([]byte, 3*8*8), 8, 8)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestPlaceholderDecoderNilOutput(t *testing.T) {
	_, err := (&PlaceholderDecoder{}).Decode(nil)
	assert.Error(t, err)
}

func TestPlaceholderWarningUsesAdapterLogger(t *testing.T) {
	var buf bytes.Buffer
	loader := LoaderFunc(func(string) (Session, error) { return &fakeSession{}, nil })
	a := NewAdapter(loader, Options{Logger: slog.New(slog.NewTextHandler(&buf, nil))})
	require.NoError(t, a.Initialize("m.onnx"))

	for i := 0; i < 2; i++ {
		_, err := a.Infer(make([]byte, 3), 1, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, strings.Count(buf.String(), "plate decoding not implemented"))
}
