package model

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ORTLoader loads sessions through ONNX Runtime.
type ORTLoader struct {
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// library's default lookup.
	LibraryPath string
	// IntraOpThreads limits ORT's intra-op pool; 0 leaves ORT's default.
	IntraOpThreads int
	// InputName and OutputName override the names read from the model.
	InputName  string
	OutputName string

	envMu    sync.Mutex
	envOwned bool
}

func (l *ORTLoader) initEnvironment() error {
	l.envMu.Lock()
	defer l.envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if l.LibraryPath != "" {
		ort.SetSharedLibraryPath(l.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	l.envOwned = true
	return nil
}

// Load opens modelPath and builds a dynamic session so any frame size can be fed.
func (l *ORTLoader) Load(modelPath string) (Session, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if err := l.initEnvironment(); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model inputs/outputs: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model has %d inputs and %d outputs, need at least one of each",
			len(inputs), len(outputs))
	}

	inputName := l.InputName
	if inputName == "" {
		inputName = inputs[0].Name
	}
	outputName := l.OutputName
	if outputName == "" {
		outputName = outputs[0].Name
	}

	channels := 0
	for _, in := range inputs {
		if in.Name != inputName {
			continue
		}
		if in.DataType != ort.TensorElementDataTypeFloat {
			return nil, fmt.Errorf("input %q has element type %s, want float32", in.Name, in.DataType)
		}
		if dims := in.Dimensions; len(dims) == 4 && dims[1] > 0 {
			channels = int(dims[1])
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if l.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(l.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputName}, []string{outputName}, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ortSession{session: session, channels: channels}, nil
}

// Close tears down the ONNX environment if this loader created it.
func (l *ORTLoader) Close() error {
	l.envMu.Lock()
	defer l.envMu.Unlock()

	if !l.envOwned {
		return nil
	}
	l.envOwned = false
	return ort.DestroyEnvironment()
}

var _ Session = (*ortSession)(nil)

type ortSession struct {
	session  *ort.DynamicAdvancedSession
	channels int
}

func (s *ortSession) Channels() int { return s.channels }

func (s *ortSession) Run(input []float32, shape []int64) (*Output, error) {
	inputTensor, err := ort.NewTensor(ort.NewShape(shape...), input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// A nil output is allocated by ORT with whatever shape the model produces.
	outputs := []ort.ArbitraryTensor{nil}
	if err := s.session.Run([]ort.ArbitraryTensor{inputTensor}, outputs); err != nil {
		return nil, err
	}
	defer outputs[0].Destroy()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unsupported output type %T, want float32 tensor", outputs[0])
	}

	data := make([]float32, len(outputTensor.GetData()))
	copy(data, outputTensor.GetData())

	return &Output{
		Shape: append([]int64(nil), outputTensor.GetShape()...),
		Data:  data,
	}, nil
}

func (s *ortSession) Close() error {
	return s.session.Destroy()
}
