package score

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Runtime wraps the shared ONNX runtime environment. The library path is
// explicit configuration; initialization happens once per process and is
// torn down by Destroy.
type Runtime struct {
	LibraryPath string

	once    sync.Once
	initErr error
}

// NewRuntime returns an uninitialized runtime for the given shared library
// (e.g. /usr/lib/libonnxruntime.so). Initialization is deferred to the
// first Open call.
func NewRuntime(libraryPath string) *Runtime {
	return &Runtime{LibraryPath: libraryPath}
}

func (r *Runtime) init() error {
	r.once.Do(func() {
		if r.LibraryPath != "" {
			ort.SetSharedLibraryPath(r.LibraryPath)
		}
		r.initErr = ort.InitializeEnvironment()
	})
	return r.initErr
}

// Destroy tears the runtime environment down. Call after all models built
// from this runtime are closed.
func (r *Runtime) Destroy() error {
	return ort.DestroyEnvironment()
}

// ONNX runs an exported binary classifier through onnxruntime. The session
// holds a fixed [1,N] float32 input tensor and a [1,2] probability output;
// Predict returns the positive-class probability.
type ONNX struct {
	features []string
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	output   *ort.Tensor[float32]
}

// Open creates a scoring session for the model at path expecting the given
// ordered feature list.
func (r *Runtime) Open(path string, features []string) (*ONNX, error) {
	if err := r.init(); err != nil {
		return nil, fmt.Errorf("onnx runtime: %w", err)
	}

	n := int64(len(features))
	input, err := ort.NewTensor(ort.NewShape(1, n), make([]float32, n))
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{"input"}, []string{"probabilities"},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("open session %s: %w", path, err)
	}

	return &ONNX{
		features: append([]string(nil), features...),
		session:  session,
		input:    input,
		output:   output,
	}, nil
}

func (m *ONNX) Features() []string { return m.features }

func (m *ONNX) Predict(values []float64) (float64, error) {
	if err := checkRow(m.features, values); err != nil {
		return 0, err
	}

	data := m.input.GetData()
	for i, v := range values {
		data[i] = float32(v)
	}

	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("inference: %w", err)
	}

	// index 1 is the positive class
	return float64(m.output.GetData()[1]), nil
}

func (m *ONNX) Close() error {
	if m.session != nil {
		m.session.Destroy()
	}
	if m.input != nil {
		m.input.Destroy()
	}
	if m.output != nil {
		m.output.Destroy()
	}
	return nil
}
