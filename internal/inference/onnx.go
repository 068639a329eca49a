package inference

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/buddywatch/internal/config"
)

// ONNXModel runs the face model through ONNX Runtime.
// The model takes [1, size, size, 3] and yields confidence [1,1] and bbox [1,4].
// Tensors are bound to the session, so runs are serialised.
type ONNXModel struct {
	mu            sync.Mutex
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
}

var _ Model = (*ONNXModel)(nil)

// NewONNXModel loads the model. ort.InitializeEnvironment must have been called.
// opts may be nil.
func NewONNXModel(cfg config.InferenceConfig, opts *ort.SessionOptions) (*ONNXModel, error) {
	if len(cfg.OutputNames) != 2 {
		return nil, fmt.Errorf("model needs 2 output names, got %d", len(cfg.OutputNames))
	}
	size := int64(cfg.InputSize)

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, size, size, 3))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	shapes := []ort.Shape{ort.NewShape(1, 1), ort.NewShape(1, 4)}
	outputTensors := make([]*ort.Tensor[float32], len(shapes))
	outputValues := make([]ort.Value, len(shapes))
	for i, shape := range shapes {
		t, err := ort.NewEmptyTensor[float32](shape)
		if err != nil {
			for j := 0; j < i; j++ {
				outputTensors[j].Destroy()
			}
			inputTensor.Destroy()
			return nil, fmt.Errorf("create output tensor %s: %w", cfg.OutputNames[i], err)
		}
		outputTensors[i] = t
		outputValues[i] = t
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName},
		cfg.OutputNames,
		[]ort.Value{inputTensor},
		outputValues,
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		for _, t := range outputTensors {
			t.Destroy()
		}
		return nil, fmt.Errorf("create model session: %w", err)
	}

	return &ONNXModel{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: outputTensors,
	}, nil
}

func (m *ONNXModel) Run(input []float32) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in := m.inputTensor.GetData()
	if len(input) != len(in) {
		return nil, fmt.Errorf("input has %d values, model wants %d", len(input), len(in))
	}
	copy(in, input)

	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}

	heads := make([][]float32, len(m.outputTensors))
	for i, t := range m.outputTensors {
		heads[i] = append([]float32(nil), t.GetData()...)
	}
	return heads, nil
}

func (m *ONNXModel) Close() {
	if m.session != nil {
		m.session.Destroy()
	}
	if m.inputTensor != nil {
		m.inputTensor.Destroy()
	}
	for _, t := range m.outputTensors {
		t.Destroy()
	}
}
