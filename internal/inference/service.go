// Package inference serves the face-detection predict operation.
package inference

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/your-org/buddywatch/internal/errs"
	"github.com/your-org/buddywatch/internal/models"
	"github.com/your-org/buddywatch/internal/observability"
)

// Model runs one forward pass over a preprocessed input and returns its raw
// output heads: heads[0] holds the confidence, heads[1] the bbox.
type Model interface {
	Run(input []float32) ([][]float32, error)
}

type Service struct {
	model     Model
	inputSize int
}

func NewService(model Model, inputSize int) *Service {
	return &Service{model: model, inputSize: inputSize}
}

// Predict scores a single image. It is stateless; nothing is stored.
func (s *Service) Predict(ctx context.Context, principal string, image []byte) (*models.Prediction, error) {
	if principal == "" {
		return nil, errs.ErrUnauthenticated
	}

	start := time.Now()
	input, err := Preprocess(image, s.inputSize)
	observability.InferenceDuration.WithLabelValues(errs.StagePreprocess).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, errs.AtStage(errs.StagePreprocess, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	heads, err := s.model.Run(input)
	observability.InferenceDuration.WithLabelValues(errs.StageInference).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, errs.AtStage(errs.StageInference, fmt.Errorf("%w: %w", errs.ErrModelOutput, err))
	}

	p, err := interpret(heads)
	if err != nil {
		return nil, errs.AtStage(errs.StageInference, err)
	}
	return p, nil
}

// interpret maps raw heads to a Prediction. Confidence is clamped into [0,1];
// non-finite values are rejected since they cannot be encoded.
func interpret(heads [][]float32) (*models.Prediction, error) {
	if len(heads) < 2 {
		return nil, fmt.Errorf("%w: got %d output heads, want 2", errs.ErrModelOutput, len(heads))
	}
	if len(heads[0]) < 1 {
		return nil, fmt.Errorf("%w: empty confidence head", errs.ErrModelOutput)
	}
	if len(heads[1]) < 4 {
		return nil, fmt.Errorf("%w: bbox head has %d values, want 4", errs.ErrModelOutput, len(heads[1]))
	}

	conf := float64(heads[0][0])
	if math.IsNaN(conf) {
		return nil, fmt.Errorf("%w: confidence is NaN", errs.ErrModelOutput)
	}

	p := &models.Prediction{Confidence: float32(math.Min(1, math.Max(0, conf)))}
	for i := range p.BBox {
		v := float64(heads[1][i])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: bbox[%d] is not finite", errs.ErrModelOutput, i)
		}
		p.BBox[i] = heads[1][i]
	}
	return p, nil
}
