package inference

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/your-org/buddywatch/internal/errs"
)

const size = 120

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) <= 1.0/255
}

type fakeModel struct {
	heads [][]float32
	err   error
	input []float32
}

func (m *fakeModel) Run(input []float32) ([][]float32, error) {
	m.input = input
	return m.heads, m.err
}

func TestPreprocessLayout(t *testing.T) {
	data := encodePNG(t, solid(10, 7, color.NRGBA{R: 255, G: 0, B: 51, A: 255}))

	input, err := Preprocess(data, size)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if len(input) != size*size*3 {
		t.Fatalf("len = %d, want %d", len(input), size*size*3)
	}
	for i := 0; i < len(input); i += 3 {
		if !near(input[i], 1) || !near(input[i+1], 0) || !near(input[i+2], 0.2) {
			t.Fatalf("pixel %d = %v", i/3, input[i:i+3])
		}
	}
}

func TestPreprocessDropsAlpha(t *testing.T) {
	data := encodePNG(t, solid(4, 4, color.NRGBA{R: 0, G: 255, B: 0, A: 0}))

	input, err := Preprocess(data, 8)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	for i := 0; i < len(input); i += 3 {
		if !near(input[i+1], 1) {
			t.Fatalf("green at %d = %v, want 1", i/3, input[i+1])
		}
	}
}

func TestPreprocessGrayscale(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 5, 5))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	input, err := Preprocess(encodePNG(t, img), 6)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	for i := 0; i < len(input); i += 3 {
		if input[i] != input[i+1] || input[i+1] != input[i+2] {
			t.Fatalf("gray pixel not replicated: %v", input[i:i+3])
		}
	}
}

func TestPreprocessDeterministic(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 33, 21))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	data := encodePNG(t, img)

	a, err := Preprocess(data, size)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Preprocess(data, size)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("value %d differs: %v vs %v", i, a[i], b[i])
		}
		if a[i] < 0 || a[i] > 1 {
			t.Fatalf("value %d = %v outside [0,1]", i, a[i])
		}
	}
}

func TestPreprocessInvalidImage(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("definitely not an image"),
		"truncated": encodePNG(t, solid(20, 20, color.NRGBA{A: 255}))[:40],
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Preprocess(data, size); !errors.Is(err, errs.ErrInvalidImage) {
				t.Fatalf("err = %v, want invalid image", err)
			}
		})
	}
}

func TestPredict(t *testing.T) {
	model := &fakeModel{heads: [][]float32{{0.87}, {0.1, 0.2, 0.6, 0.7}}}
	svc := NewService(model, size)

	p, err := svc.Predict(context.Background(), "alice", encodePNG(t, solid(3, 3, color.NRGBA{A: 255})))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if p.Confidence != 0.87 {
		t.Errorf("confidence = %v", p.Confidence)
	}
	if p.BBox != [4]float32{0.1, 0.2, 0.6, 0.7} {
		t.Errorf("bbox = %v", p.BBox)
	}
	if len(model.input) != size*size*3 {
		t.Errorf("model got %d inputs", len(model.input))
	}
}

func TestPredictClampsConfidence(t *testing.T) {
	cases := map[float32]float32{
		1.7:                   1,
		-0.2:                  0,
		float32(math.Inf(1)):  1,
		float32(math.Inf(-1)): 0,
		0.5:                   0.5,
	}
	img := encodePNG(t, solid(2, 2, color.NRGBA{A: 255}))
	for raw, want := range cases {
		svc := NewService(&fakeModel{heads: [][]float32{{raw}, {0, 0, 1, 1}}}, 8)
		p, err := svc.Predict(context.Background(), "alice", img)
		if err != nil {
			t.Fatalf("predict(%v): %v", raw, err)
		}
		if p.Confidence != want {
			t.Errorf("confidence(%v) = %v, want %v", raw, p.Confidence, want)
		}
	}
}

func TestPredictRejectsBadModelOutput(t *testing.T) {
	nan := float32(math.NaN())
	cases := map[string]*fakeModel{
		"no heads":      {heads: nil},
		"one head":      {heads: [][]float32{{0.5}}},
		"empty conf":    {heads: [][]float32{{}, {0, 0, 1, 1}}},
		"short bbox":    {heads: [][]float32{{0.5}, {0, 0, 1}}},
		"nan conf":      {heads: [][]float32{{nan}, {0, 0, 1, 1}}},
		"nan bbox":      {heads: [][]float32{{0.5}, {0, nan, 1, 1}}},
		"runtime error": {err: errors.New("session run failed")},
	}
	img := encodePNG(t, solid(2, 2, color.NRGBA{A: 255}))
	for name, model := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewService(model, 8).Predict(context.Background(), "alice", img)
			if !errors.Is(err, errs.ErrModelOutput) {
				t.Fatalf("err = %v, want model output", err)
			}
			if errs.Stage(err) != errs.StageInference {
				t.Errorf("stage = %q", errs.Stage(err))
			}
		})
	}
}

func TestPredictInvalidImageSkipsModel(t *testing.T) {
	model := &fakeModel{heads: [][]float32{{0.5}, {0, 0, 1, 1}}}
	_, err := NewService(model, 8).Predict(context.Background(), "alice", []byte("nope"))
	if !errors.Is(err, errs.ErrInvalidImage) {
		t.Fatalf("err = %v", err)
	}
	if errs.Stage(err) != errs.StagePreprocess {
		t.Errorf("stage = %q", errs.Stage(err))
	}
	if model.input != nil {
		t.Error("model ran on invalid image")
	}
}

func TestPredictRequiresPrincipal(t *testing.T) {
	_, err := NewService(&fakeModel{}, 8).Predict(context.Background(), "", nil)
	if !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("err = %v", err)
	}
}
