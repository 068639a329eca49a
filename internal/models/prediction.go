package models

// Prediction is the result of one face detection call.
type Prediction struct {
	Confidence float32    `json:"confidence"` // in [0, 1]
	BBox       [4]float32 `json:"bbox"`       // x1, y1, x2, y2
}
