package dto

type PredictionBody struct {
	BBox       [4]float32 `json:"bbox"`
	Confidence float32    `json:"confidence"`
}

type PredictResponse struct {
	Prediction PredictionBody `json:"prediction"`
}
