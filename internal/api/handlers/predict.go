package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/buddywatch/internal/auth"
	"github.com/your-org/buddywatch/internal/errs"
	"github.com/your-org/buddywatch/internal/inference"
	"github.com/your-org/buddywatch/pkg/dto"
)

type PredictHandler struct {
	svc      *inference.Service
	maxBytes int64
}

func NewPredictHandler(svc *inference.Service, maxBytes int64) *PredictHandler {
	return &PredictHandler{svc: svc, maxBytes: maxBytes}
}

// Predict accepts a multipart "image" field and returns the face prediction.
// With no model loaded it answers 503.
func (h *PredictHandler) Predict(c *gin.Context) {
	if h.svc == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error: "model not loaded",
			Code:  "model_unavailable",
		})
		return
	}
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeError(c, errs.AtStage(errs.StageValidate, errs.Validation("image is required")))
			return
		}
		writeError(c, errs.AtStage(errs.StageValidate, bodyError(err, "multipart form required")))
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, errs.AtStage(errs.StageValidate, bodyError(err, "unreadable image")))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeError(c, errs.AtStage(errs.StageValidate, bodyError(err, "unreadable image")))
		return
	}

	p, err := h.svc.Predict(c.Request.Context(), auth.Principal(c), data)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PredictResponse{
		Prediction: dto.PredictionBody{BBox: p.BBox, Confidence: p.Confidence},
	})
}
