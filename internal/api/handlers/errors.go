package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/buddywatch/internal/errs"
	"github.com/your-org/buddywatch/pkg/dto"
)

type errorClass struct {
	target error
	status int
	code   string
}

// Checked in order; the first match wins.
var errorClasses = []errorClass{
	{errs.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{errs.ErrValidation, http.StatusBadRequest, "validation"},
	{errs.ErrNotFound, http.StatusNotFound, "not_found"},
	{errs.ErrBlobMissing, http.StatusInternalServerError, "blob_missing"},
	{errs.ErrStorageQuotaExceeded, http.StatusInsufficientStorage, "storage_quota_exceeded"},
	{errs.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},
	{errs.ErrInvalidImage, http.StatusUnprocessableEntity, "invalid_image"},
	{errs.ErrPersistence, http.StatusInternalServerError, "persistence"},
	{errs.ErrModelOutput, http.StatusBadGateway, "model_output"},
}

// writeError maps err to a status and error body. Client errors carry
// the underlying reason; server errors only their class.
func writeError(c *gin.Context, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"code", body.Code,
			"stage", body.Stage,
			"error", err,
		)
	}
	c.AbortWithStatusJSON(status, body)
}

func classify(err error) (int, dto.ErrorResponse) {
	stage := errs.Stage(err)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, dto.ErrorResponse{
			Error: "request body too large",
			Code:  "validation",
			Stage: errs.StageValidate,
		}
	}

	for _, cl := range errorClasses {
		if !errors.Is(err, cl.target) {
			continue
		}
		msg := cl.target.Error()
		switch cl.status {
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			msg = reason(err)
		}
		return cl.status, dto.ErrorResponse{Error: msg, Code: cl.code, Stage: stage}
	}

	return http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error", Code: "internal", Stage: stage}
}

// reason strips the stage prefix from err's message.
func reason(err error) string {
	var se *errs.StageError
	if errors.As(err, &se) {
		return se.Err.Error()
	}
	return err.Error()
}
