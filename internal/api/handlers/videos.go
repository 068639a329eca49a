package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/buddywatch/internal/asset"
	"github.com/your-org/buddywatch/internal/auth"
	"github.com/your-org/buddywatch/internal/errs"
	"github.com/your-org/buddywatch/pkg/dto"
)

type VideoHandler struct {
	svc       *asset.Service
	basePath  string
	maxUpload int64
}

// NewVideoHandler serves video routes mounted at basePath. maxUpload <= 0
// disables the body limit.
func NewVideoHandler(svc *asset.Service, basePath string, maxUpload int64) *VideoHandler {
	return &VideoHandler{svc: svc, basePath: basePath, maxUpload: maxUpload}
}

func (h *VideoHandler) List(c *gin.Context) {
	assets, err := h.svc.List(c.Request.Context(), auth.Principal(c))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := dto.VideoListResponse{Videos: make([]dto.VideoResponse, 0, len(assets)), Total: len(assets)}
	for i := range assets {
		resp.Videos = append(resp.Videos, dto.NewVideoResponse(&assets[i], h.basePath))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VideoHandler) Upload(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	form, err := c.MultipartForm()
	if err != nil {
		writeError(c, errs.AtStage(errs.StageValidate, bodyError(err, "multipart form required")))
		return
	}

	var title string
	if v := form.Value["title"]; len(v) > 0 {
		title = v[0]
	}
	files := form.File["file"]
	if len(files) == 0 {
		writeError(c, errs.AtStage(errs.StageValidate, errs.Validation("file is required")))
		return
	}
	fh := files[0]

	f, err := fh.Open()
	if err != nil {
		writeError(c, errs.AtStage(errs.StageValidate, bodyError(err, "unreadable file")))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeError(c, errs.AtStage(errs.StageValidate, bodyError(err, "unreadable file")))
		return
	}

	a, err := h.svc.Upload(c.Request.Context(), auth.Principal(c), asset.UploadInput{
		Title:       title,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewVideoResponse(a, h.basePath))
}

func (h *VideoHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	a, err := h.svc.Get(c.Request.Context(), auth.Principal(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewVideoResponse(a, h.basePath))
}

func (h *VideoHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), auth.Principal(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *VideoHandler) Download(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	dl, err := h.svc.Download(c.Request.Context(), auth.Principal(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	stream(c, dl, "attachment")
}

func (h *VideoHandler) Thumbnail(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	dl, err := h.svc.Thumbnail(c.Request.Context(), auth.Principal(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	stream(c, dl, "inline")
}

func stream(c *gin.Context, dl *asset.Download, disposition string) {
	defer dl.Body.Close()

	headers := map[string]string{}
	if cd := mime.FormatMediaType(disposition, map[string]string{"filename": dl.Filename}); cd != "" {
		headers["Content-Disposition"] = cd
	} else {
		headers["Content-Disposition"] = disposition
	}
	c.Header("X-Content-Type-Options", "nosniff")
	c.DataFromReader(http.StatusOK, dl.Size, dl.ContentType, dl.Body, headers)
}

// parseID treats a malformed id like any other unknown asset.
func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, errs.AtStage(errs.StageLookup, errs.ErrNotFound))
		return uuid.Nil, false
	}
	return id, true
}

// bodyError keeps *http.MaxBytesError visible to writeError and turns
// everything else into a validation failure.
func bodyError(err error, reason string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
		return errs.Validation(reason)
	}
	return fmt.Errorf("%w: %s: %v", errs.ErrValidation, reason, err)
}
