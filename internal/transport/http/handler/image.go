package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appsvc "discus-vision/internal/app"
	"discus-vision/internal/storage"
	"discus-vision/internal/transport/http/middleware"
	"discus-vision/internal/transport/http/response"
	"discus-vision/internal/vision"
)

// multipartOverhead is headroom for boundaries and part headers on top of the
// file size limit.
const multipartOverhead = 1 << 20

type ImageHandler struct {
	images   *appsvc.ImageService
	maxBytes int64
	logger   *zap.SugaredLogger
}

func NewImageHandler(images *appsvc.ImageService, maxBytes int64, logger *zap.SugaredLogger) *ImageHandler {
	return &ImageHandler{
		images:   images,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Upload stores the multipart "image" field (or "file") in the single slot.
func (h *ImageHandler) Upload(c *gin.Context) {
	up, closeFn, err := h.readUpload(c, "image", "file")
	if err != nil {
		h.uploadError(c, err, response.MsgUploadFailed)
		return
	}
	defer closeFn()

	img, err := h.images.Upload(up)
	if err != nil {
		h.uploadError(c, err, response.MsgUploadFailed)
		return
	}

	response.OK(c, response.UploadResult{
		Success:  true,
		Message:  "Image uploaded successfully",
		Filename: img.Filename,
		Path:     img.Path,
	})
}

// Predict stores the multipart "file" field (or "image") and classifies it.
func (h *ImageHandler) Predict(c *gin.Context) {
	up, closeFn, err := h.readUpload(c, "file", "image")
	if err != nil {
		h.uploadError(c, err, response.MsgPredictFailed)
		return
	}
	defer closeFn()

	res, err := h.images.Predict(c.Request.Context(), up)
	if err != nil {
		switch {
		case errors.Is(err, vision.ErrPredictorUnavailable):
			h.logger.Errorw("predictor unavailable", "error", err)
			response.Error(c, http.StatusServiceUnavailable, "prediction service unavailable")
		case errors.Is(err, storage.ErrNoFile), errors.Is(err, storage.ErrNotImage),
			errors.Is(err, storage.ErrEmptyFile), errors.Is(err, storage.ErrTooLarge):
			h.uploadError(c, err, response.MsgPredictFailed)
		default:
			h.logger.Errorw("predict failed", "error", err)
			response.Error(c, http.StatusInternalServerError, response.MsgPredictFailed)
		}
		return
	}

	response.OK(c, response.PredictResult{
		Success:         true,
		PredictedClass:  res.Prediction.PredictedClass,
		Confidence:      res.Prediction.Confidence,
		ConfidenceLevel: string(res.Level),
		Description:     res.Prediction.Description,
		Cached:          res.Cached,
		Filename:        res.Stored.Filename,
	})
}

// Cleanup deletes everything in the storage directory.
func (h *ImageHandler) Cleanup(c *gin.Context) {
	n, err := h.images.Cleanup()
	if err != nil {
		h.logger.Errorw("cleanup failed", "error", err)
		response.Error(c, http.StatusInternalServerError, response.MsgCleanupFailed)
		return
	}
	response.OK(c, response.CleanupResult{
		Success:      true,
		Message:      fmt.Sprintf("Cleaned up %d files", n),
		DeletedCount: n,
	})
}

// ListPredictions returns recent prediction history.
func (h *ImageHandler) ListPredictions(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	records, err := h.images.ListPredictions(limit)
	if err != nil {
		switch {
		case errors.Is(err, appsvc.ErrHistoryDisabled):
			response.Error(c, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, appsvc.ErrInvalidLimit):
			response.Error(c, http.StatusBadRequest, err.Error())
		default:
			h.logger.Errorw("list predictions failed", "error", err)
			response.Error(c, http.StatusInternalServerError, "list predictions failed")
		}
		return
	}

	h.logger.Infow("prediction history listed",
		"subject", c.GetString(middleware.ContextSubjectKey),
		"role", c.GetString(middleware.ContextRoleKey),
		"count", len(records),
	)
	response.OK(c, gin.H{
		"success":     true,
		"predictions": records,
	})
}

// readUpload opens the first present form field. A missing file, or a body
// that is not multipart at all, reports storage.ErrNoFile.
func (h *ImageHandler) readUpload(c *gin.Context, fields ...string) (storage.Upload, func(), error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)

	var (
		fh  *multipart.FileHeader
		err error
	)
	for _, field := range fields {
		fh, err = c.FormFile(field)
		if err == nil {
			break
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return storage.Upload{}, nil, storage.ErrTooLarge
		}
	}
	if fh == nil {
		return storage.Upload{}, nil, storage.ErrNoFile
	}

	f, err := fh.Open()
	if err != nil {
		return storage.Upload{}, nil, fmt.Errorf("open uploaded file failed: %w", err)
	}

	return storage.Upload{
		OriginalName: fh.Filename,
		ContentType:  fh.Header.Get("Content-Type"),
		Size:         fh.Size,
		Body:         f,
	}, func() { _ = f.Close() }, nil
}

func (h *ImageHandler) uploadError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, storage.ErrNoFile):
		response.Error(c, http.StatusBadRequest, response.MsgNoFile)
	case errors.Is(err, storage.ErrNotImage):
		response.Error(c, http.StatusBadRequest, "Only image files are allowed")
	case errors.Is(err, storage.ErrEmptyFile):
		response.Error(c, http.StatusBadRequest, "Image file is empty")
	case errors.Is(err, storage.ErrTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.MsgTooLarge)
	default:
		h.logger.Errorw("upload failed", "error", err)
		response.Error(c, http.StatusInternalServerError, fallback)
	}
}
