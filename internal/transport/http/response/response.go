package response

import (
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

const (
	MsgNoFile        = "No image file provided"
	MsgUploadFailed  = "Failed to upload image"
	MsgCleanupFailed = "Failed to cleanup files"
	MsgPredictFailed = "prediction failed"
	MsgTooLarge      = "File too large"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type UploadResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

type CleanupResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	DeletedCount int    `json:"deletedCount"`
}

type PredictResult struct {
	Success         bool   `json:"success"`
	PredictedClass  string `json:"predicted_class"`
	Confidence      string `json:"confidence"`
	ConfidenceLevel string `json:"confidence_level"`
	Description     string `json:"description"`
	Cached          bool   `json:"cached"`
	Filename        string `json:"filename,omitempty"`
}

type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error writes {"success": false, "error": message}. Server side failures are
// also reported to Sentry when a hub is attached to the request.
func Error(c *gin.Context, httpStatus int, message string) {
	if httpStatus >= http.StatusInternalServerError {
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureMessage(message)
		}
	}
	c.JSON(httpStatus, ErrorResponse{
		Success: false,
		Error:   message,
	})
}
