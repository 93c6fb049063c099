package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"discus-vision/internal/bootstrap"
	mysqlClient "discus-vision/internal/platform/mysql"
	"discus-vision/internal/transport/http/response"
)

type HealthHandler struct {
	app *bootstrap.App
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Current string `json:"current,omitempty"`
}

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

// Liveness answers as long as the process serves requests. It does not look
// at storage or any dependency.
func (h *HealthHandler) Liveness(c *gin.Context) {
	response.OK(c, response.HealthStatus{
		Status:  "ok",
		Message: "Image service is running",
	})
}

// Readiness reports the storage directory and every enabled dependency.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := gin.H{"storage": h.checkStorage()}
	allOK := deps["storage"].(dependencyStatus).OK

	if h.app.MySQL != nil {
		s := h.checkMySQL(ctx)
		deps["mysql"] = s
		allOK = allOK && s.OK
	}
	if h.app.Redis != nil {
		s := h.checkRedis(ctx)
		deps["redis"] = s
		allOK = allOK && s.OK
	}
	if h.app.MQConn != nil {
		s := h.checkRabbitMQ()
		deps["rabbitmq"] = s
		allOK = allOK && s.OK
	}

	statusCode := http.StatusOK
	if !allOK {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"app":          h.app.Config.App.Name,
		"env":          h.app.Config.App.Env,
		"predictor":    h.app.Predictor.Name(),
		"uptime_sec":   int(time.Since(h.app.StartedAt).Seconds()),
		"ok":           allOK,
		"dependencies": deps,
	})
}

// checkStorage also names the image currently held in the slot.
func (h *HealthHandler) checkStorage() dependencyStatus {
	if err := h.app.Store.Writable(); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	cur, err := h.app.Store.Current()
	if err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	if cur == nil {
		return dependencyStatus{OK: true}
	}
	return dependencyStatus{OK: true, Current: cur.Filename}
}

func (h *HealthHandler) checkMySQL(ctx context.Context) dependencyStatus {
	if err := mysqlClient.Ping(ctx, h.app.MySQL); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRedis(ctx context.Context) dependencyStatus {
	if err := h.app.Redis.Ping(ctx).Err(); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRabbitMQ() dependencyStatus {
	if h.app.MQConn.IsClosed() {
		return dependencyStatus{OK: false, Message: "connection closed"}
	}
	return dependencyStatus{OK: true}
}
