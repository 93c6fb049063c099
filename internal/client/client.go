// Package client wraps the image service endpoints for callers that must not
// fail on network trouble. Every call returns a tagged outcome; transport and
// decoding problems become failures, never errors or panics.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"discus-vision/internal/pkg/formfile"
	"discus-vision/internal/vision"
)

const (
	MsgUploadFailed    = "Failed to upload image"
	MsgCleanupFailed   = "Failed to cleanup files"
	MsgInvalidResponse = "invalid response"
)

type UploadOutcome struct {
	Success    bool
	Prediction *vision.Prediction
	Error      string
}

type StoreOutcome struct {
	Success  bool
	Filename string
	Path     string
	Error    string
}

type CleanupOutcome struct {
	Success      bool
	DeletedCount int
	Error        string
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

type Option func(c *Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadImage sends the image to /predict and returns the prediction.
func (c *Client) UploadImage(ctx context.Context, filename, contentType string, r io.Reader) UploadOutcome {
	var reply struct {
		PredictedClass string `json:"predicted_class"`
		Confidence     string `json:"confidence"`
		Description    string `json:"description"`
		Error          string `json:"error"`
	}
	if err := c.postFile(ctx, "/predict", "file", filename, contentType, r, &reply); err != nil {
		c.logger.Warnw("upload error", "error", err)
		return UploadOutcome{Error: MsgUploadFailed}
	}

	switch {
	case reply.PredictedClass != "" && reply.Confidence != "":
		p := vision.Describe(&vision.Prediction{
			PredictedClass: reply.PredictedClass,
			Confidence:     reply.Confidence,
			Description:    reply.Description,
		})
		return UploadOutcome{Success: true, Prediction: p}
	case reply.Error != "":
		return UploadOutcome{Error: reply.Error}
	default:
		return UploadOutcome{Error: MsgInvalidResponse}
	}
}

// StoreImage sends the image to /api/upload, which only stores it.
func (c *Client) StoreImage(ctx context.Context, filename, contentType string, r io.Reader) StoreOutcome {
	var reply struct {
		Success  bool   `json:"success"`
		Filename string `json:"filename"`
		Path     string `json:"path"`
		Error    string `json:"error"`
	}
	if err := c.postFile(ctx, "/api/upload", "image", filename, contentType, r, &reply); err != nil {
		c.logger.Warnw("store error", "error", err)
		return StoreOutcome{Error: MsgUploadFailed}
	}

	switch {
	case reply.Success && reply.Filename != "":
		return StoreOutcome{Success: true, Filename: reply.Filename, Path: reply.Path}
	case reply.Error != "":
		return StoreOutcome{Error: reply.Error}
	default:
		return StoreOutcome{Error: MsgInvalidResponse}
	}
}

// Cleanup asks the service to empty its storage directory.
func (c *Client) Cleanup(ctx context.Context) CleanupOutcome {
	var reply struct {
		Success      bool   `json:"success"`
		DeletedCount int    `json:"deletedCount"`
		Error        string `json:"error"`
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/cleanup", nil)
	if err != nil {
		c.logger.Warnw("cleanup error", "error", err)
		return CleanupOutcome{Error: MsgCleanupFailed}
	}
	if err := c.do(req, &reply); err != nil {
		c.logger.Warnw("cleanup error", "error", err)
		return CleanupOutcome{Error: MsgCleanupFailed}
	}

	switch {
	case reply.Success:
		return CleanupOutcome{Success: true, DeletedCount: reply.DeletedCount}
	case reply.Error != "":
		return CleanupOutcome{Error: reply.Error}
	default:
		return CleanupOutcome{Error: MsgInvalidResponse}
	}
}

// IsAvailable reports whether /health answers with a 2xx status.
func (c *Client) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *Client) postFile(ctx context.Context, path, field, filename, contentType string, r io.Reader, out interface{}) error {
	if r == nil {
		return fmt.Errorf("no file reader")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := formfile.CreatePart(w, field, filename, contentType)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("copy file into body failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart writer failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, out)
}

// do sends req and decodes the JSON body regardless of status; the service
// reports failures inside the body.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response failed (status %d): %w", resp.StatusCode, err)
	}
	return nil
}
