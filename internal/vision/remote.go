package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"discus-vision/internal/pkg/formfile"
)

// RemotePredictor forwards the image to an external classification service
// that answers {"predicted_class": ..., "confidence": "12.34%"} or
// {"error": ...}.
type RemotePredictor struct {
	url        string
	httpClient *http.Client
}

func NewRemotePredictor(url string, timeout time.Duration) *RemotePredictor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemotePredictor{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *RemotePredictor) Name() string {
	return "remote"
}

func (p *RemotePredictor) Predict(ctx context.Context, img Image) (*Prediction, error) {
	body, contentType, err := multipartBody("file", img)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, body)
	if err != nil {
		return nil, fmt.Errorf("build predict request failed: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPredictorUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read predict response failed: %w", err)
	}

	var parsed struct {
		PredictedClass string `json:"predicted_class"`
		Confidence     string `json:"confidence"`
		Description    string `json:"description"`
		Error          string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: status %d: %v", ErrInvalidResponse, resp.StatusCode, err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("classifier error: %s", parsed.Error)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("classifier response status %d: %s", resp.StatusCode, string(raw))
	}
	if parsed.PredictedClass == "" || parsed.Confidence == "" {
		return nil, ErrInvalidResponse
	}

	return &Prediction{
		PredictedClass: parsed.PredictedClass,
		Confidence:     parsed.Confidence,
		Description:    parsed.Description,
	}, nil
}

func multipartBody(field string, img Image) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := img.Filename
	if filename == "" {
		filename = "image"
	}
	part, err := formfile.CreatePart(w, field, filename, img.ContentType)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("write multipart part failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer failed: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
