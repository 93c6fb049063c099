package vision

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrPredictorUnavailable = errors.New("predictor unavailable")
	ErrInvalidResponse      = errors.New("invalid response")
)

// Prediction is the classification result for one image.
type Prediction struct {
	PredictedClass string `json:"predicted_class"`
	Confidence     string `json:"confidence"`
	Description    string `json:"description"`
}

// Image is the input handed to a Predictor.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Predictor gets a prediction for an image. Implementations: RemotePredictor
// (external classification service), Classifier (local ONNX model) and
// MockPredictor (fixed sample set).
type Predictor interface {
	Name() string
	Predict(ctx context.Context, img Image) (*Prediction, error)
}

// FormatConfidence renders a probability in [0,1] as a percentage string.
func FormatConfidence(p float64) string {
	return fmt.Sprintf("%.2f%%", p*100)
}

// ParseConfidence reads a "92.3%" style string back into a percentage value.
func ParseConfidence(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("confidence %q has no trailing %%", s)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
	if err != nil {
		return 0, fmt.Errorf("parse confidence %q failed: %w", s, err)
	}
	return v, nil
}

type ConfidenceLevel string

const (
	ConfidenceLow     ConfidenceLevel = "low"
	ConfidenceMedium  ConfidenceLevel = "medium"
	ConfidenceHigh    ConfidenceLevel = "high"
	ConfidenceUnknown ConfidenceLevel = "unknown"
)

// LevelOf buckets a confidence string: below 70% is low, below 85% medium.
func LevelOf(confidence string) ConfidenceLevel {
	v, err := ParseConfidence(confidence)
	if err != nil {
		return ConfidenceUnknown
	}
	switch {
	case v < 70:
		return ConfidenceLow
	case v < 85:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

// Describe fills an empty description from the catalog.
func Describe(p *Prediction) *Prediction {
	if p != nil && strings.TrimSpace(p.Description) == "" {
		p.Description = DescriptionFor(p.PredictedClass)
	}
	return p
}
