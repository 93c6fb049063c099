package app

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"discus-vision/internal/model"
	"discus-vision/internal/storage"
	"discus-vision/internal/vision"
)

var (
	ErrHistoryDisabled = errors.New("prediction history is disabled")
	ErrInvalidLimit    = errors.New("invalid limit")
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type SlotStore interface {
	Put(up storage.Upload) (*storage.StoredImage, error)
	Clear() (int, error)
	MaxBytes() int64
}

type PredictionCache interface {
	Get(ctx context.Context, digest string) (*vision.Prediction, bool, error)
	Set(ctx context.Context, digest string, p *vision.Prediction) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event model.ImageEvent) error
}

type HistoryReader interface {
	ListRecent(limit int) ([]model.PredictionRecord, error)
}

// ImageService owns the upload, cleanup and prediction flows. Cache,
// publisher and history are optional; nil disables them.
type ImageService struct {
	store     SlotStore
	predictor vision.Predictor
	cache     PredictionCache
	publisher EventPublisher
	history   HistoryReader
	logger    *zap.SugaredLogger
	now       func() time.Time
}

type Option func(s *ImageService)

func WithCache(c PredictionCache) Option {
	return func(s *ImageService) { s.cache = c }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *ImageService) { s.publisher = p }
}

func WithHistory(h HistoryReader) Option {
	return func(s *ImageService) { s.history = h }
}

func NewImageService(store SlotStore, predictor vision.Predictor, logger *zap.SugaredLogger, opts ...Option) *ImageService {
	s := &ImageService{
		store:     store,
		predictor: predictor,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type PredictResult struct {
	Prediction vision.Prediction
	Level      vision.ConfidenceLevel
	Stored     *storage.StoredImage
	Cached     bool
}

// Upload puts the file into the slot, replacing the previous image.
func (s *ImageService) Upload(up storage.Upload) (*storage.StoredImage, error) {
	img, err := s.store.Put(up)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("image saved", "filename", img.Filename, "size", img.Size)
	return img, nil
}

// Cleanup empties the storage directory and reports how many entries went.
func (s *ImageService) Cleanup() (int, error) {
	n, err := s.store.Clear()
	if err != nil {
		return 0, err
	}
	s.logger.Infow("storage cleaned up", "deleted", n)
	return n, nil
}

// Predict stores the upload in the slot and classifies it. Cache and event
// failures are logged and never fail the request.
func (s *ImageService) Predict(ctx context.Context, up storage.Upload) (*PredictResult, error) {
	if up.Body == nil {
		return nil, storage.ErrNoFile
	}
	if up.Size > s.store.MaxBytes() {
		return nil, storage.ErrTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(up.Body, s.store.MaxBytes()+1))
	if err != nil {
		return nil, fmt.Errorf("read upload failed: %w", err)
	}
	if int64(len(data)) > s.store.MaxBytes() {
		return nil, storage.ErrTooLarge
	}

	up.Body = bytes.NewReader(data)
	up.Size = int64(len(data))
	stored, err := s.store.Put(up)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	prediction, cached := s.lookup(ctx, digest)
	if prediction == nil {
		prediction, err = s.predictor.Predict(ctx, vision.Image{
			Filename:    up.OriginalName,
			ContentType: stored.ContentType,
			Data:        data,
		})
		if err != nil {
			return nil, fmt.Errorf("predict failed: %w", err)
		}
		vision.Describe(prediction)
		s.remember(ctx, digest, prediction)
	}

	s.publish(ctx, digest, up.OriginalName, stored.ContentType, prediction, cached)
	s.logger.Infow("prediction served",
		"class", prediction.PredictedClass,
		"confidence", prediction.Confidence,
		"backend", s.predictor.Name(),
		"cached", cached,
	)

	return &PredictResult{
		Prediction: *prediction,
		Level:      vision.LevelOf(prediction.Confidence),
		Stored:     stored,
		Cached:     cached,
	}, nil
}

// ListPredictions returns recent history, newest first. limit 0 means the
// default page size.
func (s *ImageService) ListPredictions(limit int) ([]model.PredictionRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	if limit < 0 || limit > maxHistoryLimit {
		return nil, ErrInvalidLimit
	}
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	return s.history.ListRecent(limit)
}

func (s *ImageService) lookup(ctx context.Context, digest string) (*vision.Prediction, bool) {
	if s.cache == nil {
		return nil, false
	}
	p, ok, err := s.cache.Get(ctx, digest)
	if err != nil {
		s.logger.Warnw("prediction cache lookup failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return vision.Describe(p), true
}

func (s *ImageService) remember(ctx context.Context, digest string, p *vision.Prediction) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, digest, p); err != nil {
		s.logger.Warnw("prediction cache store failed", "error", err)
	}
}

func (s *ImageService) publish(ctx context.Context, digest, filename, contentType string, p *vision.Prediction, cached bool) {
	if s.publisher == nil {
		return
	}
	now := s.now()
	eventID := uuid.NewString()
	event := model.ImageEvent{
		EventID:    eventID,
		Type:       model.EventPredictionCompleted,
		OccurredAt: now,
		Record: model.PredictionRecord{
			EventID:        eventID,
			ImageSHA256:    digest,
			Filename:       filename,
			ContentType:    contentType,
			PredictedClass: p.PredictedClass,
			Confidence:     p.Confidence,
			Backend:        s.predictor.Name(),
			Cached:         cached,
			CreatedAt:      now,
		},
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warnw("publish prediction event failed", "event_id", eventID, "error", err)
	}
}
