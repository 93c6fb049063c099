package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"discus-vision/internal/model"
)

var ErrDuplicateEvent = errors.New("prediction event already stored")

type PredictionRepository struct {
	db *gorm.DB
}

func NewPredictionRepository(db *gorm.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

func (r *PredictionRepository) Create(record *model.PredictionRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("create prediction record failed: %w", err)
	}
	return nil
}

func (r *PredictionRepository) ListRecent(limit int) ([]model.PredictionRecord, error) {
	var records []model.PredictionRecord
	if err := r.db.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list prediction records failed: %w", err)
	}
	return records, nil
}
