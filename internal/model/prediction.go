package model

import "time"

// PredictionRecord logs one served prediction. It does not keep the image.
type PredictionRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	EventID        string    `gorm:"size:36;not null;uniqueIndex" json:"event_id"`
	ImageSHA256    string    `gorm:"size:64;not null;index" json:"image_sha256"`
	Filename       string    `gorm:"size:255;not null" json:"filename"`
	ContentType    string    `gorm:"size:64" json:"content_type"`
	PredictedClass string    `gorm:"size:64;not null;index" json:"predicted_class"`
	Confidence     string    `gorm:"size:16;not null" json:"confidence"`
	Backend        string    `gorm:"size:16;not null" json:"backend"`
	Cached         bool      `gorm:"not null;default:false" json:"cached"`
	CreatedAt      time.Time `json:"created_at"`
}

const EventPredictionCompleted = "prediction.completed"

// ImageEvent is the queue payload published after a prediction is served.
type ImageEvent struct {
	EventID    string           `json:"event_id"`
	Type       string           `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
	Record     PredictionRecord `json:"record"`
}
