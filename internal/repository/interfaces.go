package repository

import (
	"time"

	"vehicledetect/internal/model"
)

// DetectionRepository defines the interface for detection history operations.
type DetectionRepository interface {
	// Create operations
	Insert(det *model.Detection) (int64, error)
	InsertBatch(detections []model.Detection) error

	// Read operations
	GetByID(id int64) (*model.Detection, error)
	List(filter *model.DetectionFilter) ([]model.Detection, error)
	Count(filter *model.DetectionFilter) (int, error)
	Stats() (*model.DetectionStats, error)

	// Delete operations
	DeleteOlderThan(cutoff time.Time) (int64, error)
}
