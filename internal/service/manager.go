package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"vehicledetect/internal/dto"
	"vehicledetect/internal/logger"
	"vehicledetect/internal/model"
	"vehicledetect/internal/repository"
)

// Detector runs the model on a staged image for one category.
type Detector interface {
	Detect(imagePath string, category model.Category) (model.Outcome, error)
	Close() error
}

// EventPublisher receives a JSON event after every detection.
type EventPublisher interface {
	Broadcast(message []byte) bool
	GetClientCount() int
}

// Recorder accepts detection records without writing them on the caller's
// goroutine, see storage.HistoryBuffer.
type Recorder interface {
	Add(det model.Detection)
}

// ErrNoDetectors is returned by NewManager when the pool would be empty.
var ErrNoDetectors = errors.New("no detectors available")

// DetectRequest describes one staged upload to classify.
type DetectRequest struct {
	RequestID string
	ImagePath string
	Filename  string
	Category  string
}

// Manager hands requests to a fixed pool of detectors, one request per
// detector at a time, and records every outcome.
type Manager struct {
	detectors     []Detector
	pool          chan Detector
	detectionRepo repository.DetectionRepository
	recorder      Recorder
	events        EventPublisher
	logger        *logger.Logger
}

// NewManager builds the pool. detectionRepo and events may be nil.
func NewManager(detectors []Detector, detectionRepo repository.DetectionRepository, events EventPublisher, logger *logger.Logger) (*Manager, error) {
	if len(detectors) == 0 {
		return nil, ErrNoDetectors
	}

	m := &Manager{
		detectors:     detectors,
		pool:          make(chan Detector, len(detectors)),
		detectionRepo: detectionRepo,
		events:        events,
		logger:        logger,
	}
	for _, d := range detectors {
		m.pool <- d
	}

	m.logger.Info("Manager started with %d detector(s)", len(detectors))
	return m, nil
}

// Detect validates the category, waits for a free detector and runs it.
// Waiting stops when ctx is done.
func (m *Manager) Detect(ctx context.Context, req DetectRequest) (model.Outcome, error) {
	start := time.Now()

	var outcome model.Outcome
	category, err := model.ParseCategory(req.Category)
	if err == nil {
		outcome, err = m.run(ctx, req.ImagePath, category)
	}

	m.record(req, outcome, err, time.Since(start))
	return outcome, err
}

func (m *Manager) run(ctx context.Context, imagePath string, category model.Category) (model.Outcome, error) {
	select {
	case <-ctx.Done():
		return model.Outcome{}, ctx.Err()
	case d := <-m.pool:
		defer func() { m.pool <- d }()
		return d.Detect(imagePath, category)
	}
}

// record stores the outcome and notifies viewers. Failures here are logged
// and never change the response.
func (m *Manager) record(req DetectRequest, outcome model.Outcome, detectErr error, elapsed time.Duration) {
	det := model.Detection{
		RequestID:  req.RequestID,
		Filename:   req.Filename,
		Category:   req.Category,
		Result:     outcome.Present,
		Confidence: outcome.Confidence,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  time.Now(),
	}
	if detectErr != nil {
		det.Error = detectErr.Error()
		m.logger.Error("Error during detection (%s, %s): %v", req.Filename, req.Category, detectErr)
	} else {
		m.logger.Info("Detection %s: category=%s result=%t confidence=%.2f in %dms",
			req.RequestID, req.Category, outcome.Present, outcome.Confidence, det.DurationMs)
	}

	switch {
	case m.recorder != nil:
		m.recorder.Add(det)
	case m.detectionRepo != nil:
		if _, err := m.detectionRepo.Insert(&det); err != nil {
			m.logger.Error("Error saving detection to database: %v", err)
		}
	}

	if m.events != nil {
		msg, err := json.Marshal(dto.DetectionEvent{
			RequestID:  det.RequestID,
			Filename:   det.Filename,
			Category:   det.Category,
			Result:     det.Result,
			Confidence: det.Confidence,
			DurationMs: det.DurationMs,
			Error:      det.Error,
			Timestamp:  det.CreatedAt,
		})
		if err != nil {
			m.logger.Error("Error encoding detection event: %v", err)
			return
		}
		m.events.Broadcast(msg)
	}
}

// UseRecorder routes history writes through r instead of inserting one row
// per request. Must be called before serving.
func (m *Manager) UseRecorder(r Recorder) {
	m.recorder = r
}

// Workers returns the pool size.
func (m *Manager) Workers() int {
	return len(m.detectors)
}

// Viewers returns how many event subscribers are connected.
func (m *Manager) Viewers() int {
	if m.events == nil {
		return 0
	}
	return m.events.GetClientCount()
}

// GetDetectionRepository exposes the history store to read-only handlers.
func (m *Manager) GetDetectionRepository() repository.DetectionRepository {
	return m.detectionRepo
}

// Stop closes every detector. In-flight requests must have finished.
func (m *Manager) Stop() {
	for _, d := range m.detectors {
		if err := d.Close(); err != nil {
			m.logger.Error("Error closing detector: %v", err)
		}
	}
	m.logger.Info("All detectors stopped")
}
