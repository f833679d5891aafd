package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"vehicledetect/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// Insert adds a new detection record to the database.
func (r *DetectionRepository) Insert(det *model.Detection) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	if det.CreatedAt.IsZero() {
		det.CreatedAt = time.Now()
	}

	result, err := r.db.Conn().Exec(`
		INSERT INTO detections (request_id, filename, category, result, confidence, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, det.RequestID, det.Filename, det.Category, det.Result, det.Confidence, det.DurationMs, det.Error, det.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert detection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read detection id: %w", err)
	}
	det.ID = id
	return id, nil
}

// InsertBatch adds multiple detections in a single transaction.
func (r *DetectionRepository) InsertBatch(detections []model.Detection) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO detections (request_id, filename, category, result, confidence, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if det.CreatedAt.IsZero() {
			det.CreatedAt = time.Now()
		}
		if _, err := stmt.Exec(det.RequestID, det.Filename, det.Category, det.Result, det.Confidence, det.DurationMs, det.Error, det.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	return tx.Commit()
}

// GetByID retrieves a detection by ID. Returns nil when no row matches.
func (r *DetectionRepository) GetByID(id int64) (*model.Detection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`
		SELECT id, request_id, filename, category, result, confidence, duration_ms, error, created_at
		FROM detections WHERE id = ?
	`, id)

	det, err := scanDetection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get detection: %w", err)
	}
	return det, nil
}

// List returns detections matching filter, newest first.
func (r *DetectionRepository) List(filter *model.DetectionFilter) ([]model.Detection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `
		SELECT id, request_id, filename, category, result, confidence, duration_ms, error, created_at
		FROM detections` + where + ` ORDER BY created_at DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var detections []model.Detection
	for rows.Next() {
		det, err := scanDetection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, *det)
	}

	return detections, rows.Err()
}

// Count returns how many detections match filter, ignoring limit and offset.
func (r *DetectionRepository) Count(filter *model.DetectionFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM detections`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count detections: %w", err)
	}
	return count, nil
}

// Stats summarizes the whole history.
func (r *DetectionRepository) Stats() (*model.DetectionStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.DetectionStats{
		Positive:    make(map[string]int),
		PerCategory: make(map[string]int),
	}

	if err := r.db.Conn().QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0) FROM detections
	`).Scan(&stats.Total, &stats.Failed); err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}

	rows, err := r.db.Conn().Query(`
		SELECT category, COUNT(*), COALESCE(SUM(result), 0)
		FROM detections GROUP BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query per category stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var total, positive int
		if err := rows.Scan(&category, &total, &positive); err != nil {
			return nil, fmt.Errorf("failed to scan category stats: %w", err)
		}
		stats.PerCategory[category] = total
		stats.Positive[category] = positive
	}

	return stats, rows.Err()
}

// DeleteOlderThan removes records created before cutoff.
func (r *DetectionRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM detections WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete detections: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDetection(s scanner) (*model.Detection, error) {
	var det model.Detection
	if err := s.Scan(&det.ID, &det.RequestID, &det.Filename, &det.Category, &det.Result,
		&det.Confidence, &det.DurationMs, &det.Error, &det.CreatedAt); err != nil {
		return nil, err
	}
	return &det, nil
}

func buildWhere(filter *model.DetectionFilter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Result != nil {
		conditions = append(conditions, "result = ?")
		args = append(args, *filter.Result)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
