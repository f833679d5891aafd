package handler

import (
	"net/http"
	"strconv"

	"vehicledetect/internal/dto"
	"vehicledetect/internal/logger"
	"vehicledetect/internal/model"
	"vehicledetect/internal/service"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// ListDetectionsHandler serves GET /api/detections?category=&result=&page=&limit=.
func ListDetectionsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			respondError(w, logger, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		repo := manager.GetDetectionRepository()
		if repo == nil {
			respondError(w, logger, "Detection history is disabled", http.StatusNotFound)
			return
		}

		query := r.URL.Query()
		page := atoiDefault(query.Get("page"), 1)
		limit := atoiDefault(query.Get("limit"), defaultPageSize)
		if limit > maxPageSize {
			limit = maxPageSize
		}

		filter := &model.DetectionFilter{
			Category: query.Get("category"),
			Limit:    limit,
		}
		if v := query.Get("result"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				respondError(w, logger, "Invalid result filter", http.StatusBadRequest)
				return
			}
			filter.Result = &b
		}

		total, err := repo.Count(filter)
		if err != nil {
			logger.Error("Error counting detections: %v", err)
			respondError(w, logger, "Failed to read detection history", http.StatusInternalServerError)
			return
		}

		// Past the last page there is nothing to show; serve the last page
		// so the reported page always matches the rows returned.
		totalPages := (total + limit - 1) / limit
		if lastPage := max(totalPages, 1); page > lastPage {
			page = lastPage
		}
		filter.Offset = (page - 1) * limit

		detections, err := repo.List(filter)
		if err != nil {
			logger.Error("Error listing detections: %v", err)
			respondError(w, logger, "Failed to read detection history", http.StatusInternalServerError)
			return
		}
		if detections == nil {
			detections = []model.Detection{}
		}

		respondJSON(w, logger, dto.DetectionsData{
			Detections:  detections,
			Length:      total,
			TotalPages:  totalPages,
			CurrentPage: page,
			Limit:       limit,
		}, http.StatusOK)
	}
}

// StatsHandler serves GET /api/detections/stats.
func StatsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			respondError(w, logger, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		repo := manager.GetDetectionRepository()
		if repo == nil {
			respondError(w, logger, "Detection history is disabled", http.StatusNotFound)
			return
		}

		stats, err := repo.Stats()
		if err != nil {
			logger.Error("Error reading stats: %v", err)
			respondError(w, logger, "Failed to read detection stats", http.StatusInternalServerError)
			return
		}
		respondJSON(w, logger, stats, http.StatusOK)
	}
}

// atoiDefault parses a positive integer, falling back to def.
func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
