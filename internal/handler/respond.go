package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"vehicledetect/internal/dto"
	"vehicledetect/internal/logger"
	"vehicledetect/internal/service/storage"
)

func respondJSON(w http.ResponseWriter, logger *logger.Logger, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, logger *logger.Logger, message string, status int) {
	respondJSON(w, logger, dto.ErrorResponse{Error: message}, status)
}

// statusForError maps an error kind to the HTTP status reported to the client.
// Unsupported categories, unreadable images and network failures all stay 500
// to keep the public contract, so they share the default branch.
func statusForError(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, storage.ErrTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
