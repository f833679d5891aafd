package handler

import (
	"net/http"

	"vehicledetect/internal/config"
	"vehicledetect/internal/dto"
	"vehicledetect/internal/logger"
	"vehicledetect/internal/model"
	"vehicledetect/internal/service"
)

// HealthHandler reports that the service is up. The server only binds once
// every network has loaded, so reaching this handler means ready.
func HealthHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, logger, dto.HealthData{
			Status:      "ok",
			Workers:     manager.Workers(),
			ModelFamily: cfg.ModelFamily,
			Viewers:     manager.Viewers(),
		}, http.StatusOK)
	}
}

// CategoriesHandler lists the categories /detect accepts.
func CategoriesHandler(cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, logger, dto.CategoriesData{
			Categories: model.CategoryNames(),
			Default:    cfg.DefaultCategory,
		}, http.StatusOK)
	}
}
