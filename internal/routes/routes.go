package routes

import (
	"net/http"

	"vehicledetect/internal/config"
	"vehicledetect/internal/handler"
	"vehicledetect/internal/logger"
	"vehicledetect/internal/middleware"
	"vehicledetect/internal/service"
	"vehicledetect/internal/service/storage"
	ws "vehicledetect/internal/service/websocket"
)

// SetupRoutes registers the detection endpoint, history/ops endpoints and the
// event stream, and wraps the mux with logging and panic recovery.
// hub may be nil, in which case /api/events is not served.
func SetupRoutes(manager *service.Manager, staging *storage.StagingService, hub *ws.HubService, cfg *config.Config, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/detect", handler.DetectHandler(manager, staging, cfg, log))

	mux.HandleFunc("/health", handler.HealthHandler(manager, cfg, log))
	mux.HandleFunc("/api/categories", handler.CategoriesHandler(cfg, log))
	mux.HandleFunc("/api/detections", handler.ListDetectionsHandler(manager, log))
	mux.HandleFunc("/api/detections/stats", handler.StatsHandler(manager, log))
	if hub != nil {
		mux.HandleFunc("/api/events", handler.EventsWebsocketHandler(hub, log))
	}

	// Log endpoints
	mux.HandleFunc("/logs/info", handler.ShowLogsHandler(log, logger.InfoFile))
	mux.HandleFunc("/logs/warning", handler.ShowLogsHandler(log, logger.WarningFile))
	mux.HandleFunc("/logs/error", handler.ShowLogsHandler(log, logger.ErrorFile))

	mux.HandleFunc("/logs/info/clear", handler.ClearLogsHandler(log, logger.InfoFile))
	mux.HandleFunc("/logs/warning/clear", handler.ClearLogsHandler(log, logger.WarningFile))
	mux.HandleFunc("/logs/error/clear", handler.ClearLogsHandler(log, logger.ErrorFile))

	return middleware.RecoverMiddleware(log, middleware.LoggingMiddleware(log, mux))
}
