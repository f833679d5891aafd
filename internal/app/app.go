package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"vehicledetect/internal/config"
	"vehicledetect/internal/logger"
	"vehicledetect/internal/model"
	"vehicledetect/internal/repository/sqlite"
	"vehicledetect/internal/routes"
	"vehicledetect/internal/service"
	"vehicledetect/internal/service/ai"
	"vehicledetect/internal/service/storage"
	ws "vehicledetect/internal/service/websocket"
)

const (
	shutdownTimeout   = 10 * time.Second
	retentionInterval = time.Hour
	readHeaderTimeout = 10 * time.Second
)

type App struct {
	config         *config.Config
	logger         *logger.Logger
	db             *sqlite.DB
	detectionRepo  *sqlite.DetectionRepository
	stagingService *storage.StagingService
	historyBuffer  *storage.HistoryBuffer
	hubService     *ws.HubService
	manager        *service.Manager
}

// NewApp wires every component. It fails when any detection network cannot be
// loaded, so the caller never binds a listener without a working model.
func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := model.ParseCategory(cfg.DefaultCategory); err != nil {
		return nil, fmt.Errorf("invalid default category: %w", err)
	}

	log, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log}

	detectors := make([]service.Detector, 0, cfg.DetectionWorkers)
	for i := 0; i < cfg.DetectionWorkers; i++ {
		ds, err := ai.NewDetectorService(cfg, log) // one network per worker
		if err != nil {
			for _, d := range detectors {
				d.Close()
			}
			log.Error("Error initializing detection model: %v", err)
			log.Close()
			return nil, fmt.Errorf("failed to load detection model: %w", err)
		}
		detectors = append(detectors, ds)
	}

	closeOnErr := func(err error) (*App, error) {
		for _, d := range detectors {
			d.Close()
		}
		a.Close()
		return nil, err
	}

	a.stagingService, err = storage.NewStagingService(cfg, log)
	if err != nil {
		return closeOnErr(err)
	}

	a.db, err = sqlite.New(cfg.DatabasePath)
	if err != nil {
		return closeOnErr(err)
	}
	a.detectionRepo = sqlite.NewDetectionRepository(a.db)

	var events service.EventPublisher
	if cfg.EventsEnabled {
		a.hubService = ws.NewHubService(log)
		events = a.hubService
	}

	a.manager, err = service.NewManager(detectors, a.detectionRepo, events, log)
	if err != nil {
		return closeOnErr(err)
	}
	a.historyBuffer = storage.NewHistoryBuffer(cfg, log, a.detectionRepo)
	a.manager.UseRecorder(a.historyBuffer)

	return a, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	bgCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	// The history buffer does a final flush on stop, so the database must
	// outlive every background service.
	defer func() {
		cancel()
		wg.Wait()
	}()

	// Start background services
	start := func(run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(bgCtx)
		}()
	}
	start(a.stagingService.Run)
	start(a.historyBuffer.Run)
	start(a.runRetention)
	if a.hubService != nil {
		start(a.hubService.Run)
	}

	router := routes.SetupRoutes(a.manager, a.stagingService, a.hubService, a.config, a.logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           router,
		ErrorLog:          a.logger.StdLogger(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	fmt.Printf("🚀 Detection Server\n")
	fmt.Printf("📍 URL: http://localhost:%d/detect\n", a.config.Port)
	fmt.Printf("🤖 AI Model: %s (%s, %d worker(s))\n", a.config.ModelPath, a.config.ModelFamily, a.config.DetectionWorkers)
	fmt.Printf("📁 Uploads: %s\n", a.config.UploadDirectory)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// runRetention trims history older than HistoryRetention once an hour.
func (a *App) runRetention(ctx context.Context) {
	if a.config.HistoryRetention <= 0 {
		return
	}

	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := a.detectionRepo.DeleteOlderThan(time.Now().Add(-a.config.HistoryRetention))
			if err != nil {
				a.logger.Error("Error trimming detection history: %v", err)
				continue
			}
			if deleted > 0 {
				a.logger.Info("Trimmed %d detection record(s)", deleted)
			}
		}
	}
}

// Close releases detectors, the database and log files.
func (a *App) Close() {
	if a.manager != nil {
		a.manager.Stop()
		a.manager = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Error closing database: %v", err)
		}
		a.db = nil
	}
	if a.logger != nil {
		a.logger.Close()
	}
}
