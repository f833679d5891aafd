package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"vehicledetect/internal/config"
	"vehicledetect/internal/logger"
)

// ErrTooLarge is returned when an upload exceeds the configured size.
var ErrTooLarge = errors.New("uploaded file is too large")

// StagedFile is an upload written to the staging directory for one request.
type StagedFile struct {
	Path         string
	OriginalName string
	Size         int64
}

// StagingService writes uploads to a local directory and removes leftovers
// older than maxAge on every sweep.
type StagingService struct {
	dir           string
	maxAge        time.Duration
	sweepInterval time.Duration
	maxBytes      int64
	logger        *logger.Logger
}

// NewStagingService creates the staging directory if it does not exist.
func NewStagingService(cfg *config.Config, logger *logger.Logger) (*StagingService, error) {
	if err := os.MkdirAll(cfg.UploadDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	return &StagingService{
		dir:           cfg.UploadDirectory,
		maxAge:        cfg.StagingMaxAge,
		sweepInterval: cfg.StagingSweepInterval,
		maxBytes:      cfg.MaxUploadBytes(),
		logger:        logger,
	}, nil
}

// Dir returns the staging directory.
func (s *StagingService) Dir() string {
	return s.dir
}

// Stage copies r into a uniquely named file. The client filename only
// contributes its extension, so identical names from concurrent requests
// never share a path.
func (s *StagingService) Stage(originalName string, r io.Reader) (*StagedFile, error) {
	name := uuid.NewString() + safeExtension(originalName)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create staged file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}

	n, err := io.Copy(f, src)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to write staged file: %w", err)
	}

	return &StagedFile{Path: path, OriginalName: originalName, Size: n}, nil
}

// Remove deletes a staged file. A file that is already gone is not an error.
func (s *StagingService) Remove(f *StagedFile) error {
	if f == nil {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove staged file %s: %w", f.Path, err)
	}
	return nil
}

// Run sweeps the staging directory every sweepInterval until ctx is done.
func (s *StagingService) Run(ctx context.Context) {
	if s.sweepInterval <= 0 || s.maxAge <= 0 {
		return
	}

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(time.Now())
		}
	}
}

// Sweep removes regular files whose modification time is older than maxAge
// relative to now. It returns how many files were removed.
func (s *StagingService) Sweep(now time.Time) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("Error reading staging directory: %v", err)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= s.maxAge {
			continue
		}

		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			s.logger.Error("Error removing stale staged file %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Warning("Removed %d stale staged file(s)", removed)
	}
	return removed
}

// safeExtension keeps a short alphanumeric extension from the client name.
func safeExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
