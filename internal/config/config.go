package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Supported model families.
const (
	FamilySSD  = "ssd"
	FamilyYOLO = "yolo"
)

type Config struct {
	Port                 int
	ModelFamily          string // ssd (TensorFlow SSD MobileNet) or yolo (YOLOv8 ONNX)
	ModelPath            string
	ConfigPath           string  // only used by the ssd family
	ConfidenceThreshold  float64 // minimum score for a box to count
	DetectionWorkers     int     // number of networks loaded, one request per network at a time
	DefaultCategory      string
	UploadDirectory      string
	MaxUploadSize        int64 // in MB
	StagingMaxAge        time.Duration
	StagingSweepInterval time.Duration
	DatabasePath         string
	HistoryRetention     time.Duration // 0 keeps history forever
	HistoryBufferLimit   int           // records held before a batch write
	HistoryFlushInterval time.Duration
	LogDirectory         string
	EventsEnabled        bool
}

// Load reads .env (when present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                 getEnvAsInt("PORT", 4040),
		ModelFamily:          getEnv("MODEL_FAMILY", FamilySSD),
		ModelPath:            getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:           getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		ConfidenceThreshold:  getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.5),
		DetectionWorkers:     getEnvAsInt("DETECTION_WORKERS", 2),
		DefaultCategory:      getEnv("DEFAULT_CATEGORY", "truck"),
		UploadDirectory:      getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadSize:        getEnvAsInt64("MAX_UPLOAD_SIZE", 32),
		StagingMaxAge:        getEnvAsDuration("STAGING_MAX_AGE", 10*time.Minute),
		StagingSweepInterval: getEnvAsDuration("STAGING_SWEEP_INTERVAL", time.Minute),
		DatabasePath:         getEnv("DATABASE_PATH", "detections.db"),
		HistoryRetention:     getEnvAsDuration("HISTORY_RETENTION", 30*24*time.Hour),
		HistoryBufferLimit:   getEnvAsInt("HISTORY_BUFFER_LIMIT", 32),
		HistoryFlushInterval: getEnvAsDuration("HISTORY_FLUSH_INTERVAL", 5*time.Second),
		LogDirectory:         getEnv("LOG_DIR", filepath.Join(".", "logs")),
		EventsEnabled:        getEnvAsBool("EVENTS_ENABLED", true),
	}
}

// Validate reports the first setting the server cannot start with.
// Category names are checked by the caller against the model package.
func (c *Config) Validate() error {
	if c.ModelFamily != FamilySSD && c.ModelFamily != FamilyYOLO {
		return fmt.Errorf("unknown model family %q", c.ModelFamily)
	}
	if c.ModelPath == "" {
		return errors.New("model path is empty")
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold >= 1 {
		return fmt.Errorf("confidence threshold must be in (0, 1), got %v", c.ConfidenceThreshold)
	}
	if c.DetectionWorkers < 1 {
		return fmt.Errorf("detection workers must be at least 1, got %d", c.DetectionWorkers)
	}
	if c.MaxUploadSize < 1 {
		return fmt.Errorf("max upload size must be at least 1 MB, got %d", c.MaxUploadSize)
	}
	if c.UploadDirectory == "" {
		return errors.New("upload directory is empty")
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadSize << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
