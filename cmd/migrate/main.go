package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"vehicledetect/internal/config"
	"vehicledetect/internal/model"
	"vehicledetect/internal/repository/sqlite"
)

// migrate brings the detection history database to the current schema and
// optionally prunes old records while the server is stopped.
func main() {
	cfg := config.Load()

	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	olderThan := flag.Duration("older-than", 0, "Delete detections older than this (0 keeps everything)")
	vacuum := flag.Bool("vacuum", false, "Reclaim free space after pruning")
	flag.Parse()

	fmt.Printf("Migrating detection history in %s\n", *dbPath)

	if dir := filepath.Dir(*dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
	}

	// Opening the database applies the schema.
	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewDetectionRepository(db)

	if *olderThan > 0 {
		cutoff := time.Now().Add(-*olderThan)
		deleted, err := repo.DeleteOlderThan(cutoff)
		if err != nil {
			log.Fatalf("Failed to prune detections: %v", err)
		}
		fmt.Printf("🧹 Deleted %d detection(s) older than %s\n", deleted, cutoff.Format(time.RFC3339))
	}

	if *vacuum {
		if err := db.Vacuum(); err != nil {
			log.Fatalf("Failed to vacuum database: %v", err)
		}
	}

	total, err := repo.Count(&model.DetectionFilter{})
	if err != nil {
		log.Fatalf("Failed to count detections: %v", err)
	}
	fmt.Printf("✅ Database ready with %d detection(s)\n", total)
}
