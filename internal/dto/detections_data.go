package dto

import "vehicledetect/internal/model"

// DetectionsData is a paginated response payload for the detection history.
type DetectionsData struct {
	Detections  []model.Detection `json:"detections"`
	Length      int               `json:"length"`
	TotalPages  int               `json:"totalPages"`
	CurrentPage int               `json:"currentPage"`
	Limit       int               `json:"pageSize"`
}

// CategoriesData lists the categories a client may ask for.
type CategoriesData struct {
	Categories []string `json:"categories"`
	Default    string   `json:"default"`
}

// HealthData reports readiness of the service.
type HealthData struct {
	Status      string `json:"status"`
	Workers     int    `json:"workers"`
	ModelFamily string `json:"modelFamily"`
	Viewers     int    `json:"viewers"`
}
