package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vehicledetect/internal/dto"
	"vehicledetect/internal/model"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/detect", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "No file part in the request"})
			return
		}
		category := r.FormValue("category")
		if category == "" {
			category = "truck"
		}
		if _, err := model.ParseCategory(category); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(dto.ErrorResponse{Error: err.Error()})
			return
		}
		_, h, _ := r.FormFile("file")
		json.NewEncoder(w).Encode(dto.DetectResponse{Result: strings.Contains(h.Filename, category)})
	})
	mux.HandleFunc("/api/detections", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(dto.DetectionsData{
			Detections: []model.Detection{{
				ID:         1,
				Filename:   "truck.jpg",
				Category:   "truck",
				Result:     true,
				Confidence: 0.87,
				DurationMs: 42,
				CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			}},
			Length:      1,
			TotalPages:  1,
			CurrentPage: 1,
			Limit:       20,
		})
	})
	mux.HandleFunc("/api/detections/stats", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.DetectionStats{
			Total:       3,
			Failed:      1,
			Positive:    map[string]int{"car": 1},
			PerCategory: map[string]int{"car": 2, "truck": 1},
		})
	})
	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(dto.CategoriesData{Categories: model.CategoryNames(), Default: "truck"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCmd(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeImages(t *testing.T, names ...string) []string {
	t.Helper()

	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		if err := os.WriteFile(paths[i], []byte("img"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	return paths
}

func TestDetectCmd(t *testing.T) {
	srv := setupTestServer(t)
	paths := writeImages(t, "car.jpg", "road.jpg")

	out, err := runCmd(t, srv, append([]string{"detect", "--category", "car"}, paths...)...)
	if err != nil {
		t.Fatalf("detect failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "car.jpg: car found") {
		t.Errorf("Expected positive line, got:\n%s", out)
	}
	if !strings.Contains(out, "road.jpg: no car") {
		t.Errorf("Expected negative line, got:\n%s", out)
	}
}

func TestDetectCmd_ServerErrorFailsCommand(t *testing.T) {
	srv := setupTestServer(t)
	paths := writeImages(t, "bus.jpg")

	out, err := runCmd(t, srv, "detect", "-c", "bus", paths[0])
	if err == nil {
		t.Fatal("Expected error for unsupported category")
	}
	if !strings.Contains(out, "unsupported category") {
		t.Errorf("Expected server message in output, got:\n%s", out)
	}
}

func TestDetectCmd_RequiresImage(t *testing.T) {
	srv := setupTestServer(t)

	if _, err := runCmd(t, srv, "detect"); err == nil {
		t.Error("Expected error without image arguments")
	}
}

func TestHistoryCmd(t *testing.T) {
	srv := setupTestServer(t)

	out, err := runCmd(t, srv, "history", "--limit", "5")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	for _, want := range []string{"truck.jpg", "0.87", "42ms", "Page 1 of 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestStatsCmd(t *testing.T) {
	srv := setupTestServer(t)

	out, err := runCmd(t, srv, "stats")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if !strings.Contains(out, "Total requests: 3 (failed: 1)") {
		t.Errorf("Unexpected output:\n%s", out)
	}
}

func TestCategoriesCmd(t *testing.T) {
	srv := setupTestServer(t)

	out, err := runCmd(t, srv, "categories")
	if err != nil {
		t.Fatalf("categories failed: %v", err)
	}
	for _, c := range model.CategoryNames() {
		if !strings.Contains(out, c) {
			t.Errorf("Expected %s in output:\n%s", c, out)
		}
	}
	if !strings.Contains(out, "(default)") {
		t.Errorf("Expected default marker in output:\n%s", out)
	}
}
