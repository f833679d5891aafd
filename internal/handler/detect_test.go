package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vehicledetect/internal/config"
	"vehicledetect/internal/logger"
	"vehicledetect/internal/model"
	"vehicledetect/internal/service"
	"vehicledetect/internal/service/storage"
)

// ========================================
// Test Setup Helpers
// ========================================

// fakeDetector answers from a fixed table: imagesWith[category] lists file
// contents that "contain" that category.
type fakeDetector struct {
	imagesWith map[model.Category][]string
	err        error
	mu         sync.Mutex
	seenPaths  []string
}

func (f *fakeDetector) Detect(imagePath string, category model.Category) (model.Outcome, error) {
	f.mu.Lock()
	f.seenPaths = append(f.seenPaths, imagePath)
	f.mu.Unlock()

	if f.err != nil {
		return model.Outcome{}, f.err
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return model.Outcome{}, err
	}
	if strings.HasPrefix(string(data), "garbage") {
		return model.Outcome{}, fmt.Errorf("%w from the path: %s", model.ErrImageDecode, imagePath)
	}
	for _, content := range f.imagesWith[category] {
		if string(data) == content {
			return model.Outcome{Present: true, Confidence: 0.9}, nil
		}
	}
	return model.Outcome{}, nil
}

func (f *fakeDetector) Close() error { return nil }

func setupTestHandler(t *testing.T, det *fakeDetector) (http.HandlerFunc, string) {
	t.Helper()

	uploadDir := filepath.Join(t.TempDir(), "uploads")
	cfg := &config.Config{
		DefaultCategory:      "truck",
		UploadDirectory:      uploadDir,
		MaxUploadSize:        1,
		StagingMaxAge:        time.Minute,
		StagingSweepInterval: time.Minute,
	}
	log := logger.NewDiscard()

	staging, err := storage.NewStagingService(cfg, log)
	if err != nil {
		t.Fatalf("NewStagingService failed: %v", err)
	}
	manager, err := service.NewManager([]service.Detector{det}, nil, nil, log)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	return DetectHandler(manager, staging, cfg, log), uploadDir
}

func newVehicleDetector() *fakeDetector {
	return &fakeDetector{
		imagesWith: map[model.Category][]string{
			model.CategoryCar:        {"street-with-car"},
			model.CategoryTruck:      {"highway-with-truck"},
			model.CategoryBicycle:    {"lane-with-bicycle"},
			model.CategoryMotorcycle: {"parking-with-motorcycle"},
		},
	}
}

type formPart struct {
	name     string
	filename *string
	content  string
}

func strPtr(s string) *string { return &s }

func multipartRequest(t *testing.T, parts ...formPart) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		if p.filename != nil {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, p.name, *p.filename))
			h.Set("Content-Type", "application/octet-stream")
		} else {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, p.name))
		}
		w, err := writer.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart failed: %v", err)
		}
		w.Write([]byte(p.content))
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/detect", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Response is not JSON: %v (%q)", err, rec.Body.String())
	}
	return out
}

func assertNoStagedFiles(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty staging dir, found %d file(s)", len(entries))
	}
}

// ========================================
// Detect Handler Tests
// ========================================

func TestDetectHandler_PresentForEveryCategory(t *testing.T) {
	contents := map[string]string{
		"car":        "street-with-car",
		"truck":      "highway-with-truck",
		"bicycle":    "lane-with-bicycle",
		"motorcycle": "parking-with-motorcycle",
	}

	for category, content := range contents {
		t.Run(category, func(t *testing.T) {
			h, dir := setupTestHandler(t, newVehicleDetector())

			rec := httptest.NewRecorder()
			h(rec, multipartRequest(t,
				formPart{name: "file", filename: strPtr("img.jpg"), content: content},
				formPart{name: "category", content: category},
			))

			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if got := decodeBody(t, rec)["result"]; got != true {
				t.Errorf("Expected result true, got %v", got)
			}
			assertNoStagedFiles(t, dir)
		})
	}
}

func TestDetectHandler_AbsentForEveryCategory(t *testing.T) {
	for _, category := range model.CategoryNames() {
		t.Run(category, func(t *testing.T) {
			h, dir := setupTestHandler(t, newVehicleDetector())

			rec := httptest.NewRecorder()
			h(rec, multipartRequest(t,
				formPart{name: "file", filename: strPtr("empty-road.jpg"), content: "empty-road"},
				formPart{name: "category", content: category},
			))

			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if got := decodeBody(t, rec)["result"]; got != false {
				t.Errorf("Expected result false, got %v", got)
			}
			assertNoStagedFiles(t, dir)
		})
	}
}

func TestDetectHandler_DefaultCategoryIsTruck(t *testing.T) {
	h, _ := setupTestHandler(t, newVehicleDetector())

	rec := httptest.NewRecorder()
	h(rec, multipartRequest(t,
		formPart{name: "file", filename: strPtr("hw.jpg"), content: "highway-with-truck"},
	))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := decodeBody(t, rec)["result"]; got != true {
		t.Errorf("Expected truck to be detected by default, got %v", got)
	}
}

func TestDetectHandler_UnsupportedCategory(t *testing.T) {
	det := newVehicleDetector()
	h, dir := setupTestHandler(t, det)

	rec := httptest.NewRecorder()
	h(rec, multipartRequest(t,
		formPart{name: "file", filename: strPtr("img.jpg"), content: "highway-with-truck"},
		formPart{name: "category", content: "airplane"},
	))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	msg, _ := decodeBody(t, rec)["error"].(string)
	if !strings.Contains(msg, "airplane") {
		t.Errorf("Expected error to reference the category, got %q", msg)
	}
	if len(det.seenPaths) != 0 {
		t.Error("Detector should not run for an unsupported category")
	}
	assertNoStagedFiles(t, dir)
}

func TestDetectHandler_EmptyCategoryIsUnsupported(t *testing.T) {
	h, _ := setupTestHandler(t, newVehicleDetector())

	rec := httptest.NewRecorder()
	h(rec, multipartRequest(t,
		formPart{name: "file", filename: strPtr("img.jpg"), content: "x"},
		formPart{name: "category", content: ""},
	))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 for empty category, got %d", rec.Code)
	}
}

func TestDetectHandler_NoFilePart(t *testing.T) {
	h, _ := setupTestHandler(t, newVehicleDetector())

	rec := httptest.NewRecorder()
	h(rec, multipartRequest(t, formPart{name: "category", content: "car"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"No file part in the request"}` {
		t.Errorf("Unexpected body %s", got)
	}
}

func TestDetectHandler_NotMultipart(t *testing.T) {
	h, _ := setupTestHandler(t, newVehicleDetector())

	req := httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if decodeBody(t, rec)["error"] != msgNoFilePart {
		t.Errorf("Unexpected body %s", rec.Body.String())
	}
}

func TestDetectHandler_EmptyFilename(t *testing.T) {
	h, _ := setupTestHandler(t, newVehicleDetector())

	rec := httptest.NewRecorder()
	h(rec, multipartRequest(t,
		formPart{name: "file", filename: strPtr(""), content: ""},
		formPart{name: "category", content: "car"},
	))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"No selected file"}` {
		t.Errorf("Unexpected body %s", got)
	}
}

func TestDetectHandler_PlainFileFieldIsNotAFilePart(t *testing.T) {
	h, dir := setupTestHandler(t, newVehicleDetector())

	rec := httptest.NewRecorder()
	h(rec, multipartRequest(t,
		formPart{name: "file", content: "just text"},
		formPart{name: "category", content: "car"},
	))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"No file part in the request"}` {
		t.Errorf("Unexpected body %s", got)
	}
	assertNoStagedFiles(t, dir)
}

func TestDetectHandler_CategoryAfterFilePart(t *testing.T) {
	h, dir := setupTestHandler(t, newVehicleDetector())

	rec := httptest.NewRecorder()
	h(rec, multipartRequest(t,
		formPart{name: "file", filename: strPtr("bike.jpg"), content: "lane-with-bicycle"},
		formPart{name: "category", content: "bicycle"},
	))

	if got := decodeBody(t, rec)["result"]; rec.Code != http.StatusOK || got != true {
		t.Errorf("Expected 200 true, got %d %v", rec.Code, got)
	}
	assertNoStagedFiles(t, dir)
}

func TestDetectHandler_CategorySentAsFileIsIgnored(t *testing.T) {
	h, _ := setupTestHandler(t, newVehicleDetector())

	rec := httptest.NewRecorder()
	h(rec, multipartRequest(t,
		formPart{name: "category", filename: strPtr("cat.txt"), content: "car"},
		formPart{name: "file", filename: strPtr("hw.jpg"), content: "highway-with-truck"},
	))

	if got := decodeBody(t, rec)["result"]; rec.Code != http.StatusOK || got != true {
		t.Errorf("Expected default category truck to match, got %d %v", rec.Code, got)
	}
}

func TestDetectHandler_UndecodableImageCleansUp(t *testing.T) {
	h, dir := setupTestHandler(t, newVehicleDetector())

	rec := httptest.NewRecorder()
	h(rec, multipartRequest(t,
		formPart{name: "file", filename: strPtr("broken.jpg"), content: "garbage bytes"},
		formPart{name: "category", content: "car"},
	))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	msg, _ := decodeBody(t, rec)["error"].(string)
	if !strings.Contains(msg, "could not load the image") {
		t.Errorf("Unexpected error message %q", msg)
	}
	assertNoStagedFiles(t, dir)
}

func TestDetectHandler_DetectorFailureCleansUp(t *testing.T) {
	det := newVehicleDetector()
	det.err = model.ErrNetworkNotReady
	h, dir := setupTestHandler(t, det)

	rec := httptest.NewRecorder()
	h(rec, multipartRequest(t,
		formPart{name: "file", filename: strPtr("img.jpg"), content: "street-with-car"},
	))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	if decodeBody(t, rec)["error"] != model.ErrNetworkNotReady.Error() {
		t.Errorf("Unexpected body %s", rec.Body.String())
	}
	assertNoStagedFiles(t, dir)
}

func TestDetectHandler_TooLarge(t *testing.T) {
	h, dir := setupTestHandler(t, newVehicleDetector())

	rec := httptest.NewRecorder()
	h(rec, multipartRequest(t,
		formPart{name: "file", filename: strPtr("huge.jpg"), content: strings.Repeat("a", 3<<20)},
	))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected 413, got %d", rec.Code)
	}
	assertNoStagedFiles(t, dir)
}

func TestDetectHandler_TooLargeWithoutContentLength(t *testing.T) {
	h, dir := setupTestHandler(t, newVehicleDetector())

	req := multipartRequest(t,
		formPart{name: "file", filename: strPtr("huge.jpg"), content: strings.Repeat("a", 3<<20)},
	)
	// Hide the length so the limit is enforced while streaming.
	req.Body = io.NopCloser(io.MultiReader(req.Body))
	req.ContentLength = -1

	rec := httptest.NewRecorder()
	h(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected 413, got %d", rec.Code)
	}
	assertNoStagedFiles(t, dir)
}

func TestDetectHandler_MethodNotAllowed(t *testing.T) {
	h, _ := setupTestHandler(t, newVehicleDetector())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/detect", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestDetectHandler_SameFilenameConcurrently(t *testing.T) {
	det := newVehicleDetector()
	h, dir := setupTestHandler(t, det)

	requests := make([]*http.Request, 6)
	for i := range requests {
		content := "empty-road"
		if i%2 == 0 {
			content = "street-with-car"
		}
		requests[i] = multipartRequest(t,
			formPart{name: "file", filename: strPtr("same.jpg"), content: content},
			formPart{name: "category", content: "car"},
		)
	}

	var wg sync.WaitGroup
	results := make([]bool, len(requests))
	for i := range requests {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := httptest.NewRecorder()
			h(rec, requests[i])
			var body struct {
				Result bool `json:"result"`
			}
			json.Unmarshal(rec.Body.Bytes(), &body)
			results[i] = body.Result
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if want := i%2 == 0; got != want {
			t.Errorf("request %d: expected %v, got %v", i, want, got)
		}
	}

	seen := make(map[string]bool)
	for _, p := range det.seenPaths {
		if seen[p] {
			t.Errorf("staged path %s reused across requests", p)
		}
		seen[p] = true
	}
	assertNoStagedFiles(t, dir)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{fmt.Errorf("%w: bus", model.ErrUnsupportedCategory), http.StatusInternalServerError},
		{model.ErrImageDecode, http.StatusInternalServerError},
		{model.ErrNetworkNotReady, http.StatusInternalServerError},
		{storage.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{fmt.Errorf("wait: %w", context.Canceled), http.StatusServiceUnavailable},
		{fmt.Errorf("failed to write staged file: %w", &http.MaxBytesError{Limit: 1}), http.StatusRequestEntityTooLarge},
		{fmt.Errorf("anything else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusForError(tt.err); got != tt.expected {
			t.Errorf("statusForError(%v) = %d, expected %d", tt.err, got, tt.expected)
		}
	}
}
