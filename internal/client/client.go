package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vehicledetect/internal/dto"
	"vehicledetect/internal/model"
)

const defaultTimeout = 60 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running detection server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Detect uploads the image at imagePath. An empty category lets the server
// apply its default.
func (c *Client) Detect(ctx context.Context, imagePath, category string) (bool, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return false, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return false, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return false, fmt.Errorf("copy image data: %w", err)
	}
	if category != "" {
		if err := writer.WriteField("category", category); err != nil {
			return false, fmt.Errorf("write category: %w", err)
		}
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", body)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result dto.DetectResponse
	if err := c.do(req, &result); err != nil {
		return false, err
	}
	return result.Result, nil
}

// History fetches one page of detection records, newest first.
func (c *Client) History(ctx context.Context, category string, limit, page int) (*dto.DetectionsData, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}

	u := c.baseURL + "/api/detections"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var data dto.DetectionsData
	if err := c.do(req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Stats fetches the history summary.
func (c *Client) Stats(ctx context.Context) (*model.DetectionStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/detections/stats", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var stats model.DetectionStats
	if err := c.do(req, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) Categories(ctx context.Context) (*dto.CategoriesData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/categories", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var data dto.CategoriesData
	if err := c.do(req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// CheckHealth fails unless the server answers /health with 200.
func (c *Client) CheckHealth(ctx context.Context) (*dto.HealthData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var data dto.HealthData
	if err := c.do(req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e dto.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
