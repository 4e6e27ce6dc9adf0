package indexing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// HTTPClient implements Client against the provider's REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	indexID    string
	httpClient *http.Client
}

// NewHTTPClient constructs a provider client.
func NewHTTPClient(baseURL, apiKey, indexID string) (*HTTPClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("INDEXING_API_KEY is required")
	}
	if strings.TrimSpace(indexID) == "" {
		return nil, fmt.Errorf("INDEXING_INDEX_ID is required")
	}
	timeout := 30 * time.Second
	if raw := strings.TrimSpace(os.Getenv("INDEXING_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		indexID: indexID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type createTaskRequest struct {
	IndexID  string `json:"index_id"`
	VideoURL string `json:"video_url"`
}

type taskResponse struct {
	ID      string `json:"_id"`
	Status  string `json:"status"`
	VideoID string `json:"video_id,omitempty"`
	Process *struct {
		Percentage float64 `json:"percentage"`
	} `json:"process,omitempty"`
	Message string `json:"message,omitempty"`
}

type summarizeRequest struct {
	VideoID string `json:"video_id"`
	Type    string `json:"type"`
}

type summarizeResponse struct {
	Summary    string      `json:"summary,omitempty"`
	Chapters   []Chapter   `json:"chapters,omitempty"`
	Highlights []Highlight `json:"highlights,omitempty"`
	Message    string      `json:"message,omitempty"`
}

type videoResponse struct {
	ID       string `json:"_id"`
	Metadata struct {
		Duration float64 `json:"duration"`
		Width    int     `json:"width"`
		Height   int     `json:"height"`
		FPS      float64 `json:"fps"`
		Filename string  `json:"filename"`
	} `json:"metadata"`
	HLS *struct {
		Thumbnails []string `json:"thumbnail_urls"`
	} `json:"hls,omitempty"`
	Message string `json:"message,omitempty"`
}

// CreateTask registers a video URL for indexing and returns the task id.
func (c *HTTPClient) CreateTask(ctx context.Context, sourceURL string) (string, error) {
	var resp taskResponse
	err := c.do(ctx, http.MethodPost, "/tasks", createTaskRequest{
		IndexID:  c.indexID,
		VideoURL: sourceURL,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("indexing create task: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("indexing create task: empty task id")
	}
	return resp.ID, nil
}

// GetTaskStatus returns the task's current status and progress percentage.
func (c *HTTPClient) GetTaskStatus(ctx context.Context, taskID string) (Task, error) {
	var resp taskResponse
	if err := c.do(ctx, http.MethodGet, "/tasks/"+taskID, nil, &resp); err != nil {
		return Task{}, fmt.Errorf("indexing task status: %w", err)
	}
	task := Task{
		ID:      resp.ID,
		Status:  normalizeTaskStatus(resp.Status),
		VideoID: resp.VideoID,
	}
	if resp.Process != nil {
		task.Percentage = clampPercentage(int(resp.Process.Percentage))
	}
	if task.Status == TaskStatusReady {
		task.Percentage = 100
	}
	return task, nil
}

// Summarize returns a prose summary for an indexed video.
func (c *HTTPClient) Summarize(ctx context.Context, videoID string) (string, error) {
	var resp summarizeResponse
	err := c.do(ctx, http.MethodPost, "/summarize", summarizeRequest{VideoID: videoID, Type: "summary"}, &resp)
	if err != nil {
		return "", fmt.Errorf("indexing summarize: %w", err)
	}
	return resp.Summary, nil
}

// Chapters returns a chapter breakdown for an indexed video.
func (c *HTTPClient) Chapters(ctx context.Context, videoID string) ([]Chapter, error) {
	var resp summarizeResponse
	err := c.do(ctx, http.MethodPost, "/summarize", summarizeRequest{VideoID: videoID, Type: "chapter"}, &resp)
	if err != nil {
		return nil, fmt.Errorf("indexing chapters: %w", err)
	}
	return resp.Chapters, nil
}

// Highlights returns a highlight list for an indexed video.
func (c *HTTPClient) Highlights(ctx context.Context, videoID string) ([]Highlight, error) {
	var resp summarizeResponse
	err := c.do(ctx, http.MethodPost, "/summarize", summarizeRequest{VideoID: videoID, Type: "highlight"}, &resp)
	if err != nil {
		return nil, fmt.Errorf("indexing highlights: %w", err)
	}
	return resp.Highlights, nil
}

// GetVideoMetadata returns technical metadata and thumbnails for an indexed video.
func (c *HTTPClient) GetVideoMetadata(ctx context.Context, videoID string) (VideoMetadata, error) {
	var resp videoResponse
	if err := c.do(ctx, http.MethodGet, "/videos/"+videoID, nil, &resp); err != nil {
		return VideoMetadata{}, fmt.Errorf("indexing video metadata: %w", err)
	}
	meta := VideoMetadata{
		Duration: resp.Metadata.Duration,
		Width:    resp.Metadata.Width,
		Height:   resp.Metadata.Height,
		FPS:      resp.Metadata.FPS,
		Filename: resp.Metadata.Filename,
	}
	if resp.HLS != nil {
		meta.Thumbnails = resp.HLS.Thumbnails
	}
	return meta, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractMessage(data)
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return fmt.Errorf("http status %d: %s", resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractMessage(data []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}
	return envelope.Message
}

func normalizeTaskStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ready":
		return TaskStatusReady
	case "failed", "error":
		return TaskStatusFailed
	case "indexing", "validating", "queued", "pending", "uploading":
		return TaskStatusIndexing
	default:
		return TaskStatusPending
	}
}

func clampPercentage(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

var _ Client = (*HTTPClient)(nil)
