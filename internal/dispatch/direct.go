package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const workerSecretHeader = "X-Worker-Secret"

// DirectTier calls a render worker's HTTP endpoint synchronously. It is the
// last resort before giving up on immediate execution.
type DirectTier struct {
	WorkerURL string
	Secret    string

	httpClient *http.Client
}

// NewDirectTier constructs the direct-call tier. An empty worker URL leaves
// it unconfigured.
func NewDirectTier(workerURL, secret string) *DirectTier {
	return &DirectTier{
		WorkerURL:  strings.TrimRight(workerURL, "/"),
		Secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *DirectTier) Name() string { return "direct" }

func (t *DirectTier) Configured() bool {
	return strings.TrimSpace(t.WorkerURL) != ""
}

func (t *DirectTier) Dispatch(ctx context.Context, task Task) (string, error) {
	body, err := json.Marshal(map[string]string{
		"jobId":     task.JobID,
		"projectId": task.ProjectID,
	})
	if err != nil {
		return "", fmt.Errorf("encode worker request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.WorkerURL+"/render", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build worker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.Secret != "" {
		req.Header.Set(workerSecretHeader, t.Secret)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("worker call: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("worker returned status %d", resp.StatusCode)
	}
	return task.JobID, nil
}

var _ Tier = (*DirectTier)(nil)
