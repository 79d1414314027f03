// Package genapi is a client for the summary generation service: submit a
// task, poll until it completes, download the artifact. The overall deadline
// for one generation belongs to this client, not the orchestrator.
package genapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/recapbot/recapbot/internal/types"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultTimeout      = 2 * time.Minute
)

// Client talks to the generation service.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	timeout      time.Duration
}

// New creates a client. Zero durations fall back to the defaults.
func New(baseURL, apiKey string, pollInterval, timeout time.Duration) *Client {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      baseURL,
		apiKey:       apiKey,
		pollInterval: pollInterval,
		timeout:      timeout,
	}
}

type taskStatus struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"` // "pending", "running", "done", "failed"
	Error  string `json:"error,omitempty"`
}

// Generate submits a summary task for the candidate, polls it to completion
// and downloads the artifact bytes.
func (c *Client) Generate(ctx context.Context, cand types.Candidate) (*types.GenerationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	taskID, err := c.submit(ctx, cand)
	if err != nil {
		return nil, fmt.Errorf("submit generation task: %w", err)
	}

	if err := c.awaitDone(ctx, taskID); err != nil {
		return nil, fmt.Errorf("generation task %s: %w", taskID, err)
	}

	artifact, err := c.fetchArtifact(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("download artifact for task %s: %w", taskID, err)
	}

	return &types.GenerationResult{
		Artifact: artifact,
		TaskID:   taskID,
		Duration: time.Since(start),
	}, nil
}

func (c *Client) submit(ctx context.Context, cand types.Candidate) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"text":   cand.Text,
		"author": cand.AuthorHandle,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tasks", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var status taskStatus
	if err := c.do(req, &status); err != nil {
		return "", err
	}
	if status.TaskID == "" {
		return "", fmt.Errorf("service accepted task but returned no id")
	}
	return status.TaskID, nil
}

// awaitDone polls the task until it reaches a terminal status or ctx expires.
func (c *Client) awaitDone(ctx context.Context, taskID string) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tasks/"+taskID, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		var status taskStatus
		if err := c.do(req, &status); err != nil {
			return err
		}

		switch status.Status {
		case "done":
			return nil
		case "failed":
			if status.Error != "" {
				return fmt.Errorf("task failed: %s", status.Error)
			}
			return fmt.Errorf("task failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchArtifact(ctx context.Context, taskID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tasks/"+taskID+"/artifact", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
