// Package api talks to the MCQ generator backend over its JSON HTTP contract.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tinytelemetry/mcqpdf/internal/model"
)

const (
	pathCreateJob     = "/api/generate-mcq-pdf"
	pathJobStatus     = "/api/job-status/"
	pathBrowserStatus = "/api/browser-status"

	// maxErrorBody caps how much of a failed response is read for its detail.
	maxErrorBody = 64 * 1024
)

// StatusError is returned for any non-2xx backend response.
type StatusError struct {
	Code   int
	Detail string
	Op     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Code)
}

// StatusCode exposes the HTTP status for failure classification.
func (e *StatusError) StatusCode() int { return e.Code }

// Client implements model.JobAPI over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient creates a client for the backend at baseURL. Per-call timeouts
// come from the caller's context, so the default http.Client has none.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend origin with no trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// CreateJob starts a generation job.
func (c *Client) CreateJob(ctx context.Context, req model.CreateJobRequest) (model.Job, error) {
	var job model.Job
	body, err := json.Marshal(req)
	if err != nil {
		return job, fmt.Errorf("api: marshal create request: %w", err)
	}
	err = c.do(ctx, "create job", http.MethodPost, pathCreateJob, bytes.NewReader(body), &job)
	return job, err
}

// JobStatus fetches the latest snapshot of a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (model.Job, error) {
	var job model.Job
	err := c.do(ctx, "job status", http.MethodGet, pathJobStatus+url.PathEscape(jobID), nil, &job)
	return job, err
}

// BrowserStatus performs the lightweight liveness probe.
func (c *Client) BrowserStatus(ctx context.Context) (model.BrowserStatus, error) {
	var status model.BrowserStatus
	err := c.do(ctx, "browser status", http.MethodGet, pathBrowserStatus, nil, &status)
	return status, err
}

// ResolveURL joins the backend origin with a server-relative path such as
// a job's pdf_url.
func (c *Client) ResolveURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}

// Download streams the document at pdfURL into w. It is a single direct
// fetch; no retry policy applies.
func (c *Client) Download(ctx context.Context, pdfURL string, w io.Writer) (int64, error) {
	if pdfURL == "" {
		return 0, fmt.Errorf("api: download: empty url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ResolveURL(pdfURL), nil)
	if err != nil {
		return 0, fmt.Errorf("api: download: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("api: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, newStatusError("download", resp)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("api: download: %w", err)
	}
	return n, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(op, resp)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("api: %s: decode response: %w", op, err)
	}
	return nil
}

func newStatusError(op string, resp *http.Response) *StatusError {
	se := &StatusError{Code: resp.StatusCode, Op: "api: " + op}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Detail interface{} `json:"detail"`
		Error  string      `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil {
		switch d := payload.Detail.(type) {
		case string:
			se.Detail = d
		case nil:
			se.Detail = payload.Error
		default:
			if b, err := json.Marshal(d); err == nil {
				se.Detail = string(b)
			}
		}
	}
	return se
}
