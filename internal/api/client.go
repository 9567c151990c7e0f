package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"speechtrim/internal/config"
	"speechtrim/internal/jobs"
)

// ErrJobNotFound is returned by Client.Status for unknown ids.
var ErrJobNotFound = errors.New(NotFoundMessage)

// Error is a non-2xx reply from the daemon.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running daemon over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for baseURL, e.g. http://127.0.0.1:8000.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// BaseURL derives the address a local client should dial from the bind
// address, replacing wildcard hosts with loopback.
func BaseURL(cfg *config.Config) string {
	host, port, err := net.SplitHostPort(cfg.Paths.APIBind)
	if err != nil {
		return "http://" + cfg.Paths.APIBind
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Upload streams the file at path to the daemon.
func (c *Client) Upload(ctx context.Context, path string) (UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadResponse{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/videos/upload/", pr)
	if err != nil {
		return UploadResponse{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResponse
	if err := c.do(req, &out); err != nil {
		return UploadResponse{}, err
	}
	return out, nil
}

// Status fetches one job.
func (c *Client) Status(ctx context.Context, id string) (*JobStatus, error) {
	var out JobStatus
	err := c.get(ctx, "/api/videos/status/"+url.PathEscape(id)+"/", &out)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// List fetches jobs, optionally filtered by status.
func (c *Client) List(ctx context.Context, statuses ...jobs.Status) ([]JobStatus, error) {
	path := "/api/videos/"
	if len(statuses) > 0 {
		q := url.Values{}
		for _, s := range statuses {
			q.Add("status", string(s))
		}
		path += "?" + q.Encode()
	}
	var out JobListResponse
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// DaemonStatus fetches /api/status.
func (c *Client) DaemonStatus(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.get(ctx, "/api/status", &out)
	return out, err
}

// WaitForTerminal polls Status until the job completes or fails. onUpdate is
// called whenever stage or progress changes.
func (c *Client) WaitForTerminal(ctx context.Context, id string, interval time.Duration, onUpdate func(JobStatus)) (*JobStatus, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last JobStatus
	for {
		status, err := c.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if onUpdate != nil && (status.Stage != last.Stage || status.Progress != last.Progress) {
			onUpdate(*status)
		}
		last = *status
		if status.Status == string(jobs.StatusCompleted) || status.Status == string(jobs.StatusFailed) {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&body); decodeErr != nil || body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
		return &Error{StatusCode: resp.StatusCode, Message: body.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode daemon response: %w", err)
	}
	return nil
}
