package api

import (
	"context"
	"encoding/json"
	"errors"
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

	"songdub/internal/jobs"
)

// Client talks to a running daemon over HTTP.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient returns a client for the daemon at baseURL. A bare host:port is
// treated as http.
func NewClient(baseURL, token string) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{base: base, token: token, http: &http.Client{Timeout: 10 * time.Minute}}
}

// WithHTTPClient swaps the underlying transport.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.http = hc
	}
	return c
}

// RequestError is a non-2xx response from the daemon.
type RequestError struct {
	StatusCode int
	ErrorResponse
}

func (e *RequestError) Error() string {
	msg := e.ErrorResponse.Error
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Hint != "" {
		return fmt.Sprintf("daemon returned %d: %s (%s)", e.StatusCode, msg, e.Hint)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, msg)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound
}

// SubmitOptions are the optional form fields of a submission.
type SubmitOptions struct {
	Language string
	Start    float64
	End      float64
}

// Submit uploads the file at path and returns the new job ID.
func (c *Client) Submit(ctx context.Context, path string, opts SubmitOptions) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	go func() {
		writer.CloseWithError(writeForm(form, file, filepath.Base(path), opts))
	}()

	var resp SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs", body, form.FormDataContentType(), &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

func writeForm(form *multipart.Writer, file io.Reader, name string, opts SubmitOptions) error {
	if opts.Language != "" {
		if err := form.WriteField("language", opts.Language); err != nil {
			return err
		}
	}
	if opts.Start > 0 {
		if err := form.WriteField("start", strconv.FormatFloat(opts.Start, 'f', -1, 64)); err != nil {
			return err
		}
	}
	if opts.End > 0 {
		if err := form.WriteField("end", strconv.FormatFloat(opts.End, 'f', -1, 64)); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return form.Close()
}

// Job fetches one job record.
func (c *Client) Job(ctx context.Context, id string) (*jobs.Job, error) {
	var job jobs.Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, "", &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Jobs lists jobs newest first.
func (c *Client) Jobs(ctx context.Context) ([]JobSummary, error) {
	var resp JobListResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Status fetches daemon status.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var resp DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Languages lists supported target languages.
func (c *Client) Languages(ctx context.Context) (*LanguagesResponse, error) {
	var resp LanguagesResponse
	if err := c.do(ctx, http.MethodGet, "/api/languages", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Wait polls the job every interval until it reaches done or error. onUpdate
// sees every fetched record.
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration, onUpdate func(*jobs.Job)) (*jobs.Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return nil, err
		}
		if onUpdate != nil {
			onUpdate(job)
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	if c.base == "" {
		return errors.New("daemon address not configured")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reqErr := &RequestError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &reqErr.ErrorResponse) != nil {
			reqErr.ErrorResponse.Error = strings.TrimSpace(string(data))
		}
		return reqErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
