// HTTP client for the separation backend
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/stemx/internal/shared"
)

const defaultBaseURL string = "http://localhost:5000"

// Client implements [Separator] over the backend's REST endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limits     shared.LimitsConfig
}

var _ Separator = (*Client)(nil)

// NewClient creates a new backend client.
//
// An empty baseURL defaults to http://localhost:5000, a nil client to [http.DefaultClient], and zero limits to the
// embedded config's limits.
func NewClient(baseURL string, client *http.Client, limits shared.LimitsConfig) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if limits.MaxUploadMB == 0 || len(limits.Extensions) == 0 {
		limits = shared.DefaultConfig().Limits
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		limits:     limits,
	}
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL + "/api/" + strings.Join(escaped, "/")
}

// Upload validates the file and posts it as multipart field "file".
//
// Calls POST /api/upload. The body is streamed so large files are not held in memory.
func (c *Client) Upload(ctx context.Context, path string) (*UploadResult, error) {
	if _, err := ValidateFile(path, c.limits); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, newError(shared.ErrValidation, 0, "Could not read file", err)
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

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("upload"), pr)
	if err != nil {
		return nil, newError(shared.ErrUpload, 0, "Upload failed", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newError(shared.ErrUpload, 0, "Upload failed. Please try again.", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(shared.ErrUpload, resp.StatusCode, "Upload failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(shared.ErrUpload, resp.StatusCode, uploadErrorMessage(resp.StatusCode, body), nil)
	}

	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, newError(shared.ErrUpload, resp.StatusCode, "Server returned invalid response", err)
	}
	if result.JobID == "" {
		return nil, newError(shared.ErrUpload, resp.StatusCode, "Server returned invalid response", fmt.Errorf("missing job_id"))
	}

	return &result, nil
}

// uploadErrorMessage prefers a JSON "error" field, then the raw text body, then the status code.
func uploadErrorMessage(status int, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		return "Upload failed"
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("Server error: %d", status)
}

// errorField extracts {"error": "..."} from body, or returns fallback.
func errorField(body io.Reader, fallback string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fallback
}

// Status fetches the job's status.
//
// Calls GET /api/status/{job_id}.
func (c *Client) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("status", jobID), nil)
	if err != nil {
		return nil, newError(shared.ErrStatus, 0, "Status check failed", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newError(shared.ErrStatus, 0, "Status check failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var cause error
		if resp.StatusCode == http.StatusNotFound {
			cause = shared.ErrJobNotFound
		}
		return nil, newError(shared.ErrStatus, resp.StatusCode, errorField(resp.Body, "Status check failed"), cause)
	}

	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, newError(shared.ErrStatus, resp.StatusCode, "Status check failed", fmt.Errorf("failed to decode response: %w", err))
	}
	if status.JobID == "" {
		status.JobID = jobID
	}

	return &status, nil
}

// Download streams a stem into w.
//
// Calls GET /api/download/{stem}/{job_id}.
func (c *Client) Download(ctx context.Context, stem Stem, jobID string, w io.Writer) (int64, error) {
	if _, err := ParseStem(string(stem)); err != nil {
		return 0, newError(shared.ErrDownload, 0, "Invalid track type", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("download", string(stem), jobID), nil)
	if err != nil {
		return 0, newError(shared.ErrDownload, 0, "Download failed", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, newError(shared.ErrDownload, 0, "Download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, newError(shared.ErrDownload, resp.StatusCode, errorField(resp.Body, "Download failed"), nil)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, newError(shared.ErrDownload, resp.StatusCode, "Download failed", err)
	}

	return n, nil
}
