// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/stemx/internal/services"
)

// MockSeparator is a test double for [services.Separator]. Nil funcs return zero values.
type MockSeparator struct {
	UploadFn   func(ctx context.Context, path string) (*services.UploadResult, error)
	StatusFn   func(ctx context.Context, jobID string) (*services.JobStatus, error)
	DownloadFn func(ctx context.Context, stem services.Stem, jobID string, w io.Writer) (int64, error)

	mu    sync.Mutex
	calls map[string]int
}

var _ services.Separator = (*MockSeparator)(nil)

func (m *MockSeparator) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[name]++
}

// Calls returns how many times the named method ran.
func (m *MockSeparator) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *MockSeparator) Upload(ctx context.Context, path string) (*services.UploadResult, error) {
	m.record("Upload")
	if m.UploadFn == nil {
		return &services.UploadResult{JobID: "mock-job"}, nil
	}
	return m.UploadFn(ctx, path)
}

func (m *MockSeparator) Status(ctx context.Context, jobID string) (*services.JobStatus, error) {
	m.record("Status")
	if m.StatusFn == nil {
		return &services.JobStatus{JobID: jobID, Status: services.StatusProcessing}, nil
	}
	return m.StatusFn(ctx, jobID)
}

func (m *MockSeparator) Download(ctx context.Context, stem services.Stem, jobID string, w io.Writer) (int64, error) {
	m.record("Download")
	if m.DownloadFn == nil {
		n, err := io.Copy(w, bytes.NewReader([]byte("RIFF"+string(stem))))
		return n, err
	}
	return m.DownloadFn(ctx, stem, jobID, w)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// WriteSizedFile creates a file of exactly size bytes; sparse where the filesystem allows.
func WriteSizedFile(t *testing.T, path string, size int64) string {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		t.Fatalf("Failed to size %s: %v", path, err)
	}
	return path
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
