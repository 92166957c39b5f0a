// package services defines interface Separator for talking to the voice separation backend
package services

import (
	"context"
	"fmt"
	"io"

	"github.com/desertthunder/stemx/internal/shared"
)

// Separator defines the backend operations the client relies on.
type Separator interface {
	// Upload validates the file at path and submits it, returning the created job.
	Upload(ctx context.Context, path string) (*UploadResult, error)

	// Status fetches the current state of a job.
	Status(ctx context.Context, jobID string) (*JobStatus, error)

	// Download streams a separated stem into w and returns the number of bytes written.
	Download(ctx context.Context, stem Stem, jobID string, w io.Writer) (int64, error)
}

// Stem is one separated output track.
type Stem string

const (
	Vocals        Stem = "vocals"
	Accompaniment Stem = "accompaniment"
)

// Stems lists every stem the backend produces, in display order.
var Stems = []Stem{Vocals, Accompaniment}

// Title returns the display name of the stem.
func (s Stem) Title() string {
	switch s {
	case Vocals:
		return "Vocals"
	case Accompaniment:
		return "Accompaniment"
	default:
		return string(s)
	}
}

// ParseStem validates a stem name.
func ParseStem(name string) (Stem, error) {
	switch Stem(name) {
	case Vocals, Accompaniment:
		return Stem(name), nil
	default:
		return "", fmt.Errorf("%w: unknown stem %q (want vocals or accompaniment)", shared.ErrInvalidArgument, name)
	}
}

// Job status values reported by the backend.
const (
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusError      = "error"
)

// UploadResult is the body of a successful upload.
type UploadResult struct {
	JobID   string `json:"job_id"`
	Message string `json:"message,omitempty"`
}

// JobStatus is the body of a status response.
type JobStatus struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Filename string `json:"filename,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Terminal reports whether the job has finished, successfully or not.
func (s JobStatus) Terminal() bool {
	return s.Status == StatusComplete || s.Status == StatusError
}
