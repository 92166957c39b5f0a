// package models defines the persisted job history of the separation client
package models

import (
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Job status values stored in history. They mirror the backend's status strings.
const (
	JobProcessing = "processing"
	JobComplete   = "complete"
	JobError      = "error"
)

// Job is a separation job submitted from this client.
//
// The backend discards jobs after an hour; the history keeps the source filename and where the stems were saved.
type Job struct {
	id                string
	jobID             string
	filename          string
	status            string
	errorMessage      string
	vocalsPath        string
	accompanimentPath string
	createdAt         time.Time
	updatedAt         time.Time
	completedAt       *time.Time
}

// NewJob creates a processing job for a backend job id.
func NewJob(jobID, filename string) *Job {
	now := time.Now().UTC()
	return &Job{
		jobID:     jobID,
		filename:  filename,
		status:    JobProcessing,
		createdAt: now,
		updatedAt: now,
	}
}

func (j *Job) ID() string { return j.id }
func (j *Job) JobID() string { return j.jobID }
func (j *Job) Filename() string { return j.filename }
func (j *Job) Status() string { return j.status }
func (j *Job) ErrorMessage() string { return j.errorMessage }
func (j *Job) VocalsPath() string { return j.vocalsPath }
func (j *Job) AccompanimentPath() string { return j.accompanimentPath }
func (j *Job) CreatedAt() time.Time { return j.createdAt }
func (j *Job) UpdatedAt() time.Time { return j.updatedAt }
func (j *Job) CompletedAt() *time.Time { return j.completedAt }

func (j *Job) SetID(id string) { j.id = id }
func (j *Job) SetFilename(name string) { j.filename = name }
func (j *Job) SetErrorMessage(msg string) { j.errorMessage = msg }
func (j *Job) SetVocalsPath(p string) { j.vocalsPath = p }
func (j *Job) SetAccompanimentPath(p string) { j.accompanimentPath = p }
func (j *Job) SetCreatedAt(t time.Time) { j.createdAt = t }
func (j *Job) SetUpdatedAt(t time.Time) { j.updatedAt = t }
func (j *Job) SetCompletedAt(t *time.Time) { j.completedAt = t }

// SetStatus changes the status and stamps the completion time when the job reaches a terminal status.
func (j *Job) SetStatus(status string) {
	j.status = status
	if status != JobProcessing && j.completedAt == nil {
		now := time.Now().UTC()
		j.completedAt = &now
	}
}

// SetStemPath records where a stem was saved. Unknown stems are ignored.
func (j *Job) SetStemPath(stem, path string) {
	switch stem {
	case "vocals":
		j.vocalsPath = path
	case "accompaniment":
		j.accompanimentPath = path
	}
}

// Terminal reports whether the job has finished.
func (j *Job) Terminal() bool {
	return j.status == JobComplete || j.status == JobError
}

// Validate checks required fields and the status value.
func (j *Job) Validate() error {
	switch {
	case j.jobID == "":
		return fmt.Errorf("job_id is required")
	case j.filename == "":
		return fmt.Errorf("filename is required")
	}

	switch j.status {
	case JobProcessing, JobComplete, JobError:
		return nil
	default:
		return fmt.Errorf("invalid status %q", j.status)
	}
}
