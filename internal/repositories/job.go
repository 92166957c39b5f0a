package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/shared"
)

const jobColumns = `
	id, job_id, filename, status, error, vocals_path, accompaniment_path,
	created_at, updated_at, completed_at
`

// JobRepository implements models.Repository[*models.Job] for the submission history.
//
// It also records lifecycle changes coming from a tracker (see RecordSubmitted and RecordFinished).
type JobRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.Job] = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job with a generated ID
func (r *JobRepository) Create(job *models.Job) error {
	return r.create(context.Background(), job)
}

func (r *JobRepository) create(ctx context.Context, job *models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	job.SetID(shared.GenerateID())

	query := `INSERT INTO jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		job.ID(),
		job.JobID(),
		job.Filename(),
		job.Status(),
		job.ErrorMessage(),
		job.VocalsPath(),
		job.AccompanimentPath(),
		job.CreatedAt(),
		job.UpdatedAt(),
		job.CompletedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// Get retrieves a job by its row ID
func (r *JobRepository) Get(id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`
	return r.scan(r.db.QueryRow(query, id))
}

// GetByJobID retrieves a job by the backend's job id
func (r *JobRepository) GetByJobID(jobID string) (*models.Job, error) {
	return r.getByJobID(context.Background(), jobID)
}

func (r *JobRepository) getByJobID(ctx context.Context, jobID string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = ?`
	return r.scan(r.db.QueryRowContext(ctx, query, jobID))
}

// Find retrieves a job by row ID or backend job id, whichever matches.
func (r *JobRepository) Find(ref string) (*models.Job, error) {
	job, err := r.GetByJobID(ref)
	if err == nil || !errors.Is(err, shared.ErrJobNotFound) {
		return job, err
	}
	return r.Get(ref)
}

// Update modifies an existing job
func (r *JobRepository) Update(job *models.Job) error {
	return r.update(context.Background(), job)
}

func (r *JobRepository) update(ctx context.Context, job *models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	now := time.Now().UTC()
	job.SetUpdatedAt(now)

	query := `
		UPDATE jobs
		SET filename = ?, status = ?, error = ?, vocals_path = ?, accompaniment_path = ?,
			updated_at = ?, completed_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		job.Filename(),
		job.Status(),
		job.ErrorMessage(),
		job.VocalsPath(),
		job.AccompanimentPath(),
		now,
		job.CompletedAt(),
		job.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return expectRow(result, job.ID())
}

// Delete removes a job by row ID
func (r *JobRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return expectRow(result, id)
}

// List retrieves jobs newest first.
//
// Supported criteria: "status" (string), "filename" (substring, string) and "limit" (int).
func (r *JobRepository) List(criteria map[string]any) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1 = 1`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if filename, ok := criteria["filename"].(string); ok && filename != "" {
		query += " AND filename LIKE ? ESCAPE '\\'"
		args = append(args, "%"+escapeLike(filename)+"%")
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

// RecordSubmitted stores a newly accepted upload. Recording the same job twice is a no-op.
func (r *JobRepository) RecordSubmitted(ctx context.Context, jobID, filename string) error {
	if _, err := r.getByJobID(ctx, jobID); err == nil {
		return nil
	} else if !errors.Is(err, shared.ErrJobNotFound) {
		return err
	}
	return r.create(ctx, models.NewJob(jobID, filename))
}

// RecordFinished stores the terminal status of a job, creating the record when the submission was never seen.
func (r *JobRepository) RecordFinished(ctx context.Context, jobID, status, reason string) error {
	job, err := r.getByJobID(ctx, jobID)
	if errors.Is(err, shared.ErrJobNotFound) {
		job = models.NewJob(jobID, jobID)
		job.SetStatus(status)
		job.SetErrorMessage(reason)
		return r.create(ctx, job)
	}
	if err != nil {
		return err
	}

	job.SetStatus(status)
	job.SetErrorMessage(reason)
	return r.update(ctx, job)
}

// RecordStem stores where a stem of a job was saved.
func (r *JobRepository) RecordStem(ctx context.Context, jobID, stem, path string) error {
	job, err := r.getByJobID(ctx, jobID)
	if err != nil {
		return err
	}
	job.SetStemPath(stem, path)
	return r.update(ctx, job)
}

type scanner interface {
	Scan(dest ...any) error
}

// scan reads one jobs row from a [sql.Row] or [sql.Rows]
func (r *JobRepository) scan(s scanner) (*models.Job, error) {
	var (
		id, jobID, filename, status, errorMessage string
		vocalsPath, accompanimentPath             string
		createdAt, updatedAt                      time.Time
		completedAt                               sql.NullTime
	)

	err := s.Scan(
		&id, &jobID, &filename, &status, &errorMessage, &vocalsPath, &accompanimentPath,
		&createdAt, &updatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job := models.NewJob(jobID, filename)
	job.SetID(id)
	job.SetStatus(status)
	job.SetErrorMessage(errorMessage)
	job.SetVocalsPath(vocalsPath)
	job.SetAccompanimentPath(accompanimentPath)
	job.SetCreatedAt(createdAt)
	job.SetUpdatedAt(updatedAt)
	if completedAt.Valid {
		job.SetCompletedAt(&completedAt.Time)
	} else {
		job.SetCompletedAt(nil)
	}

	return job, nil
}

func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
