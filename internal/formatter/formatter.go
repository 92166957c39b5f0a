// package formatter renders job history as text tables, CSV, Markdown or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/shared"
)

// Format names an output format.
type Format string

const (
	Text     Format = "text"
	CSV      Format = "csv"
	Markdown Format = "markdown"
	JSON     Format = "json"
)

// ParseFormat validates a format name; "md" is accepted for Markdown and the empty string means text.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "txt":
		return Text, nil
	case "csv":
		return CSV, nil
	case "md", "markdown":
		return Markdown, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want text, csv, markdown or json)", shared.ErrInvalidArgument, name)
	}
}

// FormatForPath picks a format from a file extension, defaulting to text.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV
	case ".md", ".markdown":
		return Markdown
	case ".json":
		return JSON
	default:
		return Text
	}
}

// JobView is the serializable form of a [models.Job].
type JobView struct {
	ID                string     `json:"id"`
	JobID             string     `json:"job_id"`
	Filename          string     `json:"filename"`
	Status            string     `json:"status"`
	Error             string     `json:"error,omitempty"`
	VocalsPath        string     `json:"vocals_path,omitempty"`
	AccompanimentPath string     `json:"accompaniment_path,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	Duration          string     `json:"duration,omitempty"`
}

// NewJobView flattens a job for output.
func NewJobView(job *models.Job) JobView {
	return JobView{
		ID:                job.ID(),
		JobID:             job.JobID(),
		Filename:          job.Filename(),
		Status:            job.Status(),
		Error:             job.ErrorMessage(),
		VocalsPath:        job.VocalsPath(),
		AccompanimentPath: job.AccompanimentPath(),
		CreatedAt:         job.CreatedAt(),
		CompletedAt:       job.CompletedAt(),
		Duration:          ProcessingTime(job),
	}
}

// ProcessingTime returns how long the backend took, or "" for unfinished jobs.
func ProcessingTime(job *models.Job) string {
	done := job.CompletedAt()
	if done == nil {
		return ""
	}
	return FormatDuration(done.Sub(job.CreatedAt()))
}

// FormatDuration renders a duration as m:ss, or h:mm:ss past an hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second).Seconds())
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Render writes jobs in the requested format.
func Render(jobs []*models.Job, format Format) ([]byte, error) {
	switch format {
	case CSV:
		return JobsToCSV(jobs)
	case Markdown:
		return JobsToMarkdown(jobs)
	case JSON:
		return JobsToJSON(jobs)
	default:
		return JobsToText(jobs)
	}
}

// JobsToText renders an aligned table with columns: JOB, FILE, STATUS, SUBMITTED, TOOK
func JobsToText(jobs []*models.Job) ([]byte, error) {
	var buf bytes.Buffer
	if len(jobs) == 0 {
		buf.WriteString("No jobs recorded.\n")
		return buf.Bytes(), nil
	}

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tFILE\tSTATUS\tSUBMITTED\tTOOK")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			job.JobID(),
			job.Filename(),
			statusLabel(job),
			job.CreatedAt().Local().Format("2006-01-02 15:04"),
			dash(ProcessingTime(job)),
		)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write table: %w", err)
	}

	return buf.Bytes(), nil
}

// JobsToCSV renders jobs with columns: ID, Job ID, Filename, Status, Error, Vocals, Accompaniment, Created, Completed
func JobsToCSV(jobs []*models.Job) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Job ID", "Filename", "Status", "Error", "Vocals", "Accompaniment", "Created", "Completed"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, job := range jobs {
		completed := ""
		if c := job.CompletedAt(); c != nil {
			completed = c.UTC().Format(time.RFC3339)
		}
		record := []string{
			job.ID(),
			job.JobID(),
			job.Filename(),
			job.Status(),
			job.ErrorMessage(),
			job.VocalsPath(),
			job.AccompanimentPath(),
			job.CreatedAt().UTC().Format(time.RFC3339),
			completed,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// JobsToMarkdown renders jobs as a Markdown table under a heading.
func JobsToMarkdown(jobs []*models.Job) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Separation history\n\n")
	buf.WriteString(fmt.Sprintf("**Jobs**: %d\n\n", len(jobs)))
	if len(jobs) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| Job | File | Status | Submitted | Took |\n")
	buf.WriteString("|---|---|---|---|---|\n")
	for _, job := range jobs {
		buf.WriteString(fmt.Sprintf("| `%s` | %s | %s | %s | %s |\n",
			job.JobID(),
			escapeCell(job.Filename()),
			escapeCell(statusLabel(job)),
			job.CreatedAt().UTC().Format("2006-01-02 15:04"),
			dash(ProcessingTime(job)),
		))
	}

	return buf.Bytes(), nil
}

// JobsToJSON renders jobs as an indented JSON array.
func JobsToJSON(jobs []*models.Job) ([]byte, error) {
	views := make([]JobView, len(jobs))
	for i, job := range jobs {
		views[i] = NewJobView(job)
	}

	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jobs: %w", err)
	}
	return append(data, '\n'), nil
}

// JobDetail renders one job as labelled lines.
func JobDetail(job *models.Job) []byte {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 1, ' ', 0)

	fmt.Fprintf(w, "Job:\t%s\n", job.JobID())
	fmt.Fprintf(w, "File:\t%s\n", job.Filename())
	fmt.Fprintf(w, "Status:\t%s\n", job.Status())
	if job.ErrorMessage() != "" {
		fmt.Fprintf(w, "Error:\t%s\n", job.ErrorMessage())
	}
	fmt.Fprintf(w, "Submitted:\t%s\n", job.CreatedAt().Local().Format(time.RFC1123))
	if took := ProcessingTime(job); took != "" {
		fmt.Fprintf(w, "Took:\t%s\n", took)
	}
	if job.VocalsPath() != "" {
		fmt.Fprintf(w, "Vocals:\t%s\n", job.VocalsPath())
	}
	if job.AccompanimentPath() != "" {
		fmt.Fprintf(w, "Accompaniment:\t%s\n", job.AccompanimentPath())
	}
	fmt.Fprintf(w, "Record:\t%s\n", job.ID())
	w.Flush()

	return buf.Bytes()
}

// WriteExport renders jobs into path, choosing the format from its extension.
func WriteExport(jobs []*models.Job, path string) (Format, error) {
	format := FormatForPath(path)
	data, err := Render(jobs, format)
	if err != nil {
		return format, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return format, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return format, fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return format, nil
}

func statusLabel(job *models.Job) string {
	if job.Status() == models.JobError && job.ErrorMessage() != "" {
		return "error: " + job.ErrorMessage()
	}
	return job.Status()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
