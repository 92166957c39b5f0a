package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/shared"
	th "github.com/desertthunder/stemx/internal/testing"
)

func sampleJobs() []*models.Job {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	done := models.NewJob("job-done", "My Song.mp3")
	done.SetID("row-1")
	done.SetCreatedAt(created)
	done.SetStatus(models.JobComplete)
	finished := created.Add(95 * time.Second)
	done.SetCompletedAt(&finished)
	done.SetStemPath("vocals", "stems/vocals_My Song.wav")

	failed := models.NewJob("job-failed", "a|b.wav")
	failed.SetID("row-2")
	failed.SetCreatedAt(created.Add(time.Minute))
	failed.SetStatus(models.JobError)
	failed.SetErrorMessage("Model crashed")

	running := models.NewJob("job-running", "live.flac")
	running.SetID("row-3")
	running.SetCreatedAt(created.Add(2 * time.Minute))

	return []*models.Job{done, failed, running}
}

func TestExporters(t *testing.T) {
	jobs := sampleJobs()

	t.Run("JobsToText", func(t *testing.T) {
		data, err := JobsToText(jobs)
		if err != nil {
			t.Fatalf("JobsToText failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{"JOB", "STATUS", "job-done", "1:35", "error: Model crashed", "live.flac"} {
			if !strings.Contains(output, want) {
				t.Errorf("text output missing %q, got:\n%s", want, output)
			}
		}
		if lines := strings.Count(output, "\n"); lines != 4 {
			t.Errorf("expected header plus 3 rows, got %d lines", lines)
		}
	})

	t.Run("JobsToText empty", func(t *testing.T) {
		data, _ := JobsToText(nil)
		if string(data) != "No jobs recorded.\n" {
			t.Errorf("got %q", data)
		}
	})

	t.Run("JobsToCSV", func(t *testing.T) {
		data, err := JobsToCSV(jobs)
		if err != nil {
			t.Fatalf("JobsToCSV failed: %v", err)
		}
		output := string(data)

		if !strings.HasPrefix(output, "ID,Job ID,Filename,Status,Error,Vocals,Accompaniment,Created,Completed\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "row-1,job-done,My Song.mp3,complete,,stems/vocals_My Song.wav,,2024-05-01T12:00:00Z,2024-05-01T12:01:35Z") {
			t.Errorf("CSV missing completed row, got: %s", output)
		}
		if !strings.Contains(output, "Model crashed") {
			t.Error("CSV missing error message")
		}
	})

	t.Run("JobsToMarkdown", func(t *testing.T) {
		data, err := JobsToMarkdown(jobs)
		if err != nil {
			t.Fatalf("JobsToMarkdown failed: %v", err)
		}
		output := string(data)

		if !strings.Contains(output, "# Separation history") || !strings.Contains(output, "**Jobs**: 3") {
			t.Errorf("markdown header missing, got:\n%s", output)
		}
		if !strings.Contains(output, `a\|b.wav`) {
			t.Error("pipe in filename not escaped")
		}
		if !strings.Contains(output, "| `job-running` | live.flac | processing | 2024-05-01 12:02 | - |") {
			t.Errorf("running row missing, got:\n%s", output)
		}
	})

	t.Run("JobsToJSON", func(t *testing.T) {
		data, err := JobsToJSON(jobs)
		if err != nil {
			t.Fatalf("JobsToJSON failed: %v", err)
		}

		var views []JobView
		if err := json.Unmarshal(data, &views); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(views) != 3 {
			t.Fatalf("got %d views", len(views))
		}
		if views[0].Duration != "1:35" || views[0].VocalsPath == "" {
			t.Errorf("view[0] = %+v", views[0])
		}
		if views[2].CompletedAt != nil {
			t.Error("running job has completion time")
		}
	})

	t.Run("JobDetail", func(t *testing.T) {
		output := string(JobDetail(jobs[1]))
		for _, want := range []string{"job-failed", "Error:", "Model crashed", "row-2"} {
			if !strings.Contains(output, want) {
				t.Errorf("detail missing %q, got:\n%s", want, output)
			}
		}
		if strings.Contains(output, "Vocals:") {
			t.Error("detail shows empty vocals path")
		}
	})
}

func TestFormats(t *testing.T) {
	t.Run("ParseFormat", func(t *testing.T) {
		tests := []struct {
			in   string
			want Format
		}{
			{"", Text}, {"TEXT", Text}, {"csv", CSV}, {"md", Markdown}, {"markdown", Markdown}, {"json", JSON},
		}
		for _, tt := range tests {
			got, err := ParseFormat(tt.in)
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		}

		if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("FormatDuration", func(t *testing.T) {
		tests := []struct {
			in   time.Duration
			want string
		}{
			{0, "0:00"}, {59 * time.Second, "0:59"}, {61 * time.Second, "1:01"},
			{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"}, {-time.Second, "0:00"},
		}
		for _, tt := range tests {
			if got := FormatDuration(tt.in); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
			}
		}
	})
}

func TestWriteExport(t *testing.T) {
	jobs := sampleJobs()

	tests := []struct {
		name   string
		file   string
		format Format
		marker string
	}{
		{"csv by extension", "history.csv", CSV, "ID,Job ID"},
		{"markdown by extension", "out/history.md", Markdown, "# Separation history"},
		{"json by extension", "history.json", JSON, `"job_id": "job-done"`},
		{"text fallback", "history.log", Text, "JOB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			format, err := WriteExport(jobs, path)
			if err != nil {
				t.Fatalf("WriteExport() error = %v", err)
			}
			if format != tt.format {
				t.Errorf("format = %q, want %q", format, tt.format)
			}
			th.AssertFileExists(t, path)
			if content := th.MustReadFile(t, path); !strings.Contains(content, tt.marker) {
				t.Errorf("file missing %q:\n%s", tt.marker, content)
			}
		})
	}
}
