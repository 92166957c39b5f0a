package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/stemx/internal/formatter"
	"github.com/urfave/cli/v3"
)

// HistoryList prints recorded jobs, or exports them to --output.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	jobs, err := r.history()
	if err != nil {
		return err
	}

	list, err := jobs.List(map[string]any{
		"status":   cmd.String("status"),
		"filename": cmd.String("filename"),
		"limit":    cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	if out := cmd.String("output"); out != "" {
		format, err := formatter.WriteExport(list, out)
		if err != nil {
			return err
		}
		r.logger.Info("history exported", "path", out, "format", format, "jobs", len(list))
		return r.writePlain("✓ Exported %d jobs to %s\n", len(list), out)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if len(list) == 0 && format == formatter.Text {
		return r.writePlain("No jobs recorded yet\n")
	}

	data, err := formatter.Render(list, format)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// HistoryShow prints one job.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	ref, err := requireArg(cmd, "job")
	if err != nil {
		return err
	}
	jobs, err := r.history()
	if err != nil {
		return err
	}

	job, err := jobs.Find(ref)
	if err != nil {
		return jobNotFound(ref, err)
	}
	_, err = r.output.Write(formatter.JobDetail(job))
	return err
}

// HistoryDelete forgets one job.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	ref, err := requireArg(cmd, "job")
	if err != nil {
		return err
	}
	jobs, err := r.history()
	if err != nil {
		return err
	}

	job, err := jobs.Find(ref)
	if err != nil {
		return jobNotFound(ref, err)
	}
	if err := jobs.Delete(job.ID()); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return r.writePlain("✓ Deleted %s (%s)\n", job.JobID(), job.Filename())
}
