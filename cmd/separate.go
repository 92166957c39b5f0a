package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/services"
	"github.com/desertthunder/stemx/internal/session"
	"github.com/desertthunder/stemx/internal/shared"
	"github.com/urfave/cli/v3"
)

// processOpts controls one upload-wait-download run.
type processOpts struct {
	dir        string
	download   bool
	useChannel bool
	timeout    time.Duration
}

// process submits path and follows the job until it finishes, printing progress, then saves both stems.
//
// It returns the saved stem paths. A rejected upload or a failed job is returned as an error.
func (r *Runner) process(ctx context.Context, path string, opts processOpts) ([]string, error) {
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	tracker := r.newTracker(ctx, opts.useChannel)
	defer tracker.Close()

	ev := tracker.Submit(ctx, path)
	state := tracker.Apply(ev)
	if ev.Kind == session.Rejected {
		return nil, fmt.Errorf("%w: %s", shared.ErrUpload, ev.Message)
	}

	r.writePlain("⇪ Uploaded %s (job %s)\n", state.Filename, state.JobID)
	r.writePlain("  %s\n", state.StatusMessage)

	state, err := tracker.Wait(ctx, func(s session.State) {
		if s.View == session.Processing {
			r.writePlain("  %s\n", s.StatusMessage)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("stopped waiting for job %s: %w", state.JobID, err)
	}
	if state.View != session.Results {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobFailed, state.Error)
	}

	r.writePlain("✓ Separation complete\n")
	if !opts.download {
		return nil, nil
	}

	var saved []string
	for _, stem := range services.Stems {
		dest, err := r.saveStem(ctx, stem, state.JobID, state.Filename, opts.dir)
		if err != nil {
			return saved, err
		}
		saved = append(saved, dest)
	}
	return saved, nil
}

// saveStem downloads one stem and records where it went.
func (r *Runner) saveStem(ctx context.Context, stem services.Stem, jobID, filename, dir string) (string, error) {
	dest, err := services.SaveStem(ctx, r.separator, stem, jobID, filename, dir)
	if err != nil {
		return "", fmt.Errorf("%s download failed: %w", stem.Title(), err)
	}

	if jobs, err := r.history(); err == nil {
		if err := jobs.RecordStem(ctx, jobID, string(stem), dest); err != nil {
			r.logger.Debug("stem path not recorded", "job_id", jobID, "stem", stem, "err", err)
		}
	}

	r.writePlain("✓ %-14s %s\n", stem.Title()+":", dest)
	return dest, nil
}

// Separate uploads a file, follows the job and downloads both stems.
func (r *Runner) Separate(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, "file")
	if err != nil {
		return err
	}

	_, err = r.process(ctx, path, processOpts{
		dir:        r.downloadDir(cmd),
		download:   !cmd.Bool("no-download"),
		useChannel: !cmd.Bool("no-channel"),
		timeout:    cmd.Duration("timeout"),
	})
	return err
}

// Upload submits a file without following the job.
func (r *Runner) Upload(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, "file")
	if err != nil {
		return err
	}

	result, err := r.separator.Upload(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %s", shared.ErrUpload, services.Message(err))
	}
	r.logger.Info("upload accepted", "file", path, "job_id", result.JobID)

	if rec := r.recorder(); rec != nil {
		if err := rec.RecordSubmitted(ctx, result.JobID, filepath.Base(path)); err != nil {
			r.logger.Warn("job not recorded", "job_id", result.JobID, "err", err)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, false)
	}
	return r.writePlain("%s\n", result.JobID)
}

// Status prints the backend's view of a job and records terminal results in history.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	jobID, err := requireArg(cmd, "job")
	if err != nil {
		return err
	}

	status, err := r.separator.Status(ctx, jobID)
	if err != nil {
		return fmt.Errorf("%w: %s", shared.ErrStatus, services.Message(err))
	}

	if status.Terminal() {
		if rec := r.recorder(); rec != nil {
			finished := models.JobComplete
			if status.Status == services.StatusError {
				finished = models.JobError
			}
			if err := rec.RecordFinished(ctx, jobID, finished, status.Error); err != nil {
				r.logger.Debug("job status not recorded", "job_id", jobID, "err", err)
			}
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	r.writePlain("Job:    %s\n", jobID)
	r.writePlain("Status: %s\n", status.Status)
	if status.Filename != "" {
		r.writePlain("File:   %s\n", status.Filename)
	}
	if status.Error != "" {
		r.writePlain("Error:  %s\n", status.Error)
	}
	return nil
}

// Download saves one or both stems of a finished job.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	which, err := requireArg(cmd, "stem")
	if err != nil {
		return err
	}
	jobID, err := requireArg(cmd, "job")
	if err != nil {
		return err
	}

	stems := services.Stems
	if which != "all" {
		stem, err := services.ParseStem(which)
		if err != nil {
			return err
		}
		stems = []services.Stem{stem}
	}

	filename := cmd.String("name")
	if filename == "" {
		filename = r.knownFilename(jobID)
	}

	dir := r.downloadDir(cmd)
	for _, stem := range stems {
		if _, err := r.saveStem(ctx, stem, jobID, filename, dir); err != nil {
			return err
		}
	}
	return nil
}

// Play hands a stem to the configured player, reusing a previous download when the file is still there.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	which, err := requireArg(cmd, "stem")
	if err != nil {
		return err
	}
	jobID, err := requireArg(cmd, "job")
	if err != nil {
		return err
	}
	stem, err := services.ParseStem(which)
	if err != nil {
		return err
	}

	path := r.savedStem(jobID, stem)
	if path == "" {
		if path, err = r.saveStem(ctx, stem, jobID, r.knownFilename(jobID), r.downloadDir(cmd)); err != nil {
			return err
		}
	}

	r.logger.Info("playing stem", "path", path, "player", r.config.UI.Player)
	if err := shared.OpenFile(r.config.UI.Player, path); err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}
	return r.writePlain("♪ %s\n", path)
}

// knownFilename looks the source filename up in history so stems are named after the song.
func (r *Runner) knownFilename(jobID string) string {
	jobs, err := r.history()
	if err != nil {
		return ""
	}
	job, err := jobs.GetByJobID(jobID)
	if err != nil {
		if !errors.Is(err, shared.ErrJobNotFound) {
			r.logger.Debug("history lookup failed", "job_id", jobID, "err", err)
		}
		return ""
	}
	return job.Filename()
}

// savedStem returns the recorded path of a stem when the file still exists.
func (r *Runner) savedStem(jobID string, stem services.Stem) string {
	jobs, err := r.history()
	if err != nil {
		return ""
	}
	job, err := jobs.GetByJobID(jobID)
	if err != nil {
		return ""
	}

	path := job.VocalsPath()
	if stem == services.Accompaniment {
		path = job.AccompanimentPath()
	}
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
