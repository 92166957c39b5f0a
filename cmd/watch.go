package main

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/desertthunder/stemx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Watch submits every audio file that lands in a directory, one job at a time, until interrupted.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	dir, err := requireArg(cmd, "dir")
	if err != nil {
		return err
	}

	files, errs, err := tasks.WatchDir(ctx, dir, tasks.WatchOptions{
		Extensions:  r.config.Limits.Extensions,
		InitialScan: cmd.Bool("existing"),
		Debounce:    cmd.Duration("debounce"),
	}, r.logger)
	if err != nil {
		return err
	}

	opts := processOpts{
		dir:        r.downloadDir(cmd),
		download:   true,
		useChannel: !cmd.Bool("no-channel"),
	}

	r.writePlainHeader("Watching " + dir)
	seen := map[string]bool{}
	for {
		select {
		case path, ok := <-files:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}
			if seen[abs] {
				r.logger.Debug("already processed", "file", abs)
				continue
			}
			seen[abs] = true

			r.writePlainln("%s", filepath.Base(path))
			if _, err := r.process(ctx, path, opts); err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return nil
				}
				r.logger.Error("separation failed", "file", path, "err", err)
				r.writePlain("✗ %v\n", err)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.logger.Warn("watcher error", "err", err)

		case <-ctx.Done():
			return nil
		}
	}
}
