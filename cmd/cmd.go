// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "stemx",
		Usage:   "Separate songs into vocals and accompaniment",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
		},
		Before:   r.Configure,
		After:    r.Close,
		Commands: r.register(),
		Writer:   r.output,
	}
}

func downloadFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Directory stems are saved to (default: ui.download_dir)",
		},
	}
}

// setupCommand handles first-run setup of configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the example configuration to the --config path",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the history database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// separateCommand runs a whole job: upload, wait, download.
func separateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "separate",
		Aliases:   []string{"sep"},
		Usage:     "Upload a song, follow the job and download both stems",
		ArgsUsage: "<file>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Flags: append(downloadFlags(),
			&cli.BoolFlag{
				Name:  "no-download",
				Usage: "Stop once the job completes",
			},
			&cli.BoolFlag{
				Name:  "no-channel",
				Usage: "Follow the job by polling only",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up waiting after this long (0 waits forever)",
			},
		),
		Action: r.Separate,
	}
}

func uploadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload a song and print the job id",
		ArgsUsage: "<file>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Upload,
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the backend status of a job",
		ArgsUsage: "<job-id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "job"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Status,
	}
}

func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Aliases:   []string{"dl"},
		Usage:     "Download a stem (vocals, accompaniment or all) of a finished job",
		ArgsUsage: "<stem|all> <job-id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "stem"},
			&cli.StringArg{Name: "job"},
		},
		Flags: append(downloadFlags(),
			&cli.StringFlag{
				Name:  "name",
				Usage: "Source filename used to name the stems (default: from history, else the job id)",
			},
		),
		Action: r.Download,
	}
}

func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Play a stem of a finished job, downloading it first if needed",
		ArgsUsage: "<stem> <job-id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "stem"},
			&cli.StringArg{Name: "job"},
		},
		Flags:  downloadFlags(),
		Action: r.Play,
	}
}

// watchCommand turns a directory into a drop folder.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Separate every audio file dropped into a directory",
		ArgsUsage: "<dir>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "dir"},
		},
		Flags: append(downloadFlags(),
			&cli.BoolFlag{
				Name:  "existing",
				Usage: "Also process files already in the directory",
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "Quiet period before a written file is submitted",
				Value: 500 * time.Millisecond,
			},
			&cli.BoolFlag{
				Name:  "no-channel",
				Usage: "Follow jobs by polling only",
			},
		),
		Action: r.Watch,
	}
}

// historyCommand manages the local record of submitted jobs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect jobs submitted from this machine",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List recorded jobs, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only jobs with this status (processing, complete, error)",
					},
					&cli.StringFlag{
						Name:  "filename",
						Usage: "Only jobs whose filename contains this text",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of jobs to list",
						Value: 50,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, csv, markdown or json",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead; the format follows the extension",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show one job by job id or record id",
				ArgsUsage: "<job-id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "job"},
				},
				Action: r.HistoryShow,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Forget a job; downloaded stems are left on disk",
				ArgsUsage: "<job-id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "job"},
				},
				Action: r.HistoryDelete,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive separator",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-channel",
				Usage: "Follow jobs by polling only",
			},
		},
		Action: r.TUI,
	}
}
