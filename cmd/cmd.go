// submodule cmd contains command definitions
package main

import (
	"github.com/hbarnett99/so-you-made-a-mix/internal/formatter"
	"github.com/hbarnett99/so-you-made-a-mix/internal/ui"
	"github.com/urfave/cli/v3"
)

func serverFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "API server base URL (default: server.url from config)",
		Sources: cli.EnvVars("SERVER_URL"),
	}
}

// serveCommand runs the playlist/download API server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the playlist matching and download API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port from config)",
			},
		},
		Action: r.Serve,
	}
}

// workerCommand runs the archive worker.
func workerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Run the archive worker that downloads matched tracks and zips them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: worker.host:worker.port from config)",
			},
			serverFlag(),
		},
		Action: r.Worker,
	}
}

// matchCommand matches a playlist against the target catalog.
func matchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "Match a source playlist against the target catalog by ISRC",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "playlist-id"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: table, csv, markdown or json",
				Value:   string(formatter.FormatTable),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Report path for csv/markdown (default: {playlist}_matches.{ext})",
			},
			&cli.BoolFlag{
				Name:  "remote",
				Usage: "Ask the API server instead of calling the catalogs directly",
			},
			&cli.BoolFlag{
				Name:  "no-tui",
				Usage: "Print a table even when attached to a terminal",
			},
			serverFlag(),
		},
		Action: r.Match,
	}
}

// statusCommand prints a job's state.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the status of a download job",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "job-id"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			serverFlag(),
		},
		Action: r.Status,
	}
}

// watchCommand follows a job in the terminal.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow a download job until it finishes",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "job-id"},
		},
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Poll interval",
				Value:   ui.DefaultPollInterval,
			},
			serverFlag(),
		},
		Action: r.Watch,
	}
}

// downloadCommand starts, cancels and fetches download jobs.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Manage playlist download jobs",
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "Start a download job for a playlist's matched tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "playlist-id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Follow the job after starting it",
					},
					serverFlag(),
				},
				Action: r.DownloadStart,
			},
			{
				Name:  "cancel",
				Usage: "Cancel a running download job",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "job-id"},
				},
				Flags:  []cli.Flag{serverFlag()},
				Action: r.DownloadCancel,
			},
			{
				Name:  "fetch",
				Usage: "Save a completed job's archive",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "job-id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Archive path (default: name sent by the server)",
					},
					serverFlag(),
				},
				Action: r.DownloadFetch,
			},
		},
	}
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config.toml",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the candidate cache database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// cacheCommand inspects the candidate cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the local candidate cache",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List cached candidates in insertion order",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of candidates to list",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cached candidate",
				Action: r.CacheClear,
			},
		},
	}
}
