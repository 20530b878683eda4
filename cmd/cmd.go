// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   defaultConfigPath,
	}
}

// setupCommand handles setup operations for the database and configuration file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write an example configuration file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand runs the Spotify authorization code flow.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Authenticate with Spotify using OAuth2",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Auth,
	}
}

// syncCommand resolves a tracklist into a playlist.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Add every track of a tracklist file to a Spotify playlist",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "playlist",
				Aliases:  []string{"p"},
				Usage:    "Playlist URL, URI or ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "tracklist",
				Aliases:  []string{"t"},
				Usage:    "File with one track name per line",
				Required: true,
			},
			&cli.FloatFlag{
				Name:  "threshold",
				Usage: "Minimum match score in [0,1] (default from config)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Search results considered per track (default from config)",
			},
			&cli.StringFlag{
				Name:  "policy",
				Usage: "Fallback download policy: on_miss, always or never (default from config)",
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Directory for downloaded audio (default from config)",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a report to this file or directory",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Report format: csv, markdown, json or txt",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show progress in an interactive terminal UI",
			},
		},
		Action: r.Sync,
	}
}

// resolveCommand previews the match for one track name.
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Search one track name and show scored candidates without changing anything",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "name"},
		},
		Flags: []cli.Flag{
			configFlag(),
			&cli.FloatFlag{
				Name:  "threshold",
				Usage: "Minimum match score in [0,1] (default from config)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Search results considered (default from config)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Resolve,
	}
}

// followCommand follows every artist on a playlist.
func followCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "follow",
		Usage: "Follow every artist credited on a playlist",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "playlist",
				Aliases:  []string{"p"},
				Usage:    "Playlist URL, URI or ID",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Follow,
	}
}

// historyCommand lists recorded runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List past sync runs, or follow runs with --follows",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "follows",
				Usage: "List follow runs instead of sync runs",
			},
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Only show runs for this playlist URL, URI or ID",
			},
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
		Action: r.History,
	}
}
