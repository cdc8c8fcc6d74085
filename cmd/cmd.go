// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// serveCommand runs the web service and the scheduler.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the sign-in and job endpoints and shuffle on the scheduler interval",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "no-scheduler",
				Usage: "Serve HTTP only; passes run through POST /run or the run command",
			},
		},
		Action: r.Serve,
	}
}

// runCommand runs one shuffle pass.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Shuffle every registered job once",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Run,
	}
}

// setupCommand handles setup operations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing, initialize the database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}

// jobsCommand manages shuffle jobs.
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Manage shuffle jobs",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List jobs; with --owner, include playlist names",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Only list jobs owned by this Spotify user id",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (text, csv, markdown, json)",
						Value:   "text",
					},
				},
				Action: r.JobsList,
			},
			{
				Name:  "add",
				Usage: "Create a destination playlist and a job that shuffles the source into it",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "owner",
						Usage:    "Spotify user id of a signed-in user",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "source",
						Usage:    "Source playlist ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Destination playlist name (default: \"<source> (Daily Shuffle)\")",
					},
				},
				Action: r.JobsAdd,
			},
			{
				Name:    "rm",
				Aliases: []string{"remove"},
				Usage:   "Delete a job; the destination playlist is kept",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "owner",
						Usage:    "Spotify user id of the job owner",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "destination",
						Usage:    "Destination playlist ID",
						Required: true,
					},
				},
				Action: r.JobsRemove,
			},
		},
	}
}

// sweepCommand clears expired browser sessions.
func sweepCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "sweep",
		Usage:  "Clear expired browser sessions from the database",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Sweep,
	}
}
