// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on, overriding the config file",
			},
		},
		Action: r.Serve,
	}
}

// releasesCommand prints the latest releases
func releasesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "releases",
		Usage: "List today's new releases",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Bypass the release cache",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, csv or markdown",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to this file instead of stdout",
			},
		},
		Action: r.Releases,
	}
}

// trackCommand finds the best catalog match for a title and artist
func trackCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "track",
		Usage: "Find the best catalog match for a song",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "title",
				Aliases:  []string{"t"},
				Usage:    "Song title",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "artist",
				Aliases:  []string{"a"},
				Usage:    "Artist name",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output as JSON",
			},
		},
		Action: r.Track,
	}
}

// chartsCommand handles chart lookups
func chartsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "charts",
		Usage: "Chart and track metadata lookups",
		Commands: []*cli.Command{
			{
				Name:  "top",
				Usage: "Show the top tracks chart",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of tracks to show (1-100)",
						Value: 10,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as JSON",
					},
				},
				Action: r.TopTracks,
			},
			{
				Name:  "info",
				Usage: "Show metadata for a single track",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "artist",
						Aliases:  []string{"a"},
						Usage:    "Artist name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "track",
						Aliases:  []string{"t"},
						Usage:    "Track name",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as JSON",
					},
				},
				Action: r.TrackInfo,
			},
		},
	}
}

// chordsCommand suggests chords for a song
func chordsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "chords",
		Usage: "Suggest a chord progression for a song",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "title",
				Aliases:  []string{"t"},
				Usage:    "Song title",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "artist",
				Aliases:  []string{"a"},
				Usage:    "Artist name",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output as JSON",
			},
		},
		Action: r.Chords,
	}
}

// probeCommand checks the catalog endpoints
func probeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "Check that each catalog endpoint answers",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output as JSON",
			},
		},
		Action: r.Probe,
	}
}

// configCommand manages the configuration file
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration file operations",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write an example config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path of the file to create",
						Value:   "config.toml",
					},
				},
				Action: r.ConfigInit,
			},
		},
	}
}
