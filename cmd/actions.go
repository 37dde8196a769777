package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/desertthunder/tunefeed/internal/formatter"
	"github.com/desertthunder/tunefeed/internal/server"
	"github.com/desertthunder/tunefeed/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve wires every collaborator into the HTTP API and runs until SIGINT or SIGTERM.
//
// Charts and chords routes answer 503 when their credentials are not configured.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := r.releaseStack()
	if err != nil {
		return err
	}
	defer stack.Close()
	stack.cache.Start()

	if _, err := stack.tokens.EnsureValid(ctx); err != nil {
		r.logger.Warn("initial token exchange failed", "error", err, "state", stack.tokens.State())
	}

	api := &server.API{
		Releases: stack.agg,
		Metrics:  r.metrics.Handler(),
		Logger:   r.logger,
	}
	if charts, err := r.chartsService(); err == nil {
		api.Charts = charts
	} else {
		r.logger.Warn("chart routes disabled", "error", err)
	}
	if chords, err := r.chordService(); err == nil {
		api.Chords = chords
	} else {
		r.logger.Warn("chord routes disabled", "error", err)
	}

	cfg := r.config.Server
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = port
	}

	srv := server.New(cfg, server.NewHandler(api, r.metrics), r.logger)
	return srv.Run(ctx)
}

// Releases prints today's new releases in the requested format.
func (r *Runner) Releases(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	stack, err := r.releaseStack()
	if err != nil {
		return err
	}
	defer stack.Close()

	releases, err := stack.agg.GetNewReleases(ctx, cmd.Bool("refresh"))
	if err != nil {
		return fmt.Errorf("failed to fetch new releases: %w", err)
	}
	releases = formatter.Dedupe(releases)

	path := cmd.String("output")
	if err := formatter.WriteReleases(r.output, releases, format, path); err != nil {
		return err
	}
	if path != "" {
		return r.writePlain("✓ Wrote %d releases to %s\n", len(releases), path)
	}
	return nil
}

// Track prints the best catalog match for --title and --artist.
func (r *Runner) Track(ctx context.Context, cmd *cli.Command) error {
	stack, err := r.releaseStack()
	if err != nil {
		return err
	}
	defer stack.Close()

	match, err := stack.agg.FindBestTrackMatch(ctx, cmd.String("title"), cmd.String("artist"))
	if err != nil {
		return fmt.Errorf("failed to match track: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(match, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s - %s", match.Artist, match.Title))
	r.writePlain("Album:      %s (%s)\n", match.Album.Name, match.Album.ReleaseDate)
	r.writePlain("Duration:   %s\n", shared.FormatDuration(match.DurationMS))
	r.writePlain("Popularity: %d\n", match.Popularity)
	r.writePlain("Score:      %.1f\n", match.Score)
	if match.ExternalURL != "" {
		r.writePlain("URL:        %s\n", match.ExternalURL)
	}
	return nil
}

// TopTracks prints the chart's top tracks.
func (r *Runner) TopTracks(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	if limit < 1 || limit > 100 {
		return fmt.Errorf("%w: limit must be between 1 and 100", shared.ErrInvalidArgument)
	}

	charts, err := r.chartsService()
	if err != nil {
		return err
	}

	entries, err := charts.TopTracks(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to fetch top tracks: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}
	return r.writePlain("%s", formatter.ChartToText(entries))
}

// TrackInfo prints chart metadata for one track.
func (r *Runner) TrackInfo(ctx context.Context, cmd *cli.Command) error {
	charts, err := r.chartsService()
	if err != nil {
		return err
	}

	info, err := charts.TrackInfo(ctx, cmd.String("artist"), cmd.String("track"))
	if err != nil {
		return fmt.Errorf("failed to fetch track info: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(info, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s - %s", info.Artist, info.Name))
	if info.Album != "" {
		r.writePlain("Album:     %s\n", info.Album)
	}
	if info.Duration != "" {
		r.writePlain("Duration:  %s\n", info.Duration)
	}
	r.writePlain("Listeners: %s\n", info.Listeners)
	r.writePlain("Playcount: %s\n", info.Playcount)
	if len(info.Tags) > 0 {
		r.writePlain("Tags:      %s\n", strings.Join(info.Tags, ", "))
	}
	if info.Summary != "" {
		r.writePlain("\n%s\n", info.Summary)
	}
	return nil
}

// Chords prints a chord analysis for --title and --artist.
func (r *Runner) Chords(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.chordService()
	if err != nil {
		return err
	}

	analysis, err := svc.Generate(ctx, cmd.String("title"), cmd.String("artist"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(analysis, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s - %s", analysis.Artist, analysis.Title))
	r.writePlain("Key:        %s\n", analysis.Key)
	r.writePlain("Verse:      %s\n", strings.Join(analysis.Progressions.Verse, " "))
	r.writePlain("Chorus:     %s\n", strings.Join(analysis.Progressions.Chorus, " "))
	if len(analysis.Substitutions) > 0 {
		r.writePlain("Subs:       %s\n", strings.Join(analysis.Substitutions, ", "))
	}
	r.writePlain("Complexity: %s (%s)\n", analysis.Complexity, analysis.Difficulty)
	r.writePlain("Strumming:  %s\n", strings.Join(analysis.Recommendations.Strumming, " | "))
	if capo := analysis.Recommendations.Capo; capo.Position > 0 {
		r.writePlain("Capo:       fret %d, play in %s\n", capo.Position, capo.AlternateKey)
	}
	return nil
}

// Probe checks each catalog endpoint and prints the result.
func (r *Runner) Probe(ctx context.Context, cmd *cli.Command) error {
	stack, err := r.releaseStack()
	if err != nil {
		return err
	}
	defer stack.Close()

	results := stack.agg.Probe(ctx)
	if cmd.Bool("json") {
		return r.writeJSON(results, true)
	}
	return r.writePlain("%s", formatter.ProbeToText(results))
}

// ConfigInit writes the example configuration to --output.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	return r.writePlain("✓ Created %s\n", path)
}
