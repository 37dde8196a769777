package aggregator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunefeed/internal/cache"
	"github.com/desertthunder/tunefeed/internal/matcher"
	"github.com/desertthunder/tunefeed/internal/models"
	"github.com/desertthunder/tunefeed/internal/services"
	"github.com/desertthunder/tunefeed/internal/shared"
	"golang.org/x/sync/singleflight"
)

// ReleasesKey is the fixed cache key of the new-release listing.
const ReleasesKey = "new-releases"

const (
	defaultLimit       = 10
	defaultSearchLimit = 20
	defaultConcurrency = 5
)

// Tokens hands out bearer tokens. [auth.TokenManager] is the production implementation.
type Tokens interface {
	EnsureValid(ctx context.Context) (string, error)
	Refresh(ctx context.Context, stale string) (string, error)
}

// Recorder is told how many releases were cached after each successful fetch.
type Recorder interface {
	CachedReleases(n int)
}

type noopRecorder struct{}

func (noopRecorder) CachedReleases(int) {}

// ReleaseCache stores release listings.
type ReleaseCache = cache.Cache[[]models.ReleaseSummary]

// Options configures an [Aggregator]. Zero values fall back to defaults.
type Options struct {
	Limit             int
	SearchLimit       int
	EnrichConcurrency int
	Country           string
	Market            string
	Now               func() time.Time
	Recorder          Recorder
	Logger            *log.Logger
}

// OptionsFrom maps the releases and catalog config sections onto [Options].
func OptionsFrom(cfg *shared.Config) Options {
	return Options{
		Limit:             cfg.Releases.Limit,
		SearchLimit:       cfg.Releases.SearchLimit,
		EnrichConcurrency: cfg.Releases.EnrichConcurrency,
		Country:           cfg.Credentials.Spotify.Country,
		Market:            cfg.Credentials.Spotify.Market,
	}
}

// Aggregator combines the release cache, the token source and the catalog.
type Aggregator struct {
	catalog services.Catalog
	tokens  Tokens
	cache   *ReleaseCache

	limit       int
	searchLimit int
	concurrency int
	country     string
	market      string
	now         func() time.Time
	recorder    Recorder
	logger      *log.Logger

	fetches singleflight.Group
}

func New(catalog services.Catalog, tokens Tokens, c *ReleaseCache, opts Options) *Aggregator {
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = defaultSearchLimit
	}
	if opts.EnrichConcurrency <= 0 {
		opts.EnrichConcurrency = defaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Aggregator{
		catalog:     catalog,
		tokens:      tokens,
		cache:       c,
		limit:       opts.Limit,
		searchLimit: opts.SearchLimit,
		concurrency: opts.EnrichConcurrency,
		country:     opts.Country,
		market:      opts.Market,
		now:         opts.Now,
		recorder:    opts.Recorder,
		logger:      shared.WithLogger(opts.Logger, "component", "aggregator"),
	}
}

// withToken runs call with a valid token. A credential rejection triggers one refresh and one retry;
// a second rejection is returned as is.
func withToken[T any](ctx context.Context, a *Aggregator, op string, call func(token string) (T, error)) (T, error) {
	var zero T

	token, err := a.tokens.EnsureValid(ctx)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}

	result, err := call(token)
	if err == nil || !services.IsAuthError(err) {
		return result, err
	}

	a.logger.Warn("catalog rejected token, refreshing", "op", op, "error", err)
	token, err = a.tokens.Refresh(ctx, token)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}

	result, err = call(token)
	if services.IsAuthError(err) {
		return zero, fmt.Errorf("%s: rejected after token refresh: %w", op, err)
	}
	return result, err
}

// FindBestTrackMatch searches the catalog for title by artist and returns the highest scoring hit.
func (a *Aggregator) FindBestTrackMatch(ctx context.Context, title, artist string) (*models.TrackMatch, error) {
	title, artist = strings.TrimSpace(title), strings.TrimSpace(artist)
	if title == "" || artist == "" {
		return nil, fmt.Errorf("%w: title and artist are required", shared.ErrMissingArgument)
	}

	query := fmt.Sprintf(`track:"%s" artist:"%s"`, shared.Normalize(title), shared.Normalize(artist))
	opts := services.SearchOpts{Type: "track", Limit: a.searchLimit, Market: a.market}

	tracks, err := withToken(ctx, a, "search", func(token string) ([]services.Track, error) {
		return a.catalog.Search(ctx, token, query, opts)
	})
	if err != nil {
		return nil, err
	}

	best, ok := matcher.BestMatch(tracks, title, artist)
	if !ok {
		return nil, fmt.Errorf("%w: %s by %s", shared.ErrTrackNotFound, title, artist)
	}

	a.logger.Debug("track matched",
		"title", title, "artist", artist,
		"found_title", best.Record.Name, "found_artist", best.Record.PrimaryArtist(),
		"score", best.Score, "candidates", len(tracks))

	return toTrackMatch(best), nil
}

func toTrackMatch(s matcher.Scored[services.Track]) *models.TrackMatch {
	t := s.Record
	return &models.TrackMatch{
		ID:     t.ID,
		Title:  t.Name,
		Artist: t.PrimaryArtist(),
		Album: models.AlbumInfo{
			Name:        t.Album.Name,
			ReleaseDate: t.Album.ReleaseDate,
			ImageURL:    t.Album.ImageURL(),
			Type:        t.Album.Type,
		},
		PreviewURL:  t.PreviewURL,
		ExternalURL: t.ExternalURL,
		Popularity:  t.Popularity,
		Explicit:    t.Explicit,
		DurationMS:  t.DurationMS,
		Score:       s.Score,
	}
}

// CacheStats reports on the release cache.
func (a *Aggregator) CacheStats() cache.Stats {
	return a.cache.Stats()
}

// InvalidateReleases drops the cached listing and reports whether one was present.
func (a *Aggregator) InvalidateReleases() bool {
	return a.cache.Delete(ReleasesKey)
}
