// package services defines the upstream collaborators: the music catalog, the chart provider and the text generator.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunefeed/internal/shared"
	"golang.org/x/time/rate"
)

// Catalog is the music catalog collaborator. Every call takes the bearer token explicitly so the caller
// can retry once with a refreshed token after [shared.ErrAuthFailed].
type Catalog interface {
	// Search looks up tracks matching query.
	Search(ctx context.Context, token, query string, opts SearchOpts) ([]Track, error)

	// NewReleases lists the newest albums.
	NewReleases(ctx context.Context, token string, opts ReleaseOpts) ([]Album, error)

	// AlbumTracks lists up to limit tracks of an album.
	AlbumTracks(ctx context.Context, token, albumID string, limit int) ([]Track, error)

	// Track retrieves a single track by ID.
	Track(ctx context.Context, token, trackID string) (*Track, error)

	// Name returns the name of the catalog (e.g., "Spotify")
	Name() string
}

// Charts is the chart collaborator. It is called without retry.
type Charts interface {
	TopTracks(ctx context.Context, limit int) ([]ChartEntry, error)
	TrackInfo(ctx context.Context, artist, track string) (*TrackInfo, error)
}

// TextGenerator turns a prompt into free text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SearchOpts scopes a catalog search.
type SearchOpts struct {
	Type   string // defaults to "track"
	Limit  int
	Market string
}

// ReleaseOpts scopes a new-release listing.
type ReleaseOpts struct {
	Limit   int
	Country string
}

// Image is an artwork resource.
type Image struct {
	URL    string
	Height int
	Width  int
}

// Artist is a credited artist.
type Artist struct {
	ID   string
	Name string
}

// Album is a catalog album or single.
type Album struct {
	ID          string
	Name        string
	Type        string
	Artists     []Artist
	ReleaseDate string
	TotalTracks int
	Images      []Image
	ExternalURL string
}

// Track is a catalog track.
type Track struct {
	ID          string
	Name        string
	Artists     []Artist
	Album       Album
	DurationMS  int
	Explicit    bool
	Popularity  int
	PreviewURL  string
	ExternalURL string
	ISRC        string // International Standard Recording Code
}

// PrimaryArtist returns the first credited artist name.
func (a Album) PrimaryArtist() string {
	if len(a.Artists) == 0 {
		return ""
	}
	return a.Artists[0].Name
}

// ImageURL returns the largest (first) artwork URL.
func (a Album) ImageURL() string {
	if len(a.Images) == 0 {
		return ""
	}
	return a.Images[0].URL
}

// PrimaryArtist returns the first credited artist name.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

func (t Track) MatchTitle() string { return t.Name }

func (t Track) MatchArtists() []string {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return names
}

func (t Track) MatchPopularity() int { return t.Popularity }

// Recorder receives one observation per upstream request. The metrics package provides a Prometheus implementation.
type Recorder interface {
	UpstreamRequest(service string, status int, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) UpstreamRequest(string, int, time.Duration) {}

// ClientOptions configures the HTTP plumbing shared by every collaborator.
type ClientOptions struct {
	HTTPClient        *http.Client
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Recorder          Recorder
	Logger            *log.Logger
}

// ClientOptionsFrom builds [ClientOptions] from the upstream config section.
func ClientOptionsFrom(cfg shared.UpstreamConfig, logger *log.Logger, rec Recorder) ClientOptions {
	return ClientOptions{
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Recorder:          rec,
		Logger:            logger,
	}
}

// client is the rate limited, timeout bounded HTTP caller embedded by each collaborator.
type client struct {
	service  string
	http     *http.Client
	limiter  *rate.Limiter
	recorder Recorder
	logger   *log.Logger
}

func newClient(service string, opts ClientOptions) client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return client{
		service:  service,
		http:     httpClient,
		limiter:  rate.NewLimiter(limit, burst),
		recorder: opts.Recorder,
		logger:   shared.WithLogger(opts.Logger, "service", service),
	}
}

// do waits for the limiter, sends req and decodes a 2xx JSON body into result.
//
// Non-2xx statuses are classified by [statusError]; op names the operation in error messages.
func (c client) do(req *http.Request, op string, result any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrTimeout, op, err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.recorder.UpstreamRequest(c.service, 0, time.Since(start))
		return fmt.Errorf("%w: %s: %v", shared.ErrServiceUnavailable, op, err)
	}
	defer resp.Body.Close()

	c.recorder.UpstreamRequest(c.service, resp.StatusCode, time.Since(start))
	c.logger.Debug("upstream request", "op", op, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(c.service, op, resp.StatusCode, body)
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: %s: failed to decode response: %v", shared.ErrAPIRequest, op, err)
	}
	return nil
}

// statusError maps an upstream status onto the shared error taxonomy.
func statusError(service, op string, status int, body []byte) error {
	msg := upstreamMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w: %s %s: %s", shared.ErrAuthFailed, shared.ErrTokenExpired, service, op, msg)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s: %s", shared.ErrNotFound, service, op, msg)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: %s %s: status %d: %s", shared.ErrServiceUnavailable, service, op, status, msg)
	default:
		return fmt.Errorf("%w: %s %s: status %d: %s", shared.ErrAPIRequest, service, op, status, msg)
	}
}

// upstreamMessage pulls a human readable message out of the common error body shapes.
func upstreamMessage(body []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	if payload.Message != "" {
		return payload.Message
	}

	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload.Error, &nested); err == nil && nested.Message != "" {
		return nested.Message
	}

	var plain string
	if err := json.Unmarshal(payload.Error, &plain); err == nil {
		return plain
	}
	return ""
}

// IsAuthError reports whether err is an upstream credential rejection.
func IsAuthError(err error) bool {
	return errors.Is(err, shared.ErrAuthFailed)
}
