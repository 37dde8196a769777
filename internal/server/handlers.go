package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunefeed/internal/cache"
	"github.com/desertthunder/tunefeed/internal/models"
	"github.com/desertthunder/tunefeed/internal/services"
	"github.com/desertthunder/tunefeed/internal/shared"
)

const (
	defaultTopTracks = 10
	maxTopTracks     = 100
	maxBodyBytes     = 1 << 20
)

// Releases is the catalog side of the API. [aggregator.Aggregator] implements it.
type Releases interface {
	GetNewReleases(ctx context.Context, force bool) ([]models.ReleaseSummary, error)
	FindBestTrackMatch(ctx context.Context, title, artist string) (*models.TrackMatch, error)
	Probe(ctx context.Context) []models.ProbeResult
	CacheStats() cache.Stats
	InvalidateReleases() bool
}

// Chords generates chord analyses. [chords.Service] implements it.
type Chords interface {
	Generate(ctx context.Context, title, artist string) (*models.ChordAnalysis, error)
}

// API holds the handlers of the JSON surface. Charts, Chords and Metrics are optional; routes that need
// a missing collaborator answer 503.
type API struct {
	Releases Releases
	Charts   services.Charts
	Chords   Chords
	Metrics  http.Handler
	Logger   *log.Logger
}

type trackInfoBody struct {
	TrackInfo *models.TrackMatch `json:"track_info"`
}

type invalidateBody struct {
	Message string `json:"message"`
	Removed bool   `json:"removed"`
}

type chordRequest struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// NewHandler builds the router with the standard middleware stack and every route registered.
func NewHandler(api *API, obs RequestObserver) http.Handler {
	if api.Logger == nil {
		api.Logger = shared.NewLogger(nil)
	}

	r := NewBasicRouter()
	r.Use(RequestID(), Logging(api.Logger, obs), Recover(api.Logger), CORS())
	api.Register(r)
	return r
}

// Register adds every route to r.
func (a *API) Register(r Router) {
	r.Handler(messages{
		"/test":            "Server is running!",
		"/api":             "We are ready!",
		"/api/chords/test": "Chord routes are working!",
	})

	r.Handle(http.MethodGet, "/api/browse/new-releases", http.HandlerFunc(a.newReleases))
	r.Handle(http.MethodGet, "/api/browse/track-info", http.HandlerFunc(a.trackMatch))
	r.Handle(http.MethodGet, "/api/test-endpoints", http.HandlerFunc(a.probe))

	r.Handle(http.MethodGet, "/api/top-tracks", http.HandlerFunc(a.topTracks))
	r.Handle(http.MethodGet, "/api/track-info", http.HandlerFunc(a.trackInfo))

	r.Handle(http.MethodPost, "/api/chords/generate", http.HandlerFunc(a.generateChords))

	r.Handle(http.MethodGet, "/api/cache/stats", http.HandlerFunc(a.cacheStats))
	r.Handle(http.MethodDelete, "/api/cache", http.HandlerFunc(a.invalidate))

	if a.Metrics != nil {
		r.Handle(http.MethodGet, "/metrics", a.Metrics)
	}
}

// messages answers fixed liveness messages keyed by path.
type messages map[string]string

func (m messages) Routes() []string {
	routes := make([]string, 0, len(m))
	for path := range m {
		routes = append(routes, path)
	}
	slices.Sort(routes)
	return routes
}

func (m messages) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
		return
	}
	msg, ok := m[r.URL.Path]
	if !ok {
		notFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		a.Logger.Error(op+" failed", "error", err, "status", status, "request_id", RequestIDFrom(r.Context()))
	} else {
		a.Logger.Warn(op+" failed", "error", err, "status", status, "request_id", RequestIDFrom(r.Context()))
	}
	writeError(w, err)
}

func (a *API) newReleases(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("refresh") == "true"

	releases, err := a.Releases.GetNewReleases(r.Context(), force)
	if err != nil {
		a.fail(w, r, "new releases", err)
		return
	}
	writeJSON(w, http.StatusOK, releases)
}

func (a *API) trackMatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	title, artist := strings.TrimSpace(q.Get("title")), strings.TrimSpace(q.Get("artist"))
	if title == "" || artist == "" {
		writeError(w, fmt.Errorf("%w: both title and artist are required", shared.ErrMissingArgument))
		return
	}

	match, err := a.Releases.FindBestTrackMatch(r.Context(), title, artist)
	if err != nil {
		a.fail(w, r, "track match", err)
		return
	}
	writeJSON(w, http.StatusOK, trackInfoBody{TrackInfo: match})
}

func (a *API) probe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Releases.Probe(r.Context()))
}

func (a *API) topTracks(w http.ResponseWriter, r *http.Request) {
	if a.Charts == nil {
		writeError(w, fmt.Errorf("%w: chart provider is not configured", shared.ErrMissingCredentials))
		return
	}

	limit := defaultTopTracks
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxTopTracks {
			writeError(w, fmt.Errorf("%w: limit must be between 1 and %d", shared.ErrInvalidArgument, maxTopTracks))
			return
		}
		limit = n
	}

	tracks, err := a.Charts.TopTracks(r.Context(), limit)
	if err != nil {
		a.fail(w, r, "top tracks", err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (a *API) trackInfo(w http.ResponseWriter, r *http.Request) {
	if a.Charts == nil {
		writeError(w, fmt.Errorf("%w: chart provider is not configured", shared.ErrMissingCredentials))
		return
	}

	q := r.URL.Query()
	artist, track := strings.TrimSpace(q.Get("artist")), strings.TrimSpace(q.Get("track"))
	if artist == "" || track == "" {
		writeError(w, fmt.Errorf("%w: both artist and track name are required", shared.ErrMissingArgument))
		return
	}

	info, err := a.Charts.TrackInfo(r.Context(), artist, track)
	if err != nil {
		a.fail(w, r, "track info", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *API) generateChords(w http.ResponseWriter, r *http.Request) {
	if a.Chords == nil {
		writeError(w, fmt.Errorf("%w: text generator is not configured", shared.ErrMissingCredentials))
		return
	}

	var req chordRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: request body must be a JSON object: %v", shared.ErrInvalidArgument, err))
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Artist) == "" {
		writeError(w, fmt.Errorf("%w: title and artist are required", shared.ErrMissingArgument))
		return
	}

	analysis, err := a.Chords.Generate(r.Context(), req.Title, req.Artist)
	if err != nil {
		a.fail(w, r, "chord generation", err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (a *API) cacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.Releases.CacheStats())
}

func (a *API) invalidate(w http.ResponseWriter, _ *http.Request) {
	removed := a.Releases.InvalidateReleases()
	writeJSON(w, http.StatusOK, invalidateBody{Message: "release cache cleared", Removed: removed})
}
