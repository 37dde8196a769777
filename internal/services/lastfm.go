// Last.fm implementation of [Charts]
//
// Response shapes follow https://www.last.fm/api/show/chart.getTopTracks and https://www.last.fm/api/show/track.getInfo
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/tunefeed/internal/models"
	"github.com/desertthunder/tunefeed/internal/shared"
)

const lastfmBaseURL = "https://ws.audioscrobbler.com/2.0/"

type lastfmImage struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

type lastfmArtist struct {
	Name string `json:"name"`
	MBID string `json:"mbid"`
	URL  string `json:"url"`
}

type lastfmTrack struct {
	Name      string        `json:"name"`
	MBID      string        `json:"mbid"`
	URL       string        `json:"url"`
	Duration  string        `json:"duration"`
	Playcount string        `json:"playcount"`
	Listeners string        `json:"listeners"`
	Artist    lastfmArtist  `json:"artist"`
	Image     []lastfmImage `json:"image"`
	Album     *struct {
		Title string        `json:"title"`
		Image []lastfmImage `json:"image"`
	} `json:"album"`
	TopTags struct {
		Tag []struct {
			Name string `json:"name"`
		} `json:"tag"`
	} `json:"toptags"`
	Wiki *struct {
		Summary string `json:"summary"`
		Content string `json:"content"`
	} `json:"wiki"`
}

// lastfmEnvelope carries both payloads and the in-band error Last.fm returns with a 200 status.
type lastfmEnvelope struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
	Tracks  *struct {
		Track []lastfmTrack `json:"track"`
	} `json:"tracks"`
	Track *lastfmTrack `json:"track"`
}

// ChartEntry is an alias kept for the [Charts] signature.
type ChartEntry = models.ChartTrack

// TrackInfo is an alias kept for the [Charts] signature.
type TrackInfo = models.TrackDetails

// LastFMService implements [Charts] against the Last.fm REST API.
type LastFMService struct {
	client
	apiKey  string
	baseURL string
}

// NewLastFMService creates a chart client. An API key is required.
func NewLastFMService(cfg shared.LastFMConfig, opts ClientOptions) (*LastFMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing lastfm api_key", shared.ErrMissingCredentials)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = lastfmBaseURL
	}

	return &LastFMService{
		client:  newClient("lastfm", opts),
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
	}, nil
}

func (l *LastFMService) call(ctx context.Context, op string, params url.Values) (*lastfmEnvelope, error) {
	params.Set("api_key", l.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to create request: %v", shared.ErrAPIRequest, op, err)
	}

	var env lastfmEnvelope
	if err := l.do(req, op, &env); err != nil {
		return nil, err
	}
	if env.Error != 0 {
		return nil, lastfmError(op, env.Error, env.Message)
	}
	return &env, nil
}

// lastfmError maps Last.fm error codes (https://www.last.fm/api/errorcodes) onto the shared taxonomy.
func lastfmError(op string, code int, msg string) error {
	switch code {
	case 6:
		return fmt.Errorf("%w: lastfm %s: %s", shared.ErrNotFound, op, msg)
	case 4, 9, 10, 26:
		return fmt.Errorf("%w: lastfm %s: %s", shared.ErrInvalidCredentials, op, msg)
	case 8, 11, 16, 29:
		return fmt.Errorf("%w: lastfm %s: %s", shared.ErrServiceUnavailable, op, msg)
	default:
		return fmt.Errorf("%w: lastfm %s: error %d: %s", shared.ErrAPIRequest, op, code, msg)
	}
}

// TopTracks fetches the global chart.
func (l *LastFMService) TopTracks(ctx context.Context, limit int) ([]ChartEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("method", "chart.gettoptracks")
	params.Set("limit", strconv.Itoa(limit))

	env, err := l.call(ctx, "top tracks", params)
	if err != nil {
		return nil, err
	}
	if env.Tracks == nil {
		return nil, fmt.Errorf("%w: lastfm top tracks: no tracks in response", shared.ErrNotFound)
	}

	tracks := make([]ChartEntry, 0, len(env.Tracks.Track))
	for _, t := range env.Tracks.Track {
		tracks = append(tracks, ChartEntry{
			ID:        trackID(t.MBID, t.Name, t.Artist.Name),
			Name:      t.Name,
			Artist:    t.Artist.Name,
			Image:     imageAt(t.Image, 2),
			Playcount: t.Playcount,
			Listeners: t.Listeners,
			URL:       t.URL,
		})
	}

	l.logger.Debug("fetched top tracks", "count", len(tracks))
	return tracks, nil
}

// TrackInfo fetches metadata for one track with autocorrection enabled.
func (l *LastFMService) TrackInfo(ctx context.Context, artist, track string) (*TrackInfo, error) {
	if artist == "" || track == "" {
		return nil, fmt.Errorf("%w: artist and track are required", shared.ErrMissingArgument)
	}

	params := url.Values{}
	params.Set("method", "track.getInfo")
	params.Set("artist", artist)
	params.Set("track", track)
	params.Set("autocorrect", "1")

	env, err := l.call(ctx, "track info", params)
	if err != nil {
		return nil, err
	}
	if env.Track == nil {
		return nil, fmt.Errorf("%w: lastfm track info: %s by %s", shared.ErrTrackNotFound, track, artist)
	}

	t := env.Track
	details := &TrackInfo{
		ID:        trackID(t.MBID, track, artist),
		Name:      t.Name,
		Artist:    t.Artist.Name,
		Tags:      make([]string, 0, len(t.TopTags.Tag)),
		Playcount: t.Playcount,
		Listeners: t.Listeners,
		URL:       t.URL,
	}
	if t.Album != nil {
		details.Album = t.Album.Title
		details.Image = imageAt(t.Album.Image, 3)
	}
	if ms, err := strconv.Atoi(t.Duration); err == nil && ms > 0 {
		details.Duration = shared.FormatDuration(ms)
	}
	for _, tag := range t.TopTags.Tag {
		details.Tags = append(details.Tags, tag.Name)
	}
	if t.Wiki != nil {
		details.Wiki = t.Wiki.Content
		details.Summary = t.Wiki.Summary
	}

	return details, nil
}

func trackID(mbid, name, artist string) string {
	if mbid != "" {
		return mbid
	}
	return name + "-" + artist
}

func imageAt(images []lastfmImage, i int) string {
	if i < len(images) {
		return images[i].URL
	}
	return ""
}
