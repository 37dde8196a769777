// Spotify Web API implementation of [Catalog] and [auth.Issuer]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/tunefeed/internal/auth"
	"github.com/desertthunder/tunefeed/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultTokenLifetime = time.Hour
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	AlbumType    string          `json:"album_type"`
	Artists      []SpotifyArtist `json:"artists"`
	ReleaseDate  string          `json:"release_date"`
	TotalTracks  int             `json:"total_tracks"`
	Images       []SpotifyImage  `json:"images"`
	ExternalURLs externalURLs    `json:"external_urls"`
	URI          string          `json:"uri"`
}

// SpotifyTrack represents a Spotify track. Simplified tracks from album listings leave Album and Popularity empty.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	ExternalIDs  externalIDs     `json:"external_ids"`
	ExternalURLs externalURLs    `json:"external_urls"`
	Popularity   int             `json:"popularity"`
	PreviewURL   *string         `json:"preview_url"`
	URI          string          `json:"uri"`
}

type spotifyPage[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

type spotifyNewReleases struct {
	Albums spotifyPage[SpotifyAlbum] `json:"albums"`
}

type spotifySearch struct {
	Tracks spotifyPage[SpotifyTrack] `json:"tracks"`
}

func (a SpotifyAlbum) toAlbum() Album {
	album := Album{
		ID:          a.ID,
		Name:        a.Name,
		Type:        a.AlbumType,
		ReleaseDate: a.ReleaseDate,
		TotalTracks: a.TotalTracks,
		ExternalURL: a.ExternalURLs.Spotify,
		Artists:     toArtists(a.Artists),
		Images:      make([]Image, len(a.Images)),
	}
	for i, img := range a.Images {
		album.Images[i] = Image{URL: img.URL, Height: img.Height, Width: img.Width}
	}
	return album
}

func (t SpotifyTrack) toTrack() Track {
	track := Track{
		ID:          t.ID,
		Name:        t.Name,
		Artists:     toArtists(t.Artists),
		Album:       t.Album.toAlbum(),
		DurationMS:  t.DurationMS,
		Explicit:    t.Explicit,
		Popularity:  t.Popularity,
		ExternalURL: t.ExternalURLs.Spotify,
		ISRC:        t.ExternalIDs.ISRC,
	}
	if t.PreviewURL != nil {
		track.PreviewURL = *t.PreviewURL
	}
	return track
}

func toArtists(in []SpotifyArtist) []Artist {
	out := make([]Artist, len(in))
	for i, a := range in {
		out[i] = Artist{ID: a.ID, Name: a.Name}
	}
	return out
}

// SpotifyService implements [Catalog] for the Spotify Web API and [auth.Issuer] for its client-credentials flow.
//
// It holds no token: callers obtain one from an [auth.TokenManager] and pass it per call.
type SpotifyService struct {
	client
	credentials clientcredentials.Config
	baseURL     string
}

// NewSpotifyService creates a new Spotify service from the configured client credentials.
func NewSpotifyService(cfg shared.SpotifyConfig, opts ClientOptions) (*SpotifyService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing spotify client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing spotify client_secret", shared.ErrMissingCredentials)
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}
	baseURL := strings.TrimRight(cfg.APIURL, "/")
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	return &SpotifyService{
		client: newClient("spotify", opts),
		credentials: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		baseURL: baseURL,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// ClientCredentialsGrant exchanges the client id and secret for an app token.
func (s *SpotifyService) ClientCredentialsGrant(ctx context.Context) (auth.Grant, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return auth.Grant{}, fmt.Errorf("%w: token exchange: %v", shared.ErrTimeout, err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.http)
	start := time.Now()
	token, err := s.credentials.Token(ctx)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			s.recorder.UpstreamRequest(s.service, rerr.Response.StatusCode, time.Since(start))
			switch rerr.Response.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized:
				return auth.Grant{}, fmt.Errorf("%w: %s", shared.ErrInvalidCredentials, retrieveMessage(rerr))
			}
			return auth.Grant{}, statusError(s.service, "token exchange", rerr.Response.StatusCode, rerr.Body)
		}
		s.recorder.UpstreamRequest(s.service, 0, time.Since(start))
		return auth.Grant{}, fmt.Errorf("%w: token exchange: %v", shared.ErrServiceUnavailable, err)
	}
	s.recorder.UpstreamRequest(s.service, http.StatusOK, time.Since(start))

	lifetime := defaultTokenLifetime
	if !token.Expiry.IsZero() {
		lifetime = time.Until(token.Expiry)
	}

	return auth.Grant{AccessToken: token.AccessToken, ExpiresIn: lifetime}, nil
}

func retrieveMessage(err *oauth2.RetrieveError) string {
	if err.ErrorDescription != "" {
		return err.ErrorDescription
	}
	if err.ErrorCode != "" {
		return err.ErrorCode
	}
	return http.StatusText(err.Response.StatusCode)
}

// get performs an authenticated GET against the Web API.
func (s *SpotifyService) get(ctx context.Context, token, op, endpoint string, params url.Values, result any) error {
	apiURL := s.baseURL + endpoint
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: failed to create request: %v", shared.ErrAPIRequest, op, err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	return s.do(req, op, result)
}

// Search queries the catalog for tracks.
func (s *SpotifyService) Search(ctx context.Context, token, query string, opts SearchOpts) ([]Track, error) {
	if opts.Type == "" {
		opts.Type = "track"
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", opts.Type)
	params.Set("limit", strconv.Itoa(min(opts.Limit, 50)))
	if opts.Market != "" {
		params.Set("market", opts.Market)
	}

	var response spotifySearch
	if err := s.get(ctx, token, "search", "/search", params, &response); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(response.Tracks.Items))
	for _, t := range response.Tracks.Items {
		tracks = append(tracks, t.toTrack())
	}
	return tracks, nil
}

// NewReleases lists the newest albums for a country.
func (s *SpotifyService) NewReleases(ctx context.Context, token string, opts ReleaseOpts) ([]Album, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(min(opts.Limit, 50)))
	if opts.Country != "" {
		params.Set("country", opts.Country)
	}

	var response spotifyNewReleases
	if err := s.get(ctx, token, "new releases", "/browse/new-releases", params, &response); err != nil {
		return nil, err
	}

	albums := make([]Album, 0, len(response.Albums.Items))
	for _, a := range response.Albums.Items {
		albums = append(albums, a.toAlbum())
	}
	return albums, nil
}

// AlbumTracks lists the first limit tracks of an album.
func (s *SpotifyService) AlbumTracks(ctx context.Context, token, albumID string, limit int) ([]Track, error) {
	if albumID == "" {
		return nil, fmt.Errorf("%w: album id", shared.ErrMissingArgument)
	}
	if limit <= 0 {
		limit = 1
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(min(limit, 50)))

	var response spotifyPage[SpotifyTrack]
	endpoint := fmt.Sprintf("/albums/%s/tracks", url.PathEscape(albumID))
	if err := s.get(ctx, token, "album tracks", endpoint, params, &response); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(response.Items))
	for _, t := range response.Items {
		tracks = append(tracks, t.toTrack())
	}
	return tracks, nil
}

// Track retrieves a single track by ID.
func (s *SpotifyService) Track(ctx context.Context, token, trackID string) (*Track, error) {
	if trackID == "" {
		return nil, fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	var track SpotifyTrack
	endpoint := fmt.Sprintf("/tracks/%s", url.PathEscape(trackID))
	if err := s.get(ctx, token, "track", endpoint, nil, &track); err != nil {
		return nil, err
	}

	result := track.toTrack()
	return &result, nil
}
