package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/tunefeed/internal/shared"
)

func newSpotifyServer(t *testing.T, handler http.HandlerFunc) (*SpotifyService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	srv, err := NewSpotifyService(shared.SpotifyConfig{
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
		TokenURL:     server.URL + "/api/token",
		APIURL:       server.URL + "/v1",
	}, ClientOptions{Logger: shared.NewLogger(io.Discard)})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return srv, server
}

func TestSpotifyService(t *testing.T) {
	ctx := context.Background()

	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret"}, ClientOptions{})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
			if srv.baseURL != spotifyBaseURL || srv.credentials.TokenURL != spotifyTokenURL {
				t.Errorf("expected default endpoints, got %s and %s", srv.baseURL, srv.credentials.TokenURL)
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(shared.SpotifyConfig{ClientSecret: "secret"}, ClientOptions{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(shared.SpotifyConfig{ClientID: "id"}, ClientOptions{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Service Interface", func(t *testing.T) {
			var _ Catalog = &SpotifyService{}
		})
	})

	t.Run("ClientCredentialsGrant", func(t *testing.T) {
		t.Run("returns token and lifetime", func(t *testing.T) {
			srv, _ := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/token" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				user, pass, ok := r.BasicAuth()
				if !ok || user != "test_client_id" || pass != "test_client_secret" {
					t.Errorf("expected basic auth with client credentials, got %q %q", user, pass)
				}
				if err := r.ParseForm(); err != nil {
					t.Fatal(err)
				}
				if r.PostForm.Get("grant_type") != "client_credentials" {
					t.Errorf("expected client_credentials grant, got %s", r.PostForm.Get("grant_type"))
				}
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"access_token":"app-token","token_type":"Bearer","expires_in":3600}`)
			})

			grant, err := srv.ClientCredentialsGrant(ctx)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if grant.AccessToken != "app-token" {
				t.Errorf("expected app-token, got %s", grant.AccessToken)
			}
			if grant.ExpiresIn < 59*time.Minute || grant.ExpiresIn > time.Hour {
				t.Errorf("expected about an hour of lifetime, got %v", grant.ExpiresIn)
			}
		})

		t.Run("rejected credentials", func(t *testing.T) {
			srv, _ := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_client","error_description":"Invalid client secret"}`)
			})

			_, err := srv.ClientCredentialsGrant(ctx)
			if !errors.Is(err, shared.ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})

		t.Run("token endpoint outage", func(t *testing.T) {
			srv, _ := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			})

			_, err := srv.ClientCredentialsGrant(ctx)
			if !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
		})
	})

	t.Run("Search", func(t *testing.T) {
		srv, _ := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/search" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer tok" {
				t.Errorf("expected bearer token, got %s", r.Header.Get("Authorization"))
			}
			q := r.URL.Query()
			if q.Get("q") != `track:"shape of you" artist:"ed sheeran"` || q.Get("type") != "track" || q.Get("limit") != "20" || q.Get("market") != "US" {
				t.Errorf("unexpected query %v", q)
			}
			fmt.Fprint(w, `{"tracks":{"items":[{
				"id":"t1","name":"Shape of You","popularity":87,"duration_ms":233712,"explicit":false,
				"preview_url":"https://p.scdn.co/t1","external_urls":{"spotify":"https://open.spotify.com/track/t1"},
				"artists":[{"id":"a1","name":"Ed Sheeran"}],
				"album":{"id":"al1","name":"Divide","album_type":"album","release_date":"2017-03-03","images":[{"url":"https://i.scdn.co/al1","height":640,"width":640}]}
			},{"id":"t2","name":"Shape of You - Remix","preview_url":null,"artists":[{"name":"Someone"}]}]}}`)
		})

		tracks, err := srv.Search(ctx, "tok", `track:"shape of you" artist:"ed sheeran"`, SearchOpts{Limit: 20, Market: "US"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}

		first := tracks[0]
		if first.ID != "t1" || first.PrimaryArtist() != "Ed Sheeran" || first.Popularity != 87 {
			t.Errorf("unexpected first track %+v", first)
		}
		if first.PreviewURL != "https://p.scdn.co/t1" || first.Album.ImageURL() != "https://i.scdn.co/al1" {
			t.Errorf("expected preview and artwork, got %+v", first)
		}
		if tracks[1].PreviewURL != "" {
			t.Error("expected null preview to map to empty string")
		}
		if names := first.MatchArtists(); len(names) != 1 || names[0] != "Ed Sheeran" {
			t.Errorf("unexpected match artists %v", names)
		}
	})

	t.Run("NewReleases", func(t *testing.T) {
		srv, _ := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/browse/new-releases" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.URL.Query().Get("limit") != "10" || r.URL.Query().Get("country") != "US" {
				t.Errorf("unexpected query %v", r.URL.Query())
			}
			fmt.Fprint(w, `{"albums":{"items":[{"id":"al1","name":"New Album","album_type":"single","release_date":"2025-03-14",
				"artists":[{"name":"Artist One"},{"name":"Artist Two"}],"external_urls":{"spotify":"https://open.spotify.com/album/al1"}}]}}`)
		})

		albums, err := srv.NewReleases(ctx, "tok", ReleaseOpts{Limit: 10, Country: "US"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(albums) != 1 {
			t.Fatalf("expected 1 album, got %d", len(albums))
		}
		if albums[0].PrimaryArtist() != "Artist One" || albums[0].ExternalURL != "https://open.spotify.com/album/al1" {
			t.Errorf("unexpected album %+v", albums[0])
		}
		if albums[0].ImageURL() != "" {
			t.Error("expected empty artwork for album without images")
		}
	})

	t.Run("AlbumTracks and Track", func(t *testing.T) {
		srv, _ := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/v1/albums/al1/tracks":
				if r.URL.Query().Get("limit") != "1" {
					t.Errorf("expected limit 1, got %s", r.URL.Query().Get("limit"))
				}
				fmt.Fprint(w, `{"items":[{"id":"t1","name":"Opener","duration_ms":1000}]}`)
			case "/v1/tracks/t1":
				fmt.Fprint(w, `{"id":"t1","name":"Opener","duration_ms":181000,"popularity":55}`)
			default:
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"error":{"status":404,"message":"Non existing id"}}`)
			}
		})

		tracks, err := srv.AlbumTracks(ctx, "tok", "al1", 1)
		if err != nil || len(tracks) != 1 || tracks[0].ID != "t1" {
			t.Fatalf("unexpected album tracks %v, %v", tracks, err)
		}

		track, err := srv.Track(ctx, "tok", "t1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if track.DurationMS != 181000 || track.Popularity != 55 {
			t.Errorf("unexpected track %+v", track)
		}

		_, err = srv.Track(ctx, "tok", "missing")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err != nil && !strings.Contains(err.Error(), "Non existing id") {
			t.Errorf("expected upstream message in error, got %v", err)
		}

		if _, err := srv.Track(ctx, "tok", ""); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected validation error for empty id, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		srv, _ := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"status":401,"message":"The access token expired"}}`)
		})

		_, err := srv.NewReleases(ctx, "stale", ReleaseOpts{})
		if !errors.Is(err, shared.ErrAuthFailed) || !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected auth failure, got %v", err)
		}
	})
}
