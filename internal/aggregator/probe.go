package aggregator

import (
	"context"
	"fmt"

	"github.com/desertthunder/tunefeed/internal/models"
	"github.com/desertthunder/tunefeed/internal/services"
	"github.com/desertthunder/tunefeed/internal/shared"
	"golang.org/x/sync/errgroup"
)

type probe struct {
	name string
	run  func(ctx context.Context) error
}

// Probe exercises each catalog endpoint the service depends on and reports which ones answer.
// Results keep a fixed order.
func (a *Aggregator) Probe(ctx context.Context) []models.ProbeResult {
	probes := []probe{
		{"Browse - New Releases", func(ctx context.Context) error {
			_, err := a.probeAlbum(ctx)
			return err
		}},
		{"Search", func(ctx context.Context) error {
			_, err := a.probeSearch(ctx, "test")
			return err
		}},
		{"Albums - Album Tracks", func(ctx context.Context) error {
			album, err := a.probeAlbum(ctx)
			if err != nil {
				return err
			}
			_, err = withToken(ctx, a, "album tracks", func(token string) ([]services.Track, error) {
				return a.catalog.AlbumTracks(ctx, token, album.ID, 1)
			})
			return err
		}},
		{"Tracks - Get Track", func(ctx context.Context) error {
			track, err := a.probeSearch(ctx, "Shape of You")
			if err != nil {
				return err
			}
			_, err = withToken(ctx, a, "track", func(token string) (*services.Track, error) {
				return a.catalog.Track(ctx, token, track.ID)
			})
			return err
		}},
	}

	results := make([]models.ProbeResult, len(probes))

	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			results[i] = models.ProbeResult{Name: p.name, Status: "working"}
			if err := p.run(ctx); err != nil {
				results[i].Status = "failed"
				results[i].Error = err.Error()
				a.logger.Warn("probe failed", "endpoint", p.name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (a *Aggregator) probeAlbum(ctx context.Context) (*services.Album, error) {
	albums, err := withToken(ctx, a, "new releases", func(token string) ([]services.Album, error) {
		return a.catalog.NewReleases(ctx, token, services.ReleaseOpts{Limit: 1, Country: a.country})
	})
	if err != nil {
		return nil, err
	}
	if len(albums) == 0 {
		return nil, fmt.Errorf("%w: new releases returned no albums", shared.ErrNotFound)
	}
	return &albums[0], nil
}

func (a *Aggregator) probeSearch(ctx context.Context, query string) (*services.Track, error) {
	tracks, err := withToken(ctx, a, "search", func(token string) ([]services.Track, error) {
		return a.catalog.Search(ctx, token, query, services.SearchOpts{Type: "track", Limit: 1, Market: a.market})
	})
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: search %q returned no tracks", shared.ErrNotFound, query)
	}
	return &tracks[0], nil
}
