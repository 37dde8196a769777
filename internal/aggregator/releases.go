package aggregator

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/desertthunder/tunefeed/internal/models"
	"github.com/desertthunder/tunefeed/internal/services"
	"github.com/desertthunder/tunefeed/internal/shared"
	"golang.org/x/sync/errgroup"
)

const dateLayout = "2006-01-02"

// IsFresh reports whether a cached listing is still current: its first release must be dated today.
func IsFresh(releases []models.ReleaseSummary, now time.Time) bool {
	if len(releases) == 0 {
		return false
	}
	return releases[0].ReleaseDate == now.Format(dateLayout)
}

// GetNewReleases returns the enriched new-release listing, newest first.
//
// A cached listing is served when it is fresh and force is false. Otherwise the catalog is queried; if
// that fails or comes back empty, any cached listing is served regardless of freshness.
func (a *Aggregator) GetNewReleases(ctx context.Context, force bool) ([]models.ReleaseSummary, error) {
	if !force {
		if cached, ok := a.cache.Get(ReleasesKey); ok && IsFresh(cached, a.now()) {
			a.logger.Debug("serving cached releases", "count", len(cached))
			return slices.Clone(cached), nil
		}
	}

	releases, err := a.fetchShared(ctx)
	if err == nil && len(releases) == 0 {
		err = shared.ErrReleasesNotFound
	}
	if err != nil {
		if stale, ok := a.cache.Get(ReleasesKey); ok {
			a.logger.Warn("release fetch failed, serving cached listing", "error", err, "count", len(stale))
			return slices.Clone(stale), nil
		}
		return nil, err
	}

	return slices.Clone(releases), nil
}

// fetchShared joins an in-flight fetch or starts one. The fetch runs detached from ctx so that a caller
// giving up still leaves the result in the cache.
func (a *Aggregator) fetchShared(ctx context.Context) ([]models.ReleaseSummary, error) {
	detached := context.WithoutCancel(ctx)
	ch := a.fetches.DoChan(ReleasesKey, func() (any, error) {
		return a.fetchReleases(detached)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]models.ReleaseSummary), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for new releases: %v", shared.ErrTimeout, ctx.Err())
	}
}

func (a *Aggregator) fetchReleases(ctx context.Context) ([]models.ReleaseSummary, error) {
	opts := services.ReleaseOpts{Limit: a.limit, Country: a.country}
	albums, err := withToken(ctx, a, "new releases", func(token string) ([]services.Album, error) {
		return a.catalog.NewReleases(ctx, token, opts)
	})
	if err != nil {
		return nil, err
	}
	if len(albums) == 0 {
		return nil, nil
	}

	releases := make([]models.ReleaseSummary, len(albums))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, album := range albums {
		g.Go(func() error {
			releases[i] = a.enrich(ctx, album)
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(releases, func(i, j int) bool {
		return releases[i].ReleaseDate > releases[j].ReleaseDate
	})

	valid := 0
	for _, r := range releases {
		if r.Valid() {
			valid++
		}
	}
	if valid > 0 {
		a.cache.Set(ReleasesKey, releases)
		a.recorder.CachedReleases(len(releases))
	}

	a.logger.Info("fetched new releases", "count", len(releases), "valid", valid)
	return releases, nil
}

// enrich attaches the album's first track. Any failure leaves the album-only projection.
func (a *Aggregator) enrich(ctx context.Context, album services.Album) models.ReleaseSummary {
	summary := models.ReleaseSummary{
		ID:          album.ID,
		Title:       album.Name,
		Artist:      album.PrimaryArtist(),
		AlbumName:   album.Name,
		ImageURL:    album.ImageURL(),
		ReleaseDate: album.ReleaseDate,
		ExternalURL: album.ExternalURL,
	}

	tracks, err := withToken(ctx, a, "album tracks", func(token string) ([]services.Track, error) {
		return a.catalog.AlbumTracks(ctx, token, album.ID, 1)
	})
	if err != nil {
		a.logger.Warn("release enrichment failed", "album", album.ID, "error", err)
		return summary
	}
	if len(tracks) == 0 {
		return summary
	}

	track, err := withToken(ctx, a, "track", func(token string) (*services.Track, error) {
		return a.catalog.Track(ctx, token, tracks[0].ID)
	})
	if err != nil {
		a.logger.Warn("release enrichment failed", "album", album.ID, "track", tracks[0].ID, "error", err)
		return summary
	}

	summary.TrackID = track.ID
	summary.DurationMS = track.DurationMS
	summary.Popularity = track.Popularity
	summary.PreviewURL = track.PreviewURL
	if track.ExternalURL != "" {
		summary.ExternalURL = track.ExternalURL
	}
	return summary
}
