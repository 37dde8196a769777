// Package aggregator orchestrates the release cache, the token manager and the catalog.
//
// # New releases
//
// [Aggregator.GetNewReleases] serves the cached listing while it is fresh: its newest release must be dated
// today on the local clock. Otherwise it fetches the listing and enriches every album with its first track,
// concurrently and bounded by [Options.EnrichConcurrency]. A failed enrichment degrades that album only.
// Concurrent fetches share one upstream round trip.
//
// When the listing itself fails, the last cached listing is served regardless of freshness.
//
// # Track matching
//
// [Aggregator.FindBestTrackMatch] searches by normalized title and artist and ranks the page with the matcher.
//
// # Tokens
//
// Every catalog call runs with a token from [Tokens]. A 401 triggers exactly one refresh and retry.
package aggregator
