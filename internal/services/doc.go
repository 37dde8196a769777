// Package services implements the upstream collaborators behind three small interfaces.
//
// # Catalog
//
// [SpotifyService] implements [Catalog] against the Spotify Web API and doubles as the [auth.Issuer]
// for the client-credentials flow via [clientcredentials.Config]. It never stores a token: each call
// receives one so that the aggregator can retry once with a refreshed token after a 401.
//
// # Charts
//
// [LastFMService] implements [Charts]. Last.fm reports most failures in-band with a 200 status and an
// error code; those codes are mapped onto the shared errors.
//
// # Text generation
//
// [AnthropicService] implements [TextGenerator] over the Messages API.
//
// # Plumbing
//
// Every collaborator embeds the same client: an [http.Client] with a timeout, a [rate.Limiter]
// per collaborator and a [Recorder] for request metrics.
//
// # Error Handling
//
// Upstream statuses are classified into the shared errors:
//   - 401: [shared.ErrAuthFailed] wrapping [shared.ErrTokenExpired]
//   - 404: [shared.ErrNotFound]
//   - 429, 5xx and network failures: [shared.ErrServiceUnavailable]
//   - other 4xx and undecodable bodies: [shared.ErrAPIRequest]
package services
