// Package auth manages the catalog bearer token for the OAuth client-credentials flow.
//
// # Lifecycle
//
// A [TokenManager] moves through Uninitialized → Valid → Refreshing → Valid | Failed.
// The first [TokenManager.EnsureValid] performs the exchange; a successful exchange stores the token with an
// expiry shortened by a safety margin and schedules a proactive renewal at that expiry.
//
// # Single refresh path
//
// First use, expiry detection, the proactive timer, the failure retry timer and the reactive path
// ([TokenManager.Refresh] after an upstream 401) all funnel into one [singleflight.Group] key.
// Late arrivals wait on the in-flight exchange instead of issuing their own.
//
// The exchange runs on a context detached from the caller and bounded by [Options.Timeout]:
// a caller that gives up leaves the exchange to finish for the next one.
//
// # Failures
//
// A failed exchange moves the manager to Failed and schedules a retry after [Options.RetryDelay].
// Until then [TokenManager.EnsureValid] returns the failure immediately rather than retrying inline.
// Errors wrap [shared.ErrAuthFailed].
package auth
