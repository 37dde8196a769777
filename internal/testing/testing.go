// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/tunefeed/internal/auth"
	"github.com/desertthunder/tunefeed/internal/services"
	"github.com/desertthunder/tunefeed/internal/shared"
)

// MockCatalog is a test double for [services.Catalog].
//
// Each func field overrides one method; nil fields return the canned data. Tokens listed in Rejected
// are answered with [shared.ErrAuthFailed].
type MockCatalog struct {
	Releases     []services.Album
	Tracks       map[string]services.Track   // by track id
	AlbumTrack   map[string][]services.Track // by album id
	SearchHits   []services.Track
	Rejected     map[string]bool
	SearchFn     func(ctx context.Context, token, query string, opts services.SearchOpts) ([]services.Track, error)
	ReleasesFn   func(ctx context.Context, token string, opts services.ReleaseOpts) ([]services.Album, error)
	AlbumFn      func(ctx context.Context, token, albumID string, limit int) ([]services.Track, error)
	TrackFn      func(ctx context.Context, token, trackID string) (*services.Track, error)
	ReleaseCalls atomic.Int32
	SearchCalls  atomic.Int32

	mu      sync.Mutex
	queries []string
}

func (m *MockCatalog) rejected(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Rejected[token] {
		return shared.ErrAuthFailed
	}
	return nil
}

// Queries returns every search query received so far.
func (m *MockCatalog) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

func (m *MockCatalog) Search(ctx context.Context, token, query string, opts services.SearchOpts) ([]services.Track, error) {
	m.SearchCalls.Add(1)
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if err := m.rejected(token); err != nil {
		return nil, err
	}
	if m.SearchFn != nil {
		return m.SearchFn(ctx, token, query, opts)
	}
	return m.SearchHits, nil
}

func (m *MockCatalog) NewReleases(ctx context.Context, token string, opts services.ReleaseOpts) ([]services.Album, error) {
	m.ReleaseCalls.Add(1)
	if err := m.rejected(token); err != nil {
		return nil, err
	}
	if m.ReleasesFn != nil {
		return m.ReleasesFn(ctx, token, opts)
	}
	return m.Releases, nil
}

func (m *MockCatalog) AlbumTracks(ctx context.Context, token, albumID string, limit int) ([]services.Track, error) {
	if err := m.rejected(token); err != nil {
		return nil, err
	}
	if m.AlbumFn != nil {
		return m.AlbumFn(ctx, token, albumID, limit)
	}
	tracks, ok := m.AlbumTrack[albumID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

func (m *MockCatalog) Track(ctx context.Context, token, trackID string) (*services.Track, error) {
	if err := m.rejected(token); err != nil {
		return nil, err
	}
	if m.TrackFn != nil {
		return m.TrackFn(ctx, token, trackID)
	}
	track, ok := m.Tracks[trackID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &track, nil
}

func (m *MockCatalog) Name() string { return "mock" }

// MockIssuer is a test double for [auth.Issuer] that hands out "token-N" values.
type MockIssuer struct {
	Lifetime time.Duration
	Err      error
	Calls    atomic.Int32
}

func (m *MockIssuer) ClientCredentialsGrant(ctx context.Context) (auth.Grant, error) {
	n := m.Calls.Add(1)
	if m.Err != nil {
		return auth.Grant{}, m.Err
	}
	lifetime := m.Lifetime
	if lifetime == 0 {
		lifetime = time.Hour
	}
	return auth.Grant{AccessToken: TokenN(int(n)), ExpiresIn: lifetime}, nil
}

// TokenN returns the token value a [MockIssuer] hands out on its n-th call.
func TokenN(n int) string {
	return fmt.Sprintf("token-%d", n)
}

// MockCharts is a test double for [services.Charts].
type MockCharts struct {
	Top     []services.ChartEntry
	Info    *services.TrackInfo
	Err     error
	Limit   int
	Queried [2]string
}

func (m *MockCharts) TopTracks(ctx context.Context, limit int) ([]services.ChartEntry, error) {
	m.Limit = limit
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Top, nil
}

func (m *MockCharts) TrackInfo(ctx context.Context, artist, track string) (*services.TrackInfo, error) {
	m.Queried = [2]string{artist, track}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Info, nil
}

// MockGenerator is a test double for [services.TextGenerator].
type MockGenerator struct {
	Text   string
	Err    error
	Prompt string
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompt = prompt
	return m.Text, m.Err
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// Clock is a settable time source for components that take a Now func.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
