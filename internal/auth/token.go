package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunefeed/internal/shared"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSafetyMargin = 60 * time.Second
	DefaultRetryDelay   = 5 * time.Second
	DefaultTimeout      = 10 * time.Second

	refreshKey = "token"
)

// State is the lifecycle position of the managed credential.
type State int

const (
	Uninitialized State = iota
	Valid
	Refreshing
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Valid:
		return "valid"
	case Refreshing:
		return "refreshing"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Grant is the result of a credential exchange.
type Grant struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// Issuer exchanges client credentials for a bearer token.
type Issuer interface {
	ClientCredentialsGrant(ctx context.Context) (Grant, error)
}

// Recorder receives refresh outcomes. The metrics package provides a Prometheus implementation.
type Recorder interface {
	TokenRefresh(trigger string, err error)
}

type noopRecorder struct{}

func (noopRecorder) TokenRefresh(string, error) {}

// Token is the single live credential.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Options configures a [TokenManager].
type Options struct {
	SafetyMargin time.Duration
	RetryDelay   time.Duration
	Timeout      time.Duration // bound on a single credential exchange
	Now          func() time.Time
	Recorder     Recorder
	Logger       *log.Logger
}

// TokenManager owns one bearer token and keeps it valid across concurrent callers.
type TokenManager struct {
	issuer   Issuer
	margin   time.Duration
	retry    time.Duration
	timeout  time.Duration
	now      func() time.Time
	recorder Recorder
	logger   *log.Logger

	mu       sync.RWMutex
	token    *Token
	state    State
	lastErr  error
	failedAt time.Time
	timer    *time.Timer
	stopped  bool

	group singleflight.Group
}

// NewTokenManager creates a manager in the [Uninitialized] state. No credential exchange happens until first use.
func NewTokenManager(issuer Issuer, opts Options) *TokenManager {
	if opts.SafetyMargin <= 0 {
		opts.SafetyMargin = DefaultSafetyMargin
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &TokenManager{
		issuer:   issuer,
		margin:   opts.SafetyMargin,
		retry:    opts.RetryDelay,
		timeout:  opts.Timeout,
		now:      opts.Now,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
}

// State returns the current lifecycle state.
func (m *TokenManager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Token returns the live token value, or "" when none is valid right now.
func (m *TokenManager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.liveLocked()
}

func (m *TokenManager) liveLocked() string {
	if m.token == nil || !m.now().Before(m.token.ExpiresAt) {
		return ""
	}
	return m.token.Value
}

// EnsureValid returns a token that is valid now, refreshing synchronously when there is none.
//
// While a failed exchange is waiting for its scheduled retry, the last failure is returned immediately.
func (m *TokenManager) EnsureValid(ctx context.Context) (string, error) {
	m.mu.RLock()
	value := m.liveLocked()
	state, lastErr, failedAt := m.state, m.lastErr, m.failedAt
	m.mu.RUnlock()

	if value != "" {
		return value, nil
	}

	if state == Failed && m.now().Sub(failedAt) < m.retry {
		return "", lastErr
	}

	return m.refresh(ctx, "ensure")
}

// Refresh renews the token after an upstream call rejected stale.
//
// When another caller already replaced stale, the current token is returned without a new exchange.
func (m *TokenManager) Refresh(ctx context.Context, stale string) (string, error) {
	m.mu.RLock()
	value := m.liveLocked()
	m.mu.RUnlock()

	if value != "" && value != stale {
		return value, nil
	}

	m.mu.Lock()
	if current := m.liveLocked(); current != "" && current != stale {
		m.mu.Unlock()
		return current, nil
	}
	if m.token != nil && m.token.Value == stale {
		m.token = nil
	}
	m.mu.Unlock()

	return m.refresh(ctx, "reactive")
}

// Stop cancels the proactive renewal and retry timers. The manager still serves inline refreshes afterwards.
func (m *TokenManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// refresh joins the in-flight exchange or starts one. Every trigger shares the same singleflight key.
func (m *TokenManager) refresh(ctx context.Context, trigger string) (string, error) {
	ch := m.group.DoChan(refreshKey, func() (any, error) {
		return m.exchange(context.WithoutCancel(ctx), trigger)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: waiting for token refresh: %v", shared.ErrTimeout, ctx.Err())
	}
}

func (m *TokenManager) exchange(ctx context.Context, trigger string) (string, error) {
	m.mu.Lock()
	prev := m.state
	m.state = Refreshing
	m.mu.Unlock()

	m.logger.Debug("refreshing access token", "trigger", trigger, "from", prev)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	grant, err := m.issuer.ClientCredentialsGrant(ctx)
	if err == nil && grant.AccessToken == "" {
		err = fmt.Errorf("%w: empty access token", shared.ErrInvalidCredentials)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", shared.ErrTimeout, err)
		}
		wrapped := fmt.Errorf("%w: %w: %w", shared.ErrAuthFailed, shared.ErrRefreshFailed, err)
		m.fail(wrapped)
		m.recorder.TokenRefresh(trigger, wrapped)
		return "", wrapped
	}

	now := m.now()
	lifetime := grant.ExpiresIn
	margin := m.margin
	if lifetime <= margin {
		margin = lifetime / 2
	}
	expiresAt := now.Add(lifetime - margin)

	m.mu.Lock()
	m.token = &Token{Value: grant.AccessToken, ExpiresAt: expiresAt}
	m.state = Valid
	m.lastErr = nil
	m.failedAt = time.Time{}
	m.scheduleLocked(expiresAt.Sub(now), "proactive")
	m.mu.Unlock()

	m.logger.Info("access token refreshed", "trigger", trigger, "expires_at", expiresAt.Format(time.RFC3339))
	m.recorder.TokenRefresh(trigger, nil)
	return grant.AccessToken, nil
}

func (m *TokenManager) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = nil
	m.state = Failed
	m.lastErr = err
	m.failedAt = m.now()
	m.scheduleLocked(m.retry, "retry")

	m.logger.Error("access token refresh failed", "error", err, "retry_in", m.retry)
}

// scheduleLocked replaces the pending timer. Callers hold m.mu.
func (m *TokenManager) scheduleLocked(d time.Duration, trigger string) {
	if m.stopped {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	if d <= 0 {
		d = time.Millisecond
	}

	m.timer = time.AfterFunc(d, func() {
		if _, err := m.refresh(context.Background(), trigger); err != nil {
			m.logger.Warn("background token refresh failed", "trigger", trigger, "error", err)
		}
	})
}
