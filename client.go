package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cronos-bakery/authclient/apierror"
	"github.com/cronos-bakery/authclient/internal/flows"
	"github.com/cronos-bakery/authclient/internal/logging"
	"github.com/cronos-bakery/authclient/internal/wire"
	"github.com/cronos-bakery/authclient/jwt"
	"github.com/cronos-bakery/authclient/notify"
	"github.com/cronos-bakery/authclient/pipeline"
	"github.com/cronos-bakery/authclient/session"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Auth endpoint paths, relative to APIConfig.BaseURL.
const (
	PathLogin          = "/auth/login"
	PathLogout         = "/auth/logout"
	PathRefresh        = "/auth/refresh"
	PathRegister       = "/auth/register"
	PathForgotPassword = "/auth/forgot-password"
	PathResetPassword  = "/auth/reset-password"
)

const refreshKey = "refresh"

// Client owns the session of one signed-in user: its tokens, its state and the
// HTTP pipeline that authenticates requests on its behalf.
//
// A Client is safe for concurrent use. Build one with New().Build() and Close it
// when done.
type Client struct {
	cfg     Config
	log     zerolog.Logger
	now     func() time.Time
	decoder *jwt.Decoder
	metrics *Metrics

	store      *session.Store
	tracker    *session.Tracker
	notifier   notify.Notifier
	dispatcher *notify.Dispatcher
	http       *http.Client

	mu          sync.RWMutex
	state       State
	refreshDone chan struct{}
	watchers    map[int]chan State
	nextWatcher int

	refreshes singleflight.Group
	// generation changes on every logout so a refresh that started before it
	// cannot bring the session back.
	generation atomic.Uint64

	lifecycle sync.Mutex
	logouts   sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
	closers   []func()
}

/*
====================================
SESSION LIFECYCLE
====================================
*/

// Login submits credentials and, on success, establishes the session.
//
// When the backend asks for a one-time code, Login returns a result with
// RequiresTwoFactor set together with ErrTwoFactorRequired; nothing is stored and the
// state is unchanged. Call Login again with Credentials.TwoFactorCode. Rejections
// are returned as *apierror.Error.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return nil, ErrInvalidCredentials
	}

	body := loginRequest{Username: strings.TrimSpace(creds.Username), Password: creds.Password}
	if code := strings.TrimSpace(creds.TwoFactorCode); code != "" {
		n, err := strconv.Atoi(code)
		if err != nil {
			return nil, ErrInvalidTwoFactorCode
		}
		body.TwoFactorCode = &n
	}

	var resp loginResponse
	err := c.post(ctx, PathLogin, body, &resp, false)
	outcome := flows.ClassifyLogin(flows.LoginReply{
		RequiresTwoFactor: resp.RequiresTwoFactor,
		HasAccessToken:    resp.AccessToken != "",
		HasRefreshToken:   resp.RefreshToken != "",
	}, err)

	switch outcome {
	case flows.LoginRejected:
		c.metrics.Inc(MetricLoginFailure)
		return nil, err
	case flows.LoginTwoFactor:
		c.metrics.Inc(MetricLoginTwoFactorRequired)
		return &LoginResult{RequiresTwoFactor: true, Message: resp.Message}, ErrTwoFactorRequired
	case flows.LoginMalformed:
		c.metrics.Inc(MetricLoginFailure)
		return nil, ErrMalformedTokenResponse
	}

	// An access token that is not a JWT is kept as issued; its lifetime then
	// comes from expiresIn.
	claims, _ := c.decoder.Decode(resp.AccessToken)

	user := identityFromLogin(resp, claims)
	c.storeAccessToken(ctx, resp.AccessToken, c.accessExpiry(claims, resp.ExpiresIn))
	c.store.SetRefreshToken(ctx, resp.RefreshToken)
	c.store.SetUser(ctx, user)
	c.tracker.MarkSessionStart(ctx)
	c.tracker.Touch(ctx)
	c.setState(Authenticated{Identity: user})
	c.metrics.Inc(MetricLoginSuccess)

	c.log.Info().Str("username", user.Username).Str("token", logging.Fingerprint(resp.AccessToken)).Msg("session established")

	return &LoginResult{
		User:      user.clone(),
		Message:   resp.Message,
		ExpiresIn: time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}

// Logout ends the session locally at once and tells the backend in the background.
//
// The server call runs only when an access token is stored, is never reported to
// the user and cannot fail Logout. Close waits for it.
func (c *Client) Logout(ctx context.Context) {
	token, hasToken := c.store.AccessToken(ctx)
	if hasToken {
		c.lifecycle.Lock()
		if !c.closed.Load() {
			c.logouts.Add(1)
			go c.serverLogout(token)
		}
		c.lifecycle.Unlock()
	}

	c.generation.Add(1)
	c.clearSession(ctx)
	c.setState(Anonymous{})
	c.metrics.Inc(MetricLogout)
}

func (c *Client) serverLogout(token string) {
	defer c.logouts.Done()

	ctx, cancel := context.WithTimeout(pipeline.WithoutReporting(context.Background()), c.cfg.API.LogoutTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(PathLogout), http.NoBody)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
	pipeline.SkipLoading(req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.Inc(MetricLogoutServerFailure)
		c.log.Debug().Err(unwrapTransport(err)).Msg("server logout failed")
		return
	}
	_ = wire.Decode(resp.Body, nil)
	resp.Body.Close()
}

// RestoreSession re-establishes a persisted session at startup and reports whether
// the client is authenticated afterwards.
//
// A complete, unexpired and recently active session is restored without any
// network call. Otherwise, when a refresh token exists, exactly one refresh is
// attempted; its failure clears all stored state.
func (c *Client) RestoreSession(ctx context.Context) bool {
	if c.closed.Load() {
		return false
	}

	_, hasRefresh := c.store.RefreshToken(ctx)
	access, hasAccess := c.store.AccessToken(ctx)
	var cached User
	hasIdentity := c.store.User(ctx, &cached) && !cached.isZero()

	in := flows.RestoreInputs{
		HasRefreshToken: hasRefresh,
		HasAccessToken:  hasAccess,
		HasIdentity:     hasIdentity,
		Fresh:           c.tracker.IsFresh(ctx),
	}
	if hasAccess {
		_, err := c.decoder.Decode(access)
		in.AccessDecodable = err == nil
		in.AccessExpired = c.decoder.IsExpired(access, c.now())
	}

	action := flows.DecideRestore(in)
	c.log.Debug().Str("action", action.String()).Msg("restoring session")

	switch action {
	case flows.RestoreLocal:
		c.setState(Authenticated{Identity: cached})
		c.metrics.Inc(MetricRestoreFresh)
		return true
	case flows.RestoreRefresh:
		if err := c.Refresh(ctx); err != nil {
			c.log.Info().Err(err).Msg("session restore failed")
			c.metrics.Inc(MetricRestoreFailed)
			return false
		}
		c.metrics.Inc(MetricRestoreRefreshed)
		return true
	default:
		c.clearSession(ctx)
		c.setState(Anonymous{})
		c.metrics.Inc(MetricRestoreFailed)
		return false
	}
}

// Refresh renews the access token.
//
// Concurrent calls share a single backend request and all observe its outcome.
// The shared request is not cancelled when one caller's ctx is; each caller stops
// waiting when its own ctx ends. A failed refresh ends the session.
func (c *Client) Refresh(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	leader := false
	ch := c.refreshes.DoChan(refreshKey, func() (any, error) {
		leader = true
		return nil, c.doRefresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if !leader {
			c.metrics.Inc(MetricRefreshShared)
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) doRefresh(ctx context.Context) error {
	refreshToken, ok := c.store.RefreshToken(ctx)
	if !ok {
		c.clearSession(ctx)
		c.setState(Anonymous{})
		c.metrics.Inc(MetricRefreshFailure)
		return ErrNoRefreshToken
	}

	gen := c.generation.Load()
	prev := c.beginRefresh()

	var resp tokenResponse
	err := c.post(ctx, PathRefresh, refreshRequest{RefreshToken: refreshToken}, &resp, true)
	if err == nil && resp.AccessToken == "" {
		err = ErrMalformedTokenResponse
	}
	if c.generation.Load() != gen {
		// The session this refresh belonged to was logged out while it ran. The
		// store and state now belong to whatever came after.
		c.abandonRefresh()
		c.metrics.Inc(MetricRefreshFailure)
		c.log.Debug().Err(err).Msg("refresh outcome discarded, session changed while in flight")
		if err != nil {
			return err
		}
		return ErrNotAuthenticated
	}
	if err != nil {
		c.clearSession(ctx)
		c.finishRefresh(Anonymous{})
		c.metrics.Inc(MetricRefreshFailure)
		c.log.Info().Err(err).Msg("token refresh failed, session ended")
		return err
	}

	claims, _ := c.decoder.Decode(resp.AccessToken)
	c.storeAccessToken(ctx, resp.AccessToken, c.accessExpiry(claims, resp.ExpiresIn))
	if resp.RefreshToken != "" {
		c.store.SetRefreshToken(ctx, resp.RefreshToken)
	}
	c.tracker.Touch(ctx)

	user := prev
	var cached User
	if c.store.User(ctx, &cached) && !cached.isZero() {
		user = cached
	}
	if user.isZero() {
		user = identityFromClaims(claims)
		if !user.isZero() {
			c.store.SetUser(ctx, user)
		}
	}

	c.finishRefresh(Authenticated{Identity: user})
	c.metrics.Inc(MetricRefreshSuccess)
	c.log.Debug().Str("token", logging.Fingerprint(resp.AccessToken)).Msg("access token refreshed")
	return nil
}

// Reauthenticate confirms the current user's password with the backend.
//
// On success activity is recorded and the stored tokens are kept. A rejected
// password, a locked account or a two-factor demand ends the session. Other
// failures, such as network errors, are returned and leave the session intact.
func (c *Client) Reauthenticate(ctx context.Context, password string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	user, ok := c.CurrentUser()
	if !ok {
		return ErrNotAuthenticated
	}

	var resp loginResponse
	err := c.post(ctx, PathLogin, loginRequest{Username: user.Username, Password: password}, &resp, false)

	switch flows.ClassifyReauth(resp.RequiresTwoFactor, err) {
	case flows.ReauthConfirmed:
		c.tracker.Touch(ctx)
		c.metrics.Inc(MetricReauthSuccess)
		return nil
	case flows.ReauthForceLogout:
		c.metrics.Inc(MetricReauthFailure)
		c.Logout(ctx)
		if err == nil {
			return ErrTwoFactorRequired
		}
		return err
	default:
		c.metrics.Inc(MetricReauthFailure)
		return err
	}
}

/*
====================================
ACCOUNT OPERATIONS
====================================
*/

// Register creates an account. It does not sign the new user in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	var out Account
	if err := c.post(ctx, PathRegister, req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForgotPassword asks the backend to send a reset link to email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.post(ctx, PathForgotPassword, forgotPasswordRequest{Email: email}, nil, false)
}

// ResetPassword sets a new password using the token from the reset link.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	return c.post(ctx, PathResetPassword, resetPasswordRequest{Token: token, NewPassword: newPassword}, nil, false)
}

/*
====================================
QUERIES
====================================
*/

// State returns the current session state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// CurrentUser returns the signed-in identity. It is also available while a refresh
// is in flight.
func (c *Client) CurrentUser() (User, bool) {
	return c.State().User()
}

// IsAuthenticated reports whether the state is Authenticated.
func (c *Client) IsAuthenticated() bool {
	return c.State().Kind() == StateAuthenticated
}

// HasRole reports whether the cached identity holds role.
func (c *Client) HasRole(role string) bool {
	u, ok := c.CurrentUser()
	return ok && u.HasRole(role)
}

// HasAnyRole reports whether the cached identity holds at least one of roles.
func (c *Client) HasAnyRole(roles ...string) bool {
	u, ok := c.CurrentUser()
	if !ok {
		return false
	}
	for _, r := range roles {
		if u.HasRole(r) {
			return true
		}
	}
	return false
}

// Settled returns the state once no refresh is in flight, waiting for a running
// refresh to finish. It returns ctx's error if ctx ends first.
func (c *Client) Settled(ctx context.Context) (State, error) {
	for {
		c.mu.RLock()
		st, wait := c.state, c.refreshDone
		c.mu.RUnlock()

		if wait == nil {
			return st, nil
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// AccessTokenExpiresIn returns how long the stored access token remains valid.
func (c *Client) AccessTokenExpiresIn(ctx context.Context) (time.Duration, bool) {
	token, ok := c.store.AccessToken(ctx)
	if !ok {
		return 0, false
	}
	exp, ok := c.tokenExpiry(ctx, token)
	if !ok {
		return 0, false
	}
	return max(exp.Sub(c.now()), 0), true
}

// LastActivity returns when an authenticated call last succeeded.
func (c *Client) LastActivity(ctx context.Context) (time.Time, bool) {
	return c.tracker.LastActivity(ctx)
}

// SessionStart returns when the current session was established by login.
func (c *Client) SessionStart(ctx context.Context) (time.Time, bool) {
	return c.tracker.SessionStart(ctx)
}

/*
====================================
HTTP
====================================
*/

// HTTPClient returns the client whose transport runs the request pipeline. Feature
// code uses it for backend calls.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Do sends req through the pipeline. Failures are returned as *apierror.Error.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, unwrapTransport(err)
	}
	return resp, nil
}

// DoJSON sends in as JSON to path (relative to BaseURL) and decodes the answer,
// envelope or bare, into out. in and out may be nil.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	req, err := c.newJSONRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return unwrapTransport(err)
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return wire.Decode(resp.Body, nil)
	}
	return wire.Decode(resp.Body, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any, quiet bool) error {
	if quiet {
		ctx = pipeline.WithoutReporting(ctx)
	}
	req, err := c.newJSONRequest(ctx, http.MethodPost, path, in)
	if err != nil {
		return err
	}
	if quiet {
		pipeline.SkipLoading(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return unwrapTransport(err)
	}
	defer resp.Body.Close()
	return wire.Decode(resp.Body, out)
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.endpoint(path), http.NoBody)
	}
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.API.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.API.UserAgent)
	}
	return req, nil
}

func (c *Client) endpoint(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.cfg.API.BaseURL + path
}

/*
====================================
LIFECYCLE
====================================
*/

// MetricsSnapshot returns the current metric values.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// NotificationsDropped returns how many notifications the async dispatcher
// discarded because its buffer was full.
func (c *Client) NotificationsDropped() uint64 {
	return c.dispatcher.Dropped()
}

// Close waits for background server logouts, flushes notifications and releases
// storage. The stored session is kept. Close is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.lifecycle.Lock()
		c.closed.Store(true)
		c.lifecycle.Unlock()

		c.logouts.Wait()
		for _, fn := range c.closers {
			fn()
		}
		c.closeWatchers()
	})
	return nil
}

/*
====================================
INTERNALS
====================================
*/

func (c *Client) clearSession(ctx context.Context) {
	c.store.Clear(ctx)
	c.tracker.Clear(ctx)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(s)
}

func (c *Client) setStateLocked(s State) {
	c.state = s
	c.broadcastLocked(s)
}

// beginRefresh moves to Refreshing and returns the identity held before.
func (c *Client) beginRefresh() User {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, _ := c.state.User()
	if c.refreshDone == nil {
		c.refreshDone = make(chan struct{})
	}
	c.setStateLocked(Refreshing{Identity: prev})
	return prev
}

func (c *Client) finishRefresh(next State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setStateLocked(next)
	if c.refreshDone != nil {
		close(c.refreshDone)
		c.refreshDone = nil
	}
}

// abandonRefresh releases refresh waiters without touching the state, unless the
// state is still the Refreshing mark this refresh set.
func (c *Client) abandonRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Kind() == StateRefreshing {
		c.setStateLocked(Anonymous{})
	}
	if c.refreshDone != nil {
		close(c.refreshDone)
		c.refreshDone = nil
	}
}

// accessExpiry returns when a freshly issued access token stops being usable: its
// exp claim, else expiresIn seconds from now. The zero time means unknown.
func (c *Client) accessExpiry(claims *jwt.Claims, expiresIn int64) time.Time {
	if exp := claims.Expiry(); !exp.IsZero() {
		return exp
	}
	if expiresIn > 0 {
		return c.now().Add(time.Duration(expiresIn) * time.Second)
	}
	return time.Time{}
}

func (c *Client) storeAccessToken(ctx context.Context, token string, expiresAt time.Time) {
	var ttl time.Duration
	if !expiresAt.IsZero() {
		ttl = max(expiresAt.Sub(c.now()), 0)
	}
	c.store.SetAccessToken(ctx, token, ttl)
	c.store.SetAccessExpiry(ctx, expiresAt, ttl)
}

// tokenExpiry reads the expiry of the stored token: the exp claim when token is a
// JWT that carries one, otherwise the expiry recorded when it was issued.
func (c *Client) tokenExpiry(ctx context.Context, token string) (time.Time, bool) {
	if claims, err := c.decoder.Decode(token); err == nil {
		if exp := claims.Expiry(); !exp.IsZero() {
			return exp, true
		}
	}
	return c.store.AccessExpiry(ctx)
}

// usableAccessToken returns the stored access token unless it is known to have
// expired. A token with no known expiry is sent and left to the backend to judge.
func (c *Client) usableAccessToken(ctx context.Context) (string, bool) {
	token, ok := c.store.AccessToken(ctx)
	if !ok {
		return "", false
	}
	if claims, err := c.decoder.Decode(token); err == nil && !claims.Expiry().IsZero() {
		if c.decoder.IsExpired(token, c.now()) {
			return "", false
		}
		return token, true
	}
	if exp, ok := c.store.AccessExpiry(ctx); ok && !c.now().Before(exp) {
		return "", false
	}
	return token, true
}

func identityFromLogin(resp loginResponse, claims *jwt.Claims) User {
	u := identityFromClaims(claims)
	if resp.Username != "" {
		u.Username = resp.Username
	}
	if resp.Email != "" {
		u.Email = resp.Email
	}
	if len(resp.Roles) > 0 {
		u.Roles = append([]string(nil), resp.Roles...)
	}
	return u
}

func identityFromClaims(claims *jwt.Claims) User {
	if claims == nil {
		return User{}
	}
	u := User{
		Username: claims.Username,
		Email:    claims.Email,
		Roles:    append([]string(nil), claims.Roles...),
	}
	if id, err := strconv.ParseInt(claims.Subject, 10, 64); err == nil {
		u.ID = id
	} else if u.Username == "" {
		u.Username = claims.Subject
	}
	return u
}

func unwrapTransport(err error) error {
	if e, ok := apierror.As(err); ok {
		return e
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

// pipelineSession exposes the Client to the request pipeline.
type pipelineSession struct {
	c *Client
}

func (s pipelineSession) AccessToken(ctx context.Context) (string, bool) {
	return s.c.usableAccessToken(ctx)
}

func (s pipelineSession) Touch(ctx context.Context) {
	s.c.tracker.Touch(ctx)
}

func (s pipelineSession) Refresh(ctx context.Context) error {
	return s.c.Refresh(ctx)
}

func (s pipelineSession) Expire(ctx context.Context) {
	s.c.log.Warn().Msg("request rejected after refresh, ending session")
	s.c.Logout(ctx)
}
