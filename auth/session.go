// Package auth runs the OAuth 2.0 device authorization grant against Twitch and
// keeps the resulting credentials fresh for the rest of the process lifetime.
package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-chatter-roster/internal/config"
	apperrors "github.com/jrsteele09/go-chatter-roster/internal/errors"
	"github.com/jrsteele09/go-chatter-roster/oauth2"
	"github.com/pkg/browser"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	xoauth2 "golang.org/x/oauth2"
)

const (
	// MinRefreshDelay is the floor on the delay before a scheduled refresh.
	MinRefreshDelay = 5 * time.Second

	// InitialRefreshMargin is subtracted from expires_in after the device flow
	// completes; RefreshMargin after every later refresh.
	InitialRefreshMargin = 2500 * time.Millisecond
	RefreshMargin        = 2 * time.Second

	defaultPollInterval = 5 * time.Second
	httpTimeout         = 30 * time.Second
)

// State is the lifecycle position of a Session.
type State int

const (
	Idle State = iota
	AwaitingApproval
	Authorized
	Refreshing
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingApproval:
		return "awaiting_approval"
	case Authorized:
		return "authorized"
	case Refreshing:
		return "refreshing"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Waiter blocks for d or until ctx is done, returning ctx.Err() in that case.
type Waiter func(ctx context.Context, d time.Duration) error

// Timer is the handle returned by a Scheduler.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler func(d time.Duration, f func()) Timer

// BrowserOpener opens a URL for the user.
type BrowserOpener func(url string) error

// Recorder receives state transitions and refresh outcomes.
type Recorder interface {
	SetAuthState(state string)
	RefreshResult(success bool)
}

// Session holds the credentials of the single device authorization.
// Invariant: authorized implies accessToken != "".
type Session struct {
	oauthCfg      xoauth2.Config
	httpClient    *http.Client
	openInBrowser bool

	nowTime     func() time.Time
	wait        Waiter
	schedule    Scheduler
	openBrowser BrowserOpener
	logger      zerolog.Logger
	recorder    Recorder

	mu              sync.Mutex
	ctx             context.Context
	accessToken     string
	refreshToken    string
	expiry          time.Time
	authorized      bool
	state           State
	userCode        string
	verificationURI string
	timer           Timer
	stopped         bool

	readyOnce sync.Once
	ready     chan struct{}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithHTTPClient sets the client used for the device and token endpoints.
func WithHTTPClient(c *http.Client) SessionOption {
	return func(s *Session) {
		s.httpClient = c
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) SessionOption {
	return func(s *Session) {
		s.nowTime = nowFunc
	}
}

// WithWaiter replaces the poll interval wait.
func WithWaiter(w Waiter) SessionOption {
	return func(s *Session) {
		s.wait = w
	}
}

// WithScheduler replaces the refresh timer factory.
func WithScheduler(sch Scheduler) SessionOption {
	return func(s *Session) {
		s.schedule = sch
	}
}

// WithBrowserOpener replaces the verification URL launcher.
func WithBrowserOpener(open BrowserOpener) SessionOption {
	return func(s *Session) {
		s.openBrowser = open
	}
}

// WithEndpoint overrides the configured endpoints, typically with the result
// of DiscoverEndpoint.
func WithEndpoint(ep xoauth2.Endpoint) SessionOption {
	return func(s *Session) {
		if ep.DeviceAuthURL != "" {
			s.oauthCfg.Endpoint.DeviceAuthURL = ep.DeviceAuthURL
		}
		if ep.TokenURL != "" {
			s.oauthCfg.Endpoint.TokenURL = ep.TokenURL
		}
	}
}

func WithLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

func WithMetrics(r Recorder) SessionOption {
	return func(s *Session) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewSession creates an idle session. Nothing is sent until
// BeginDeviceAuthorization is called.
func NewSession(cfg config.AuthConfig, opts ...SessionOption) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("[NewSession] config is required")
	}
	clientID := strings.TrimSpace(cfg.GetClientID())
	if clientID == "" {
		return nil, errors.Wrap(ErrMissingClientID, "NewSession")
	}

	s := &Session{
		oauthCfg: xoauth2.Config{
			ClientID: clientID,
			Scopes:   cfg.GetScopes(),
			Endpoint: xoauth2.Endpoint{
				DeviceAuthURL: cfg.GetDeviceAuthURL(),
				TokenURL:      cfg.GetTokenURL(),
				AuthStyle:     xoauth2.AuthStyleInParams,
			},
		},
		openInBrowser: cfg.GetOpenAuthInBrowser(),
		httpClient:    &http.Client{Timeout: httpTimeout},
		nowTime:       time.Now,
		wait:          sleepContext,
		schedule:      afterFunc,
		openBrowser:   browser.OpenURL,
		logger:        log.Logger,
		recorder:      nopRecorder{},
		ctx:           context.Background(),
		state:         Idle,
		ready:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With().Str("component", "auth").Logger()
	s.recorder.SetAuthState(Idle.String())
	return s, nil
}

// RefreshDelay is how long to wait before refreshing a token that expires in
// expiresIn, never less than MinRefreshDelay.
func RefreshDelay(expiresIn, margin time.Duration) time.Duration {
	return max(MinRefreshDelay, expiresIn-margin)
}

// BeginDeviceAuthorization requests a device code, shows it to the user and
// polls the token endpoint until the user approves, the provider rejects the
// request, the code expires or ctx is done. On success the session is
// authorized, Ready is closed and the first refresh is scheduled.
func (s *Session) BeginDeviceAuthorization(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	da, err := s.oauthCfg.DeviceAuth(context.WithValue(ctx, xoauth2.HTTPClient, s.httpClient))
	if err != nil {
		s.fail(true)
		s.logger.Error().Err(err).Msg("device authorization request failed")
		return errors.Wrap(err, "Session.BeginDeviceAuthorization device request")
	}

	interval := time.Duration(da.Interval) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}
	var expiresAt time.Time
	if !da.Expiry.IsZero() {
		expiresAt = s.nowTime().Add(time.Until(da.Expiry))
	}

	s.mu.Lock()
	s.userCode = da.UserCode
	s.verificationURI = da.VerificationURI
	s.mu.Unlock()
	s.setState(AwaitingApproval)

	s.logger.Info().
		Str("user_code", da.UserCode).
		Str("verification_uri", da.VerificationURI).
		Msg("enter the code at the verification page to authorize")

	if s.openInBrowser && da.VerificationURI != "" {
		if err := s.openBrowser(da.VerificationURI); err != nil {
			s.logger.Warn().Err(err).Str("url", da.VerificationURI).Msg("could not open browser")
		}
	}

	form := url.Values{
		"client_id":   {s.oauthCfg.ClientID},
		"device_code": {da.DeviceCode},
		"scope":       {strings.Join(s.oauthCfg.Scopes, " ")},
		"grant_type":  {string(oauth2.DeviceCodeGrant)},
	}

	start := s.nowTime()
	for {
		if err := s.wait(ctx, interval); err != nil {
			s.fail(true)
			s.logger.Info().Err(err).Msg("device authorization cancelled")
			return errors.Wrap(err, "Session.BeginDeviceAuthorization")
		}

		if !expiresAt.IsZero() && !s.nowTime().Before(expiresAt) {
			s.fail(true)
			s.logger.Error().Msg("device code expired before it was approved")
			return errors.Wrap(ErrDeviceCodeExpired, "Session.BeginDeviceAuthorization")
		}

		resp, status, err := s.postToken(ctx, form)
		if err != nil {
			if ctx.Err() != nil {
				s.fail(true)
				s.logger.Info().Err(err).Msg("device authorization cancelled")
				return errors.Wrap(ctx.Err(), "Session.BeginDeviceAuthorization")
			}
			s.logger.Warn().Err(err).Msg("token poll failed, retrying")
			continue
		}

		switch text := resp.ErrorText(); text {
		case "":
		case oauth2.ErrorAuthorizationPending:
			s.logger.Warn().
				Int("elapsed_seconds", int(s.nowTime().Sub(start).Seconds())).
				Msg("waiting for the user to approve the device code")
			continue
		case oauth2.ErrorSlowDown:
			interval += oauth2.SlowDownIncrement * time.Second
			s.logger.Warn().Dur("interval", interval).Msg("provider asked to slow down polling")
			continue
		default:
			s.fail(true)
			s.logger.Error().Str("error", text).Msg("device authorization rejected")
			return errors.Wrap(ErrDeviceFlowRejected, text)
		}

		if code := resp.EffectiveStatus(status); code > 300 {
			s.logger.Warn().Int("status", code).Msg("token poll returned an error status, retrying")
			continue
		}

		if resp.AccessToken == "" {
			s.logger.Warn().Int("status", status).Msg("abnormal token response without access token")
			continue
		}

		s.authorize(resp, InitialRefreshMargin)
		s.logger.Info().Msg("device authorized")
		return nil
	}
}

// refresh is the timer callback. It reschedules itself only on success.
func (s *Session) refresh() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.refreshToken == "" {
		s.mu.Unlock()
		s.logger.Warn().Msg("no refresh token, credentials will lapse")
		return
	}
	refreshToken := s.refreshToken
	ctx := s.ctx
	s.authorized = false
	s.mu.Unlock()
	s.setState(Refreshing)

	form := url.Values{
		"client_id":     {s.oauthCfg.ClientID},
		"refresh_token": {refreshToken},
		"grant_type":    {string(oauth2.RefreshTokenGrant)},
	}

	resp, _, err := s.postToken(ctx, form)
	switch {
	case err != nil:
	case resp.ErrorText() != "":
		err = errors.Wrap(ErrRefreshRejected, resp.ErrorText())
	case resp.AccessToken == "":
		err = ErrNoAccessToken
	}
	if err != nil {
		s.recorder.RefreshResult(false)
		s.fail(false)
		s.logger.Error().Err(err).Msg("token refresh failed")
		return
	}

	s.recorder.RefreshResult(true)
	s.authorize(resp, RefreshMargin)
	s.logger.Info().Msg("token refreshed")
}

// authorize stores a successful token response and schedules the next refresh.
func (s *Session) authorize(resp *oauth2.TokenResponse, margin time.Duration) {
	expiresIn := time.Duration(resp.ExpiresIn) * time.Second

	s.mu.Lock()
	s.accessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		s.refreshToken = resp.RefreshToken
	}
	s.expiry = s.nowTime().Add(expiresIn)
	s.authorized = true
	s.userCode = ""
	s.verificationURI = ""
	stopped := s.stopped
	s.mu.Unlock()

	s.setState(Authorized)
	s.readyOnce.Do(func() { close(s.ready) })

	if stopped {
		return
	}
	delay := RefreshDelay(expiresIn, margin)
	t := s.schedule(delay, s.refresh)
	s.logger.Debug().Dur("delay", delay).Msg("refresh scheduled")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		t.Stop()
		return
	}
	s.timer = t
}

// fail marks the session failed, optionally clearing the pending prompt.
func (s *Session) fail(clearPrompt bool) {
	s.mu.Lock()
	s.authorized = false
	if clearPrompt {
		s.userCode = ""
		s.verificationURI = ""
	}
	s.mu.Unlock()
	s.setState(Failed)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.recorder.SetAuthState(state.String())
}

// postToken sends form to the token endpoint. Bodies that are not JSON decode
// to an empty TokenResponse so the caller falls back to the HTTP status.
func (s *Session) postToken(ctx context.Context, form url.Values) (*oauth2.TokenResponse, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.oauthCfg.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "token request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "failed to read token response")
	}

	tr := &oauth2.TokenResponse{}
	if err := json.Unmarshal(body, tr); err != nil {
		s.logger.Debug().Err(err).Int("status", resp.StatusCode).Msg("token response is not JSON")
		tr = &oauth2.TokenResponse{}
	}
	return tr, resp.StatusCode, nil
}

// Ready is closed the first time the session becomes authorized.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

func (s *Session) IsAuthorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorized
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) ClientID() string {
	return s.oauthCfg.ClientID
}

func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// PendingCode returns the user code awaiting approval, "" when none is pending.
func (s *Session) PendingCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userCode
}

// VerificationURI returns where the pending code is entered.
func (s *Session) VerificationURI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verificationURI
}

// Token implements oauth2.TokenSource. The current access token is returned
// even while a refresh is in flight, since it stays valid until it expires.
func (s *Session) Token() (*xoauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken == "" {
		return nil, apperrors.ErrNotAuthorized
	}
	if s.state == Failed {
		return nil, apperrors.ErrRefreshLapsed
	}
	return &xoauth2.Token{
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		TokenType:    "Bearer",
		Expiry:       s.expiry,
	}, nil
}

// Stop cancels the pending refresh. The session cannot be refreshed afterwards.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func afterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type nopRecorder struct{}

func (nopRecorder) SetAuthState(string) {}
func (nopRecorder) RefreshResult(bool)  {}
