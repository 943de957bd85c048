// Package rostersync keeps the roster cache in step with the live chat roster.
package rostersync

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-chatter-roster/helix"
	"github.com/jrsteele09/go-chatter-roster/internal/config"
	"github.com/jrsteele09/go-chatter-roster/metrics"
	"github.com/jrsteele09/go-chatter-roster/roster"
	"github.com/jrsteele09/go-chatter-roster/transform"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Pacing between passes.
const (
	EmptyRosterDelay = 10 * time.Second
	FullRosterDelay  = 60 * time.Second
	PassDelay        = 30 * time.Second

	// CredentialPollInterval is how often the worker re-checks for a client id
	// and access token after the session reports ready.
	CredentialPollInterval = time.Second
)

var ErrNoBroadcaster = errors.New("broadcaster id could not be resolved")

// Credentials is the view of the auth session the worker needs.
type Credentials interface {
	Ready() <-chan struct{}
	IsAuthorized() bool
	ClientID() string
	AccessToken() string
}

// RosterAPI is the remote chat roster and user lookup.
type RosterAPI interface {
	Chatters(ctx context.Context, broadcasterID, moderatorID, after string) (*helix.ChattersPage, error)
	UsersByLogin(ctx context.Context, logins []string) ([]helix.User, error)
	CurrentUser(ctx context.Context) (*helix.User, error)
}

// Recorder receives per-pass measurements.
type Recorder interface {
	ObservePass(result string, d time.Duration)
	SetRosterSize(n int)
	AddEvicted(n int)
	AddResolved(n int)
}

// Sleeper blocks for d or until ctx is done, returning ctx.Err() in that case.
type Sleeper func(ctx context.Context, d time.Duration) error

// Worker runs sync passes until its context is cancelled.
type Worker struct {
	cfg   config.SyncConfig
	creds Credentials
	api   RosterAPI
	cache *roster.Cache

	nowTime  func() time.Time
	sleep    Sleeper
	logger   zerolog.Logger
	recorder Recorder
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) WorkerOption {
	return func(w *Worker) {
		w.nowTime = nowFunc
	}
}

func WithSleeper(s Sleeper) WorkerOption {
	return func(w *Worker) {
		w.sleep = s
	}
}

func WithLogger(l zerolog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = l
	}
}

func WithMetrics(r Recorder) WorkerOption {
	return func(w *Worker) {
		if r != nil {
			w.recorder = r
		}
	}
}

func NewWorker(cfg config.SyncConfig, creds Credentials, api RosterAPI, cache *roster.Cache, opts ...WorkerOption) (*Worker, error) {
	if cfg == nil {
		return nil, errors.New("[NewWorker] config is required")
	}
	if creds == nil {
		return nil, errors.New("[NewWorker] credentials are required")
	}
	if api == nil {
		return nil, errors.New("[NewWorker] roster api is required")
	}
	if cache == nil {
		return nil, errors.New("[NewWorker] cache is required")
	}

	w := &Worker{
		cfg:      cfg,
		creds:    creds,
		api:      api,
		cache:    cache,
		nowTime:  time.Now,
		sleep:    sleepContext,
		logger:   log.Logger,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With().Str("component", "rostersync").Logger()
	return w, nil
}

// Run waits for the session to become authorized, resolves the broadcaster and
// then syncs forever. It returns nil when ctx is cancelled and ErrNoBroadcaster
// when no broadcaster id can be found.
func (w *Worker) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-w.creds.Ready():
	}

	for w.creds.ClientID() == "" || w.creds.AccessToken() == "" {
		if err := w.sleep(ctx, CredentialPollInterval); err != nil {
			return nil
		}
	}

	broadcasterID, err := w.resolveBroadcaster(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("sync worker stopping")
		return err
	}
	moderatorID := w.cfg.GetModeratorID()
	if moderatorID == "" {
		moderatorID = broadcasterID
	}

	w.logger.Info().
		Str("broadcaster_id", broadcasterID).
		Str("moderator_id", moderatorID).
		Msg("sync worker started")

	for {
		if ctx.Err() != nil {
			return nil
		}
		w.runPass(ctx, broadcasterID, moderatorID)
		if err := w.sleep(ctx, w.paceDelay()); err != nil {
			return nil
		}
	}
}

func (w *Worker) resolveBroadcaster(ctx context.Context) (string, error) {
	if id := w.cache.BroadcasterID(); id != "" {
		return id, nil
	}
	if id := w.cfg.GetBroadcasterID(); id != "" {
		w.cache.SetBroadcasterID(id)
		return id, nil
	}

	user, err := w.api.CurrentUser(ctx)
	if err != nil {
		return "", errors.Wrapf(ErrNoBroadcaster, "current user lookup: %v", err)
	}
	if user.ID == "" {
		return "", errors.Wrap(ErrNoBroadcaster, "current user has no id")
	}
	w.cache.SetBroadcasterID(user.ID)
	return user.ID, nil
}

func (w *Worker) runPass(ctx context.Context, broadcasterID, moderatorID string) {
	logger := w.logger.With().Str("pass_id", uuid.NewString()).Logger()

	if !w.creds.IsAuthorized() {
		logger.Debug().Msg("credentials refreshing, pass skipped")
		w.recorder.ObservePass(metrics.PassSkipped, 0)
		return
	}

	start := w.nowTime()
	err := w.syncRoster(ctx, logger, broadcasterID, moderatorID)
	if err == nil {
		err = w.resolveNames(ctx, logger)
	}
	elapsed := w.nowTime().Sub(start)
	size := w.cache.Len()
	w.recorder.SetRosterSize(size)

	if err != nil {
		w.recorder.ObservePass(metrics.PassError, elapsed)
		if ctx.Err() == nil {
			logger.Error().Err(err).Msg("sync pass failed")
		}
		return
	}
	w.recorder.ObservePass(metrics.PassOK, elapsed)
	logger.Debug().Int("chatters", size).Dur("elapsed", elapsed).Msg("sync pass complete")
}

// syncRoster pages through the roster, touching and evicting after every page,
// until enough chatters are cached or the roster is exhausted.
func (w *Worker) syncRoster(ctx context.Context, logger zerolog.Logger, broadcasterID, moderatorID string) error {
	enough := w.cfg.GetEnoughChatters()
	cursor := ""
	for pages := 1; ; pages++ {
		page, err := w.api.Chatters(ctx, broadcasterID, moderatorID, cursor)
		if err != nil {
			return errors.Wrapf(err, "Worker.syncRoster page %d", pages)
		}

		now := w.nowTime()
		added := w.cache.Touch(page.Logins, now)
		evicted := w.cache.Evict(now, roster.DefaultEvictionWindow, roster.DefaultEvictionBatch)
		w.recorder.AddEvicted(evicted)

		logger.Debug().
			Int("page", pages).
			Int("total", page.Total).
			Int("added", added).
			Int("evicted", evicted).
			Msg("roster page")

		if w.cache.Len() >= enough || pages*helix.PageSize >= page.Total || page.Cursor == "" {
			return nil
		}
		cursor = page.Cursor
	}
}

// resolveNames looks up display names in batches until every unresolved login
// has been tried once this pass. Logins the lookup omits stay unresolved and
// are retried next pass.
func (w *Worker) resolveNames(ctx context.Context, logger zerolog.Logger) error {
	rules := w.cfg.GetDisplayNameTransforms()
	attempted := make(map[string]struct{})
	resolved := 0

	for {
		batch := w.cache.Unresolved(helix.MaxUsersPerLookup, attempted)
		if len(batch) == 0 {
			break
		}
		for _, login := range batch {
			attempted[strings.ToLower(login)] = struct{}{}
		}

		users, err := w.api.UsersByLogin(ctx, batch)
		if err != nil {
			return errors.Wrap(err, "Worker.resolveNames")
		}
		for _, u := range users {
			name := u.DisplayName
			if name == "" {
				name = u.Login
			}
			if w.cache.SetDisplayName(u.Login, transform.Apply(name, rules)) {
				resolved++
			}
		}
	}

	w.recorder.AddResolved(resolved)
	if resolved > 0 {
		logger.Debug().Int("resolved", resolved).Int("attempted", len(attempted)).Msg("display names resolved")
	}
	return nil
}

func (w *Worker) paceDelay() time.Duration {
	n := w.cache.Len()
	switch {
	case n == 0:
		return EmptyRosterDelay
	case n >= w.cfg.GetEnoughChatters():
		return FullRosterDelay
	default:
		return PassDelay
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

type nopRecorder struct{}

func (nopRecorder) ObservePass(string, time.Duration) {}
func (nopRecorder) SetRosterSize(int)                 {}
func (nopRecorder) AddEvicted(int)                    {}
func (nopRecorder) AddResolved(int)                   {}
