// Package supervisor owns the process lifetime of the auth flow and the sync
// worker.
package supervisor

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrAlreadyStarted = errors.New("supervisor already started")

// Authenticator is the auth session as seen by the supervisor.
type Authenticator interface {
	BeginDeviceAuthorization(ctx context.Context) error
	Ready() <-chan struct{}
	Stop()
}

// Runner is a long-running task that returns when ctx is done.
type Runner interface {
	Run(ctx context.Context) error
}

// Supervisor runs the device flow and, once it succeeds, the sync worker.
// Either task failing is recorded but does not stop the other.
type Supervisor struct {
	auth   Authenticator
	worker Runner
	logger zerolog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	group    errgroup.Group
	firstErr error
}

type Option func(*Supervisor)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = l
	}
}

func New(auth Authenticator, worker Runner, opts ...Option) (*Supervisor, error) {
	if auth == nil {
		return nil, errors.New("[supervisor.New] authenticator is required")
	}
	if worker == nil {
		return nil, errors.New("[supervisor.New] worker is required")
	}

	s := &Supervisor{
		auth:   auth,
		worker: worker,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "supervisor").Logger()
	return s, nil
}

// Start derives the lifetime context from parent, dispatches the device flow
// and starts the worker once the session is ready. It does not block.
func (s *Supervisor) Start(parent context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	s.group.Go(func() error {
		return s.record(ctx, "auth", s.auth.BeginDeviceAuthorization(ctx))
	})
	s.group.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-s.auth.Ready():
		}
		s.logger.Info().Msg("session authorized, starting sync worker")
		return s.record(ctx, "worker", s.worker.Run(ctx))
	})

	return nil
}

// Stop cancels the lifetime, stops the refresh timer and waits for both tasks.
// It returns the first termination error, if any.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	s.auth.Stop()
	_ = s.group.Wait()
	return s.Err()
}

// Err returns the first non-nil termination error seen so far.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

// record drops cancellations caused by shutdown and keeps the first real error.
func (s *Supervisor) record(ctx context.Context, task string, err error) error {
	if err == nil {
		s.logger.Debug().Str("task", task).Msg("task finished")
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}

	s.logger.Error().Err(err).Str("task", task).Msg("task terminated")
	s.mu.Lock()
	if s.firstErr == nil {
		s.firstErr = errors.Wrap(err, task)
	}
	s.mu.Unlock()
	return err
}
