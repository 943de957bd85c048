package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-chatter-roster/auth"
	"github.com/jrsteele09/go-chatter-roster/helix"
	"github.com/jrsteele09/go-chatter-roster/internal/config"
	"github.com/jrsteele09/go-chatter-roster/internal/logger"
	"github.com/jrsteele09/go-chatter-roster/metrics"
	"github.com/jrsteele09/go-chatter-roster/overlay"
	"github.com/jrsteele09/go-chatter-roster/roster"
	"github.com/jrsteele09/go-chatter-roster/rostersync"
	"github.com/jrsteele09/go-chatter-roster/server"
	"github.com/jrsteele09/go-chatter-roster/supervisor"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	xoauth2 "golang.org/x/oauth2"
)

const discoveryTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	config.LoadDotEnv(".env")
	c, err := config.Load(config.EnvVars{}.GetConfigPath())
	if err != nil {
		return errors.Wrap(err, "config.Load")
	}

	l := logger.New(c.GetEnv(), c.GetLogLevel())
	logger.SetGlobal(l)
	displayAppname(c.GetAppName())

	m, err := metrics.New(metrics.Options{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		return errors.Wrap(err, "metrics.New")
	}

	session, err := auth.NewSession(c, sessionOptions(c, l, m)...)
	if err != nil {
		return errors.Wrap(err, "auth.NewSession")
	}

	cache := roster.New()
	api := helix.NewClient(c.GetHelixBaseURL(), session.ClientID(), session)
	worker, err := rostersync.NewWorker(c, session, api, cache,
		rostersync.WithLogger(l),
		rostersync.WithMetrics(m),
	)
	if err != nil {
		return errors.Wrap(err, "rostersync.NewWorker")
	}

	sup, err := supervisor.New(session, worker, supervisor.WithLogger(l))
	if err != nil {
		return errors.Wrap(err, "supervisor.New")
	}

	handler, err := server.New(c, server.Deps{
		Cache:    cache,
		Labeler:  overlay.NewLabeler(cache, c.GetFontColors()),
		Auth:     session,
		Gatherer: prometheus.DefaultGatherer,
	}, server.WithLogger(l))
	if err != nil {
		return errors.Wrap(err, "server.New")
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(httpServer)

	if err := sup.Start(context.Background()); err != nil {
		return errors.Wrap(err, "supervisor.Start")
	}

	waitForStopSignal()

	if err := sup.Stop(); err != nil {
		log.Warn().Err(err).Msg("sync supervisor ended with error")
	}
	return shutdown(httpServer)
}

// sessionOptions discovers the provider endpoints when an issuer is
// configured; discovery failures keep the configured endpoints.
func sessionOptions(c config.Config, l zerolog.Logger, m *metrics.Metrics) []auth.SessionOption {
	opts := []auth.SessionOption{auth.WithLogger(l), auth.WithMetrics(m)}

	issuer := c.GetIssuer()
	if issuer == "" {
		return opts
	}

	ctx, cancel := context.WithTimeout(context.Background(), discoveryTimeout)
	defer cancel()
	fallback := xoauth2.Endpoint{DeviceAuthURL: c.GetDeviceAuthURL(), TokenURL: c.GetTokenURL()}
	ep, err := auth.DiscoverEndpoint(ctx, issuer, fallback, nil)
	if err != nil {
		l.Warn().Err(err).Str("issuer", issuer).Msg("endpoint discovery failed, using configured endpoints")
		return opts
	}
	return append(opts, auth.WithEndpoint(ep))
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
