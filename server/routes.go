package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	// Overlay API
	s.RegisterRouteHandler("GET "+RouteRoster, ChainMiddleware(s.RosterHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteRoster, ChainMiddleware(noContent, s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteLabel, ChainMiddleware(s.LabelHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteLabel, ChainMiddleware(s.ForgetLabelHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteLabel, ChainMiddleware(noContent, s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RoutePrompt, ChainMiddleware(s.PromptHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RoutePrompt, ChainMiddleware(noContent, s.APIMiddleware()...))

	metrics := promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})
	s.RegisterRouteHandler("GET "+RouteMetric, ChainMiddleware(metrics.ServeHTTP, s.RecoverMiddleware))
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
