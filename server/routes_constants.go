package server

// Route path constants
const (
	RouteHealth = "/healthz"
	RouteRoster = "/api/roster"
	RouteLabel  = "/api/labels/{entity}"
	RoutePrompt = "/api/auth/prompt"
	RouteMetric = "/metrics"
)
