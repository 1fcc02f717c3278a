package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Test console
	mux.HandleFunc("/", s.app.PageHandler.ServeIndex)

	// Run screenshots
	mux.HandleFunc("/screenshots/", s.app.PageHandler.ScreenshotHandler)

	// Scenario WebSocket: /test/ws/{scenario}
	mux.HandleFunc("/test/ws/", s.app.WSHandler.HandleTestSocket)

	// API routes - System
	mux.HandleFunc("/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	return mux
}
