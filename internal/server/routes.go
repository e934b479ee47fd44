package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - DevSkiller cookie lifecycle
	mux.HandleFunc("/api/devskiller/refresh", s.app.DevSkillerHandler.RefreshHandler) // POST|GET - trigger refresh
	mux.HandleFunc("/api/devskiller/status", s.app.DevSkillerHandler.StatusHandler)   // GET - refresh status

	// API routes - Video resolution
	mux.HandleFunc("/api/video", s.app.VideoHandler.ResolveHandler)        // GET ?url= - start resolution
	mux.HandleFunc("/api/video/status/", s.app.VideoHandler.StatusHandler) // GET /{candidate_id}/{invitation_id}

	// API routes - Document conversion proxy
	mux.HandleFunc("/api/document/convert/file", s.app.DocumentHandler.ConvertFileHandler)
	mux.HandleFunc("/api/document/convert/source", s.app.DocumentHandler.ConvertSourceHandler)
	mux.HandleFunc("/api/document/convert/source/async", s.app.DocumentHandler.ConvertSourceAsyncHandler)
	mux.HandleFunc("/api/document/status/poll/", s.app.DocumentHandler.PollStatusHandler)
	mux.HandleFunc("/api/document/result/", s.app.DocumentHandler.ResultHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
