package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/bobmcallan/vire-insights/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("/api/mcp/tools", s.handleToolCatalog)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Insights
	mux.HandleFunc("/api/insights", s.handleInsights)
	mux.HandleFunc("/api/insights/refresh", s.handleInsightsRefresh)

	// Trace correlation
	mux.HandleFunc("/api/trace", s.handleTrace)
	mux.HandleFunc("/api/trace/rotate", s.handleTraceRotate)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	cfg := s.app.Config
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":            common.GetVersion(),
		"uptime_seconds":     int64(time.Since(s.app.StartupTime).Seconds()),
		"environment":        cfg.Environment,
		"storage_backend":    cfg.Storage.Backend,
		"narrative_provider": cfg.Clients.Narrative.Provider,
		"defaults":           cfg.Insights.DefaultParams(),
		"request_timeout":    cfg.Insights.GetRequestTimeout().String(),
		"goroutines":         runtime.NumGoroutine(),
		"heap_alloc_bytes":   mem.HeapAlloc,
	})
}

func (s *Server) handleToolCatalog(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, buildToolCatalog())
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}
