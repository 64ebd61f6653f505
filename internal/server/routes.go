package server

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/bobmcallan/stocker/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/diagnostics", s.handleDiagnostics)

	// Market data
	mux.HandleFunc("/api/symbols", s.handleSymbols)
	mux.HandleFunc("/api/search-symbols", s.handleSearchSymbols)
	mux.HandleFunc("/api/stock/", s.handleStock)
	mux.HandleFunc("/api/sentiment", s.handleSentiment)

	mux.HandleFunc("/api/", s.handleAPINotFound)

	// Front end
	if dir := s.app.Config.Server.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			mux.Handle("/", http.FileServer(http.Dir(dir)))
			s.logger.Info().Str("dir", dir).Msg("Serving static files")
			return
		}
		s.logger.Warn().Str("dir", dir).Msg("Static directory not found, front end disabled")
	}
}

func (s *Server) handleAPINotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "Not found")
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
		"full":    common.GetFullVersion(),
	})
}

// handleDiagnostics reports cache state without triggering any upstream fetch.
// Disabled in production.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Diagnostics endpoint disabled in production")
		return
	}

	uptime := time.Since(s.app.StartupTime).Round(time.Second)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":       common.GetVersion(),
		"build":         common.GetBuild(),
		"commit":        common.GetGitCommit(),
		"uptime":        uptime.String(),
		"started_at":    s.app.StartupTime,
		"symbols":       s.app.SymbolService.Snapshot(),
		"stock_cache":   s.app.StockService.Stats(),
		"goroutines":    runtime.NumGoroutine(),
		"heap_alloc_mb": float64(m.HeapAlloc) / 1024 / 1024,
	})
}
