package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/folio/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)

	// Accounts
	mux.HandleFunc("/api/accounts/", s.routeAccounts)
	mux.HandleFunc("/api/accounts", s.handleAccountList)

	// Aggregates
	mux.HandleFunc("/api/reports", s.handleReports)
	mux.HandleFunc("/api/networth", s.handleNetWorth)

	// Prices
	mux.HandleFunc("/api/prices/", s.handlePriceQuote)
}

// routeAccounts dispatches /api/accounts/{id}/* to the appropriate handler.
func (s *Server) routeAccounts(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
	if path == "" {
		s.handleAccountList(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	id, err := parseID(parts[0])
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	subpath := ""
	if len(parts) > 1 {
		subpath = parts[1]
	}

	switch {
	case subpath == "":
		s.handleAccountGet(w, r, id)
	case subpath == "report":
		s.handleAccountReport(w, r, id)
	case subpath == "transactions":
		s.handleAccountTransactions(w, r, id)
	case strings.HasPrefix(subpath, "charts/"):
		s.handleAccountChart(w, r, id, strings.TrimPrefix(subpath, "charts/"))
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// --- System handlers ---

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

// handleConfig reports the effective runtime configuration without secrets.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	cfg := s.app.Config
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"environment":            cfg.Environment,
		"storage_backend":        cfg.Storage.Backend,
		"reporting_timezone":     cfg.Reporting.Timezone,
		"yesterday":              common.FormatDate(s.app.Clock.Yesterday()),
		"max_concurrent_reports": cfg.Portfolio.MaxConcurrentReports,
		"price_refresh_interval": cfg.Scheduler.GetPriceRefreshInterval().String(),
		"eodhd_configured":       s.app.EODHDClient != nil,
		"events_enabled":         s.app.Events != nil,
		"logging_level":          cfg.Logging.Level,
		"uptime":                 time.Since(s.app.StartupTime).Round(time.Second).String(),
	})
}
