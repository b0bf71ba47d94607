package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/services/portfolio"
)

// --- Account handlers ---

func (s *Server) handleAccountList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	accounts, err := s.app.Storage.AccountStore().ListAccounts(r.Context())
	if err != nil {
		WriteServiceError(w, "Error listing accounts", err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
	})
}

func (s *Server) handleAccountGet(w http.ResponseWriter, r *http.Request, id int64) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	account, err := s.app.Storage.AccountStore().GetAccount(r.Context(), id)
	if err != nil {
		WriteServiceError(w, "Error loading account", err)
		return
	}

	WriteJSON(w, http.StatusOK, account)
}

func (s *Server) handleAccountReport(w http.ResponseWriter, r *http.Request, id int64) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	report, err := s.app.PortfolioService.Report(r.Context(), id)
	if err != nil {
		WriteServiceError(w, "Report error", err)
		return
	}

	WriteJSON(w, http.StatusOK, report)
}

func (s *Server) handleAccountTransactions(w http.ResponseWriter, r *http.Request, id int64) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	txs, err := s.app.PortfolioService.AnnotatedTransactions(r.Context(), id)
	if err != nil {
		WriteServiceError(w, "Error loading transactions", err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"account_id":   id,
		"transactions": txs,
	})
}

// handleAccountChart serves /api/accounts/{id}/charts/{kind}.png
func (s *Server) handleAccountChart(w http.ResponseWriter, r *http.Request, id int64, name string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if !strings.HasSuffix(name, ".png") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	kind, err := portfolio.ParseChartKind(strings.TrimSuffix(name, ".png"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.app.PortfolioService.Report(r.Context(), id)
	if err != nil {
		WriteServiceError(w, "Report error", err)
		return
	}
	if len(report.Timeseries.Snapshots) < 2 {
		WriteErrorWithCode(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("account %d has %d snapshots, a chart needs at least 2", id, len(report.Timeseries.Snapshots)),
			CodeInsufficientData)
		return
	}

	png, err := portfolio.RenderChart(kind, report.Timeseries, report.Account.Currency)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Chart error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// --- Aggregate handlers ---

// handleReports serves GET /api/reports?ids=1,2,3. Without ids every account
// is reported. Accounts that fail are listed under "errors".
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	ids, err := parseIDList(r.URL.Query().Get("ids"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(ids) == 0 {
		accounts, err := s.app.Storage.AccountStore().ListAccounts(ctx)
		if err != nil {
			WriteServiceError(w, "Error listing accounts", err)
			return
		}
		for _, a := range accounts {
			ids = append(ids, a.ID)
		}
	}

	reports, err := s.app.PortfolioService.Reports(ctx, ids)
	if err != nil && len(reports) == 0 {
		WriteServiceError(w, "Report error", err)
		return
	}

	errs := []string{}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			errs = append(errs, e.Error())
		}
	} else if err != nil {
		errs = append(errs, err.Error())
	}
	sort.Strings(errs)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"errors":  errs,
	})
}

type netWorthResponse struct {
	*models.NetWorth
	Formatted map[string]string `json:"formatted"`
}

func (s *Server) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	nw, err := s.app.PortfolioService.NetWorth(r.Context())
	if err != nil {
		WriteServiceError(w, "Net worth error", err)
		return
	}

	formatted := make(map[string]string, len(nw.ByCurrency))
	for currency, breakdown := range nw.ByCurrency {
		formatted[currency] = common.FormatMoney(breakdown.Total(), currency)
	}

	WriteJSON(w, http.StatusOK, netWorthResponse{NetWorth: nw, Formatted: formatted})
}

// --- Price handlers ---

// handlePriceQuote serves GET /api/prices/{symbol}?date=YYYY-MM-DD, defaulting
// to yesterday in the reporting timezone.
func (s *Server) handlePriceQuote(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/prices/"))
	if symbol == "" || strings.Contains(symbol, "/") {
		WriteError(w, http.StatusBadRequest, "symbol is required in path")
		return
	}

	date := s.app.Clock.Yesterday()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := common.ParseDate(raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		date = parsed
	}

	WriteJSON(w, http.StatusOK, s.app.MarketService.Quote(r.Context(), symbol, date))
}
