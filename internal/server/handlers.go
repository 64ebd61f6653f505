package server

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/bobmcallan/stocker/internal/models"
	"github.com/bobmcallan/stocker/internal/services/search"
	"github.com/bobmcallan/stocker/internal/services/stock"
)

const (
	defaultPeriod  = "1y"
	maxParamLength = 32
)

type symbolsResponse struct {
	Symbols []string `json:"symbols"`
}

type stockResponse struct {
	History []models.HistoryBar `json:"history"`
	Info    map[string]any      `json:"info"`
}

// handleSymbols handles GET /api/symbols.
func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, symbolsResponse{Symbols: s.app.SymbolService.GetSymbols(r.Context())})
}

// handleSearchSymbols handles GET /api/search-symbols?query=<q>.
func (s *Server) handleSearchSymbols(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	results, err := s.app.SearchService.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, symbolsResponse{Symbols: results})
}

// handleStock handles GET /api/stock/{symbol}?period=<p>.
func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(PathParam(r, "/api/stock/", "")))
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required in path")
		return
	}
	if !validParam(symbol) {
		WriteError(w, http.StatusBadRequest, "invalid symbol")
		return
	}

	period := strings.TrimSpace(r.URL.Query().Get("period"))
	if period == "" {
		period = defaultPeriod
	}
	if !validParam(period) {
		WriteError(w, http.StatusBadRequest, "invalid period")
		return
	}

	data, err := s.app.StockService.GetStock(r.Context(), symbol, period)
	if err != nil {
		var upstream *stock.UpstreamError
		switch {
		case errors.Is(err, stock.ErrNotFound):
			WriteError(w, http.StatusNotFound, "No data found for the selected stock and period. It might be an invalid symbol or period.")
		case errors.As(err, &upstream):
			WriteError(w, http.StatusInternalServerError,
				fmt.Sprintf("Error fetching stock data for %s: %v. Please check the symbol or try again later.", symbol, upstream.Err))
		default:
			WriteError(w, http.StatusInternalServerError,
				fmt.Sprintf("Error fetching stock data for %s: %v", symbol, err))
		}
		return
	}

	WriteJSON(w, http.StatusOK, stockResponse{History: data.History, Info: data.Info})
}

// handleSentiment handles GET /api/sentiment with a simulated reading.
func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, s.sentiment())
}

// sentiment draws bullish from 40..85 and a forecast from -3.5..5.5 at one decimal place.
func (s *Server) sentiment() models.Sentiment {
	bullish := 40 + int(s.rand()*46)
	if bullish > 85 {
		bullish = 85
	}
	forecast := math.Round((-3.5+s.rand()*9.0)*10) / 10

	return models.Sentiment{
		Bullish:  bullish,
		Bearish:  100 - bullish,
		Forecast: forecast,
	}
}

// validParam accepts ticker-style tokens: letters, digits and & . _ -
func validParam(v string) bool {
	if len(v) == 0 || len(v) > maxParamLength {
		return false
	}
	for _, c := range v {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '&', c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
