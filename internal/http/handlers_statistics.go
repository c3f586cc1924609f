package http

import (
	"context"
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

func (s *Server) handleMonthlyStatistics(w http.ResponseWriter, r *http.Request) {
	s.serveStatistics(w, r, s.deps.Stats.Monthly)
}

func (s *Server) handleYearlyStatistics(w http.ResponseWriter, r *http.Request) {
	s.serveStatistics(w, r, s.deps.Stats.Yearly)
}

type statsFunc func(ctx context.Context, userID string, q services.StatsQuery) (any, error)

func (s *Server) serveStatistics(w http.ResponseWriter, r *http.Request, compute statsFunc) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := services.StatsQuery{
		Year:  year,
		Month: month,
		Type:  core.TransactionType(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type")))),
	}
	result, err := compute(r.Context(), userID, q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}
