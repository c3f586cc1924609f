package http

import (
	"net/http"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	budgets, err := s.deps.Budgets.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, budgets)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := decodeBudget(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	budget, err := s.deps.Budgets.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{
		"message": "Budget created successfully",
		"budget":  budget,
	})
}

// handleMonthlyBudgetReport rolls up spend against limits for ?month=, in
// ?year= or the current year.
func (s *Server) handleMonthlyBudgetReport(w http.ResponseWriter, r *http.Request) {
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
	if month == 0 {
		writeError(w, r, core.Validationf("Query parameter month is required"))
		return
	}
	if year == 0 {
		year = time.Now().UTC().Year()
	}
	report, err := s.deps.Budgets.MonthlyReport(r.Context(), userID, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := s.deps.Budgets.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := decodeBudget(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	budget, err := s.deps.Budgets.Update(r.Context(), userID, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"message": "Budget updated successfully",
		"budget":  budget,
	})
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Budgets.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, "Budget deleted successfully")
}

func decodeBudget(w http.ResponseWriter, r *http.Request) (services.BudgetInput, error) {
	var in services.BudgetInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		return in, err
	}
	in.Category = sanitizePtr(in.Category)
	return in, nil
}
