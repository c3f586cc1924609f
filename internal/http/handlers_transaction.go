package http

import (
	"net/http"

	"fintrack/internal/services"
)

// handleListTransactions answers day groups, newest first, for the optional
// year and month query.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
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
	days, err := s.deps.Transactions.List(r.Context(), userID, services.ListQuery{Year: year, Month: month})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, days)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := decodeTransaction(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.deps.Transactions.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, tx)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.deps.Transactions.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := decodeTransaction(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.deps.Transactions.Update(r.Context(), userID, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Transactions.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, "Transaction deleted successfully")
}

// handleExportTransactions queues a CSV report to be emailed to the caller.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Transactions.RequestExport(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusAccepted, "Export started, the report will be sent to your email")
}

func decodeTransaction(w http.ResponseWriter, r *http.Request) (services.TransactionInput, error) {
	var in services.TransactionInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		return in, err
	}
	in.Category, in.Description = sanitizePtr(in.Category), sanitizePtr(in.Description)
	return in, nil
}
