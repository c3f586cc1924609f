package http

import (
	"net/http"

	"fintrack/internal/services"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	categories, err := s.deps.Categories.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := decodeCategory(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	category, err := s.deps.Categories.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, category)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	category, err := s.deps.Categories.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, category)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := decodeCategory(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	category, err := s.deps.Categories.Update(r.Context(), userID, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, category)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Categories.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, "Category deleted successfully")
}

func decodeCategory(w http.ResponseWriter, r *http.Request) (services.CategoryInput, error) {
	var in services.CategoryInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		return in, err
	}
	in.Name, in.Icon = sanitizePtr(in.Name), sanitizePtr(in.Icon)
	return in, nil
}
