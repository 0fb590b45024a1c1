package httpapi

import (
	"net/http"

	"chainequity/internal/store"
)

// handleCorporateHistory serves GET /corporate/history?limit=&actionType=.
func (s *Server) handleCorporateHistory(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(queryIntDefault(r, "limit", 50), 1, 500)
	actionType := store.ActionType(r.URL.Query().Get("actionType"))
	actions, err := s.store.GetCorporateActions(r.Context(), actionType, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

func (s *Server) corporateByType(w http.ResponseWriter, r *http.Request, actionType store.ActionType) {
	limit := clampInt(queryIntDefault(r, "limit", 50), 1, 500)
	actions, err := s.store.GetCorporateActions(r.Context(), actionType, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

// handleCorporateSplits serves GET /corporate/splits.
func (s *Server) handleCorporateSplits(w http.ResponseWriter, r *http.Request) {
	s.corporateByType(w, r, store.ActionStockSplit)
}

// handleCorporateSymbols serves GET /corporate/symbols.
func (s *Server) handleCorporateSymbols(w http.ResponseWriter, r *http.Request) {
	s.corporateByType(w, r, store.ActionSymbolChange)
}

// handleCorporateNames serves GET /corporate/names.
func (s *Server) handleCorporateNames(w http.ResponseWriter, r *http.Request) {
	s.corporateByType(w, r, store.ActionNameChange)
}
