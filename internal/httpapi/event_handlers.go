package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"chainequity/internal/store"
)

// handleEvents serves GET /events: the most recent events irrespective of
// type.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(queryIntDefault(r, "limit", 10), 1, 500)
	events, err := s.store.GetRecentEvents(r.Context(), limit, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// handleEventsTransfers serves GET /events/transfers.
func (s *Server) handleEventsTransfers(w http.ResponseWriter, r *http.Request) {
	s.eventsByType(w, r, store.EventTransfer)
}

// handleEventsWalletApprovals serves GET /events/wallet-approvals.
func (s *Server) handleEventsWalletApprovals(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(queryIntDefault(r, "limit", 10), 1, 500)
	approved, err := s.store.GetEventsByType(r.Context(), store.EventWalletApproved, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	revoked, err := s.store.GetEventsByType(r.Context(), store.EventWalletRevoked, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	merged := mergeEventsDesc(approved, revoked, limit)
	writeJSON(w, http.StatusOK, merged)
}

// handleEventsCorporate serves GET /events/corporate: StockSplit,
// SymbolChanged, and NameChanged events merged and sorted descending.
func (s *Server) handleEventsCorporate(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(queryIntDefault(r, "limit", 10), 1, 500)
	ctx := r.Context()
	var merged []store.Event
	for _, t := range []store.EventType{store.EventStockSplit, store.EventSymbolChanged, store.EventNameChanged} {
		events, err := s.store.GetEventsByType(ctx, t, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		merged = mergeEventsDesc(merged, events, limit)
	}
	writeJSON(w, http.StatusOK, merged)
}

// handleEventsByAddress serves GET /events/address/:addr.
func (s *Server) handleEventsByAddress(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]
	if err := validateAddress(addr); err != nil {
		writeError(w, err)
		return
	}
	limit := clampInt(queryIntDefault(r, "limit", 10), 1, 500)
	events, err := s.store.GetEventsByAddress(r.Context(), addr, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) eventsByType(w http.ResponseWriter, r *http.Request, t store.EventType) {
	limit := clampInt(queryIntDefault(r, "limit", 10), 1, 500)
	events, err := s.store.GetEventsByType(r.Context(), t, limit)
	if err != nil {
		writeError(w, fmt.Errorf("load %s events: %w", t, err))
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// mergeEventsDesc merges two already-descending (block_number, id) event
// slices into one descending slice, truncated to limit.
func mergeEventsDesc(a, b []store.Event, limit int) []store.Event {
	out := make([]store.Event, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].BlockNumber > b[j].BlockNumber || (a[i].BlockNumber == b[j].BlockNumber && a[i].ID > b[j].ID) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
