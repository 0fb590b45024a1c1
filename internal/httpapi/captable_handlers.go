package httpapi

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"chainequity/internal/analytics"
	"chainequity/internal/captable"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func validateAddress(addr string) error {
	if !addressPattern.MatchString(addr) {
		return fmt.Errorf("invalid address %q", addr)
	}
	return nil
}

// handleCaptable serves GET /captable: the current snapshot, or the
// historical one at ?block=H, optionally truncated to ?limit=N holders.
func (s *Server) handleCaptable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := queryIntDefault(r, "limit", 0)

	blockRaw := r.URL.Query().Get("block")
	if blockRaw == "" {
		snap, err := s.engine.Current(ctx, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, withHolders(snap))
		return
	}

	block, err := strconv.ParseUint(blockRaw, 10, 64)
	if err != nil {
		writeError(w, fmt.Errorf("invalid block %q", blockRaw))
		return
	}
	snap, err := s.engine.Historical(ctx, block)
	if err != nil {
		writeError(w, err)
		return
	}
	if limit > 0 && limit < len(snap.Entries) {
		snap.Entries = snap.Entries[:limit]
	}
	writeJSON(w, http.StatusOK, withHolders(snap))
}

// handleCaptableByBlock serves GET /captable/block/:H, historical only. The
// route accepts any path segment (not just digits) so a negative or
// malformed height reaches this validation and returns 400, rather than
// falling through to the router's 404 NotFoundHandler (spec §8).
func (s *Server) handleCaptableByBlock(w http.ResponseWriter, r *http.Request) {
	heightRaw := mux.Vars(r)["height"]
	height, err := strconv.ParseUint(heightRaw, 10, 64)
	if err != nil {
		writeError(w, fmt.Errorf("invalid block height %q", heightRaw))
		return
	}
	snap, err := s.engine.Historical(r.Context(), height)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withHolders(snap))
}

// withHolders mirrors the snapshot with its entries also exposed under a
// `holders` key, matching the documented success shape (spec §6.2).
func withHolders(snap *captable.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"totalSupply":          snap.TotalSupply,
		"totalSupplyFormatted": snap.TotalSupplyFormatted,
		"splitMultiplier":      snap.SplitMultiplier,
		"holderCount":          snap.HolderCount,
		"entries":              snap.Entries,
		"blockNumber":          snap.BlockNumber,
		"holders":              snap.Entries,
	}
}

// handleHolders serves GET /captable/holders?limit=N.
func (s *Server) handleHolders(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(queryIntDefault(r, "limit", 100), 1, 1000)
	snap, err := s.engine.Current(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]interface{}, len(snap.Entries))
	for i, e := range snap.Entries {
		out[i] = map[string]interface{}{
			"address":    e.Address,
			"balance":    e.BalanceFormatted,
			"percentage": e.OwnershipPercentage,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleHolder serves GET /captable/holder/:addr: the entry plus its
// balance-change history, or 404 when the address has no current balance.
func (s *Server) handleHolder(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]
	if err := validateAddress(addr); err != nil {
		writeError(w, err)
		return
	}
	ctx := r.Context()
	snap, err := s.engine.Current(ctx, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	var found *captable.Entry
	for i, e := range snap.Entries {
		if e.Address == addr {
			found = &snap.Entries[i]
			break
		}
	}
	if found == nil {
		writeError(w, fmt.Errorf("holder not found: %s", addr))
		return
	}
	history, err := s.engine.BalanceHistory(ctx, addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":             found.Address,
		"rawBalance":          found.RawBalance,
		"balanceFormatted":    found.BalanceFormatted,
		"ownershipPercentage": found.OwnershipPercentage,
		"lastUpdatedBlock":    found.LastUpdatedBlock,
		"balanceHistory":      history,
	})
}

// handleTop serves GET /captable/top/:N, N>0 strict.
func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil || n <= 0 {
		writeError(w, fmt.Errorf("invalid N: must be a positive integer"))
		return
	}
	snap, err := s.engine.Current(r.Context(), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Entries)
}

// handleSummary serves GET /captable/summary.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Current(r.Context(), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	overview := analytics.Compute(snap)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"holderCount":     snap.HolderCount,
		"totalSupply":     snap.TotalSupplyFormatted,
		"median":          overview.MedianBalance,
		"avg":             overview.MeanBalance,
		"top10":           overview.Top10Concentration,
		"hhi":             overview.HHI,
		"splitMultiplier": snap.SplitMultiplier,
		"generatedAt":     time.Now().UTC(),
	})
}
