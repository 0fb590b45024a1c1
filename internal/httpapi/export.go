package httpapi

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"chainequity/internal/captable"
)

// handleCaptableExport serves GET /captable/export?format=csv|json&block=H,
// streaming the snapshot directly to the response body rather than
// buffering it, following the teacher's disk-backed streaming discipline in
// core/storage.go's diskLRU (adapted here from file-to-disk to
// response-to-wire).
func (s *Server) handleCaptableExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "csv" && format != "json" {
		writeError(w, fmt.Errorf("invalid format %q: must be csv or json", format))
		return
	}

	ctx := r.Context()
	var snap *captable.Snapshot
	var err error
	if blockRaw := r.URL.Query().Get("block"); blockRaw != "" {
		block, perr := strconv.ParseUint(blockRaw, 10, 64)
		if perr != nil {
			writeError(w, fmt.Errorf("invalid block %q", blockRaw))
			return
		}
		snap, err = s.engine.Historical(ctx, block)
	} else {
		snap, err = s.engine.Current(ctx, 0)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	generatedAt := time.Now().UTC()
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="captable.json"`)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"snapshot":    snap,
			"generatedAt": generatedAt,
		})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="captable.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Address", "Balance", "Ownership %", "Last Updated"})
	for _, e := range snap.Entries {
		_ = cw.Write([]string{
			e.Address,
			e.BalanceFormatted,
			strconv.FormatFloat(e.OwnershipPercentage, 'f', 4, 64),
			strconv.FormatUint(e.LastUpdatedBlock, 10),
		})
	}
	_ = cw.Write([]string{})
	_ = cw.Write([]string{"Total Supply", "Total Holders", "Split Multiplier", "Generated At"})
	_ = cw.Write([]string{
		snap.TotalSupplyFormatted,
		strconv.Itoa(snap.HolderCount),
		strconv.FormatFloat(snap.SplitMultiplier, 'f', 4, 64),
		generatedAt.Format(time.RFC3339),
	})
	cw.Flush()
}
