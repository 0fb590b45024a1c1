package httpapi

import (
	"net/http"

	"chainequity/internal/analytics"
)

// handleAnalyticsOverview serves GET /analytics/overview: the full derived
// metrics set plus the most recent corporate actions.
func (s *Server) handleAnalyticsOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := s.engine.Current(ctx, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	actions, err := s.store.GetCorporateActions(ctx, "", 10)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"overview":        analytics.Compute(snap),
		"recentActions":   actions,
		"holderCount":     snap.HolderCount,
		"totalSupply":     snap.TotalSupplyFormatted,
		"splitMultiplier": snap.SplitMultiplier,
	})
}

// handleAnalyticsHolders serves GET /analytics/holders: concentration
// metrics over the current snapshot.
func (s *Server) handleAnalyticsHolders(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Current(r.Context(), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"holderCount":           snap.HolderCount,
		"top10Concentration":    analytics.Top10Concentration(snap),
		"hhi":                   analytics.HHI(snap),
		"concentrationCategory": analytics.ConcentrationCategory(analytics.HHI(snap)),
	})
}

// handleAnalyticsSupply serves GET /analytics/supply: total supply and
// central-tendency balance metrics.
func (s *Server) handleAnalyticsSupply(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Current(r.Context(), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalSupply":          snap.TotalSupply,
		"totalSupplyFormatted": snap.TotalSupplyFormatted,
		"splitMultiplier":      snap.SplitMultiplier,
		"medianBalance":        analytics.Median(snap),
		"meanBalance":          analytics.Mean(snap),
	})
}

// handleAnalyticsDistribution serves GET /analytics/distribution: the
// ownership buckets plus gini and decentralization score.
func (s *Server) handleAnalyticsDistribution(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Current(r.Context(), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	hhi := analytics.HHI(snap)
	gini := analytics.Gini(snap)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"buckets":               analytics.Distribution(snap),
		"gini":                  gini,
		"hhi":                   hhi,
		"decentralizationScore": analytics.DecentralizationScore(snap, hhi, gini),
	})
}

// handleAnalyticsEvents serves GET /analytics/events?limit=&offset=.
func (s *Server) handleAnalyticsEvents(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(queryIntDefault(r, "limit", 100), 1, 1000)
	offset := queryNonNegativeIntDefault(r, "offset", 0)
	events, err := s.store.GetRecentEvents(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
