// Package httpapi exposes the cap-table and analytics read surface over
// HTTP (spec §6.2). The router shape — a thin Server wrapping *mux.Router
// plus a logging middleware — is grounded on the teacher's
// cmd/explorer/server.go and middleware.go; every handler here reads
// through internal/store and internal/captable, never writes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"chainequity/internal/captable"
	"chainequity/internal/store"
)

// Server is the HTTP API process, bound to a read-only Store and a
// captable.Engine built over it.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	store      *store.Store
	engine     *captable.Engine
	corsOrigin string
	startedAt  time.Time
	log        *logrus.Entry
}

// NewServer constructs the router and binds it to addr. corsOrigin, when
// non-empty, is echoed back on Access-Control-Allow-Origin (spec §6.3
// CORS_ORIGIN).
func NewServer(addr string, st *store.Store, engine *captable.Engine, corsOrigin string) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		store:      st,
		engine:     engine,
		corsOrigin: corsOrigin,
		startedAt:  time.Now(),
		log:        logrus.WithField("component", "httpapi"),
	}
	s.routes()
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s
}

// Start blocks serving HTTP until the listener errors or is shut down.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("http api listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) routes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/captable", s.handleCaptable).Methods(http.MethodGet)
	api.HandleFunc("/captable/block/{height}", s.handleCaptableByBlock).Methods(http.MethodGet)
	api.HandleFunc("/captable/export", s.handleCaptableExport).Methods(http.MethodGet)
	api.HandleFunc("/captable/holders", s.handleHolders).Methods(http.MethodGet)
	api.HandleFunc("/captable/holder/{addr}", s.handleHolder).Methods(http.MethodGet)
	api.HandleFunc("/captable/top/{n}", s.handleTop).Methods(http.MethodGet)
	api.HandleFunc("/captable/summary", s.handleSummary).Methods(http.MethodGet)

	api.HandleFunc("/analytics/overview", s.handleAnalyticsOverview).Methods(http.MethodGet)
	api.HandleFunc("/analytics/holders", s.handleAnalyticsHolders).Methods(http.MethodGet)
	api.HandleFunc("/analytics/supply", s.handleAnalyticsSupply).Methods(http.MethodGet)
	api.HandleFunc("/analytics/distribution", s.handleAnalyticsDistribution).Methods(http.MethodGet)
	api.HandleFunc("/analytics/events", s.handleAnalyticsEvents).Methods(http.MethodGet)

	api.HandleFunc("/corporate/history", s.handleCorporateHistory).Methods(http.MethodGet)
	api.HandleFunc("/corporate/splits", s.handleCorporateSplits).Methods(http.MethodGet)
	api.HandleFunc("/corporate/symbols", s.handleCorporateSymbols).Methods(http.MethodGet)
	api.HandleFunc("/corporate/names", s.handleCorporateNames).Methods(http.MethodGet)

	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	api.HandleFunc("/events/transfers", s.handleEventsTransfers).Methods(http.MethodGet)
	api.HandleFunc("/events/wallet-approvals", s.handleEventsWalletApprovals).Methods(http.MethodGet)
	api.HandleFunc("/events/corporate", s.handleEventsCorporate).Methods(http.MethodGet)
	api.HandleFunc("/events/address/{addr}", s.handleEventsByAddress).Methods(http.MethodGet)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeErrorStatus(w, http.StatusNotFound, "route not found: "+r.URL.Path)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startedAt).String(),
	})
}
