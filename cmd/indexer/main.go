// Command indexer runs the ingestion loop and the read-only HTTP API over
// the cap-table store it maintains. Bootstrap shape follows the teacher's
// cmd/explorer/main.go (load env, open storage, construct the service,
// start the server) generalized with context-based graceful shutdown on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"chainequity/internal/captable"
	"chainequity/internal/chainclient"
	"chainequity/internal/config"
	"chainequity/internal/httpapi"
	"chainequity/internal/indexer"
	"chainequity/internal/store"
)

var log = logrus.WithField("component", "cmd/indexer")

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.UseLocalNetwork {
		if err := chainclient.RequireLocalEndpoint(cfg.RPCURL()); err != nil {
			log.Fatalf("localhost guard: %v", err)
		}
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("store open: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Warn("store close")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain, err := chainclient.New(ctx, cfg.WSURL(), cfg.TokenContractAddress)
	if err != nil {
		log.Fatalf("chain client: %v", err)
	}

	ix := indexer.New(chain, st, chain.ABI())
	if err := seedDeploymentBlock(ctx, st, ix, cfg.DeploymentBlock); err != nil {
		log.Fatalf("seed deployment block: %v", err)
	}

	engine := captable.New(st, 18)
	server := httpapi.NewServer(":"+strconv.Itoa(cfg.Port), st, engine, cfg.CORSOrigin)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	indexerErr := make(chan error, 1)
	go func() { indexerErr <- ix.Run(ctx) }()

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	indexerDone := false
	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-indexerErr:
		indexerDone = true
		if err != nil {
			log.WithError(err).Error("indexer exited fatally")
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server exited")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if !indexerDone {
		<-indexerErr
	}
}

// seedDeploymentBlock, on a fresh database with no recorded sync cursor,
// rewinds the indexer to start just before the configured deployment block
// instead of genesis (spec §6.3 DEPLOYMENT_BLOCK).
func seedDeploymentBlock(ctx context.Context, st *store.Store, ix *indexer.Indexer, deploymentBlock *uint64) error {
	if deploymentBlock == nil {
		return nil
	}
	_, ok, err := st.GetMetadata(ctx, store.MetaLastSyncedBlock)
	if err != nil {
		return err
	}
	if ok {
		return nil // already synced at least once; deployment block only seeds a fresh DB
	}
	start := *deploymentBlock
	if start > 0 {
		start--
	}
	return ix.Rewind(ctx, start)
}
