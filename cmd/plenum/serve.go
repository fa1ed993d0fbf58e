package main

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parlatech/plenum/internal/config"
	"github.com/parlatech/plenum/internal/events"
	"github.com/parlatech/plenum/internal/identity"
	"github.com/parlatech/plenum/internal/ledger"
	"github.com/parlatech/plenum/internal/recon"
	"github.com/parlatech/plenum/internal/recorder"
	"github.com/parlatech/plenum/internal/registry"
	"github.com/parlatech/plenum/internal/server"
	"github.com/parlatech/plenum/internal/snapshot"
	"github.com/parlatech/plenum/internal/store/postgres"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the plenum engine server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create an HTTP client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Connect to Postgres.
		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (PLENUM_NATS_URL not set)")
		}

		// Connect to the ledger node.
		ledgerCfg := ledger.Config{
			RPCURL:           cfg.RPCURL,
			ContractAddress:  cfg.ContractAddress,
			ChainID:          big.NewInt(cfg.ChainID),
			GasMarginPercent: cfg.GasMarginPercent,
			ConfirmTimeout:   cfg.ConfirmTimeout,
		}
		if cfg.AdminKeystore != "" {
			admin, err := ledger.SignerFromKeystore(cfg.AdminKeystore, cfg.AdminPassphrase)
			if err != nil {
				publisher.Close()
				store.Close()
				return err
			}
			ledgerCfg.Admin = admin
			logger.Info("admin signer loaded", "address", admin.Address())
		} else {
			logger.Warn("no admin keystore configured; session and law writes will fail")
		}

		gw, err := ledger.Dial(context.Background(), ledgerCfg, logger)
		if err != nil {
			publisher.Close()
			store.Close()
			return err
		}
		logger.Info("ledger gateway connected", "rpc_url", cfg.RPCURL, "contract", cfg.ContractAddress)

		// Create server components.
		rc := recon.New(gw, store, publisher, logger)
		reg := registry.New(gw, store, rc, publisher, logger)
		rec := recorder.New(gw, store, rc, publisher, logger)

		srv := server.New(reg, rec, rc, store, gw, publisher, logger)
		if cfg.IdentityURL != "" {
			srv = srv.WithIdentity(identity.NewHTTPVerifier(cfg.IdentityURL))
			logger.Info("identity attribution enabled", "identity_url", cfg.IdentityURL)
		}

		// Start HTTP server.
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: srv.NewHTTPHandler(cfg.AuthToken),
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Relay confirmed ledger events into NATS and the SSE stream.
		relayStop, err := srv.RelayEvents(context.Background())
		if err != nil {
			logger.Error("failed to start ledger event relay", "err", err)
		} else {
			logger.Info("ledger event relay started")
		}

		// Keep the active-session cache fresh from ledger events.
		watchStop, err := reg.Watch(context.Background())
		if err != nil {
			logger.Error("failed to start session watcher", "err", err)
		}

		// Start snapshot scheduler if configured.
		var scheduler *snapshot.Scheduler
		if cfg.SnapshotInterval > 0 && cfg.SnapshotS3Bucket != "" {
			s3Dest, err := snapshot.NewS3Destination(
				context.Background(),
				cfg.SnapshotS3Bucket,
				cfg.SnapshotS3Key,
				cfg.SnapshotS3Region,
				cfg.SnapshotS3Endpoint,
			)
			if err != nil {
				logger.Error("failed to create S3 snapshot destination", "err", err)
			} else {
				scheduler = snapshot.NewScheduler(store, []snapshot.Destination{s3Dest}, cfg.SnapshotInterval, logger)
				scheduler.Start()
				logger.Info("snapshot scheduler started",
					"interval", cfg.SnapshotInterval,
					"bucket", cfg.SnapshotS3Bucket,
					"key", cfg.SnapshotS3Key,
				)
			}
		}

		logger.Info("plenum engine started", "http_addr", cfg.HTTPAddr)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("snapshot scheduler stopped")
		}

		if watchStop != nil {
			watchStop()
		}
		if relayStop != nil {
			relayStop()
			logger.Info("ledger event relay stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		rec.Wait()
		if err := gw.Close(); err != nil {
			logger.Error("error closing ledger gateway", "err", err)
		}
		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
