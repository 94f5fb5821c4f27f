// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCheck/pkg/extensions"
	"github.com/AleutianAI/AleutianCheck/pkg/telemetry"
	"github.com/AleutianAI/AleutianCheck/services/integrity"
	"github.com/AleutianAI/AleutianCheck/services/integrity/document"
	"github.com/AleutianAI/AleutianCheck/services/integrity/storage/badger"
)

const (
	serverServiceName = "integrity-server"
	shutdownTimeout   = 10 * time.Second
)

type serveOptions struct {
	port  int
	load  string
	debug bool
}

func newServeCmd(opts *options) *cobra.Command {
	so := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the integrity HTTP service",
		Long: `Starts the HTTP API. The workspace graph is kept in memory and backed by
a BadgerDB snapshot store (in memory unless storage.path is configured).

Endpoints are served under /v1/integrity and Prometheus metrics under
/metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.setup(cmd, serverServiceName)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rt, so)
		},
	}
	cmd.Flags().IntVarP(&so.port, "port", "p", 0, "Port to listen on (overrides server.port)")
	cmd.Flags().StringVar(&so.load, "load", "", "Document to load into the workspace at startup")
	cmd.Flags().BoolVar(&so.debug, "debug", false, "Enable gin debug mode")
	return cmd
}

func runServe(ctx context.Context, rt *runtime, so *serveOptions) error {
	logger := rt.logger.Slog()

	shutdownTelemetry, err := telemetry.Init(ctx, rt.cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	bcfg := rt.cfg.BadgerConfig()
	bcfg.Logger = logger
	db, err := badger.Open(bcfg)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer db.Close()

	factory, err := rt.registryFactory()
	if err != nil {
		return err
	}
	svc, err := integrity.NewService(integrity.ServiceConfig{
		NewRegistry: factory,
		Store:       badger.NewSnapshotStore(db),
		Workers:     rt.cfg.Engine.Workers,
		Evict:       rt.cfg.Cleanup.Evict,
		Audit:       extensions.NewMemoryAuditLogger(0, logger.With("component", "audit")),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	if so.load != "" {
		doc, err := document.Load(so.load)
		if err != nil {
			return err
		}
		if _, err := svc.Load(ctx, doc); err != nil {
			return err
		}
		report, err := svc.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("Workspace loaded", "document", so.load, "validated", report.Validated, "issues", report.Issues)
	}

	if so.debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := integrity.NewRouter(integrity.NewHandlers(svc), serverServiceName)

	port := rt.cfg.Server.Port
	if so.port != 0 {
		port = so.port
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting integrity server", "address", srv.Addr, "in_memory", db.InMemory())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down integrity server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
