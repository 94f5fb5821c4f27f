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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCheck/pkg/logging"
	"github.com/AleutianAI/AleutianCheck/pkg/ux"
	"github.com/AleutianAI/AleutianCheck/services/integrity"
	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/check/refintegrity"
	"github.com/AleutianAI/AleutianCheck/services/integrity/config"
	"github.com/AleutianAI/AleutianCheck/services/integrity/engine"
)

// errIssuesFound makes the process exit with ExitIssues.
var errIssuesFound = errors.New("issues found")

// options holds the persistent flags.
type options struct {
	configPath string
	logLevel   string
	jsonOut    bool
}

// runtime is what every command needs after flag parsing.
type runtime struct {
	cfg     config.Config
	logger  *logging.Logger
	printer *ux.Printer
	jsonOut bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "integrity",
		Short: "Validate and repair metadata object documents",
		Long: `integrity checks a graph of metadata objects (forms, catalogs, subsystems)
for broken identifiers, invalid names and dangling references, and repairs
them in bulk or one issue at a time.

Documents are YAML or JSON files with a list of top objects. The same engine
runs as an HTTP service with an incrementally validated workspace.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print machine-readable JSON")

	rootCmd.AddCommand(
		newValidateCmd(opts),
		newFixCmd(opts),
		newChecksCmd(opts),
		newWatchCmd(opts),
		newServeCmd(opts),
	)
	return rootCmd
}

// setup loads configuration and builds the logger and printer. Logs go
// to stderr so that stdout carries only results.
func (o *options) setup(cmd *cobra.Command, service string) (*runtime, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		if _, err := logging.ParseLevel(o.logLevel); err != nil {
			return nil, err
		}
		cfg.Logging.Level = o.logLevel
	}
	lc := cfg.LoggerConfig(service)
	lc.Output = cmd.ErrOrStderr()
	if o.logLevel == "" && service != serverServiceName && lc.Level < logging.LevelWarn {
		// Interactive commands stay quiet unless asked.
		lc.Level = logging.LevelWarn
	}
	return &runtime{
		cfg:     cfg,
		logger:  logging.New(lc),
		printer: ux.NewPrinter(cmd.OutOrStdout()),
		jsonOut: o.jsonOut,
	}, nil
}

// registryFactory returns a factory that builds the built-in checks with
// the configured reference registry and overrides.
func (r *runtime) registryFactory() (integrity.RegistryFactory, error) {
	var refs *refintegrity.RegistryYAML
	if r.cfg.Registry != "" {
		var err error
		if refs, err = refintegrity.LoadRegistryFile(r.cfg.Registry); err != nil {
			return nil, err
		}
	}
	logger := r.logger.Slog()
	return func() (*check.Registry, error) {
		reg, err := engine.NewRegistry(engine.RegistryConfig{References: refs, Logger: logger})
		if err != nil {
			return nil, err
		}
		if err := r.cfg.Apply(reg); err != nil {
			return nil, err
		}
		return reg, nil
	}, nil
}

// service builds an integrity service without a snapshot store.
func (r *runtime) service() (*integrity.Service, error) {
	factory, err := r.registryFactory()
	if err != nil {
		return nil, err
	}
	return integrity.NewService(integrity.ServiceConfig{
		NewRegistry: factory,
		Workers:     r.cfg.Engine.Workers,
		Logger:      r.logger.Slog(),
	})
}

func (r *runtime) close() {
	_ = r.logger.Close()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// issueRows converts records for the printer.
func issueRows(records []check.Record) []ux.IssueRow {
	rows := make([]ux.IssueRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, ux.IssueRow{
			Top:      string(rec.Top),
			Severity: rec.Severity.String(),
			Check:    rec.CheckID,
			Location: location(rec),
			Message:  rec.Message,
		})
	}
	return rows
}

func location(rec check.Record) string {
	var b strings.Builder
	if rec.NodeURI != "" {
		b.WriteString(string(rec.NodeURI))
	} else {
		fmt.Fprintf(&b, "%s#%d", rec.Class, rec.NodeID)
	}
	if rec.Feature != "" {
		b.WriteString(".")
		b.WriteString(rec.Feature)
	}
	if rec.Index != nil {
		fmt.Fprintf(&b, "[%d]", *rec.Index)
	}
	return b.String()
}
