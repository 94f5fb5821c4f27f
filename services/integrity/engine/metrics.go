// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const tracerName = "aleutian.integrity.engine"

var meter = otel.Meter(tracerName)

var (
	validateLatency metric.Float64Histogram
	validateTotal   metric.Int64Counter
	issuesFound     metric.Int64Histogram
	syncNotes       metric.Int64Counter
	runRequeued     metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		validateLatency, err = meter.Float64Histogram(
			"integrity_validate_duration_seconds",
			metric.WithDescription("Duration of one top object validation"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		validateTotal, err = meter.Int64Counter(
			"integrity_validate_total",
			metric.WithDescription("Total number of top object validations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		issuesFound, err = meter.Int64Histogram(
			"integrity_issues_found",
			metric.WithDescription("Issues reported per top object validation"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		syncNotes, err = meter.Int64Counter(
			"integrity_sync_notifications_total",
			metric.WithDescription("Raw notifications consumed by Sync"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runRequeued, err = meter.Int64Counter(
			"integrity_run_requeued_total",
			metric.WithDescription("Top objects put back after an interrupted run"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordValidate(ctx context.Context, class string, d time.Duration, issues int, cancelled bool) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("class", class),
		attribute.Bool("cancelled", cancelled),
	)
	validateLatency.Record(ctx, d.Seconds(), attrs)
	validateTotal.Add(ctx, 1, attrs)
	if !cancelled {
		issuesFound.Record(ctx, int64(issues), metric.WithAttributes(attribute.String("class", class)))
	}
}

func recordSync(ctx context.Context, notes int) {
	if initMetrics() != nil || notes == 0 {
		return
	}
	syncNotes.Add(ctx, int64(notes))
}

func recordRequeued(ctx context.Context, n int) {
	if initMetrics() != nil || n == 0 {
		return
	}
	runRequeued.Add(ctx, int64(n))
}
