// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cleanup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "integrity_cleanup_runs_total",
		Help: "Completed cleanup runs by repairer and outcome",
	}, []string{"repairer", "outcome"})

	fixesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "integrity_cleanup_fixes_total",
		Help: "Nodes repaired by cleanup runs",
	}, []string{"repairer"})

	skippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "integrity_cleanup_skipped_total",
		Help: "Top objects skipped because they are not editable",
	}, []string{"repairer"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "integrity_cleanup_duration_seconds",
		Help:    "Duration of cleanup runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"repairer"})
)

func recordRun(r Report) {
	outcome := "completed"
	if r.Cancelled {
		outcome = "cancelled"
	}
	runsTotal.WithLabelValues(r.Repairer, outcome).Inc()
	fixesTotal.WithLabelValues(r.Repairer).Add(float64(r.Fixed))
	runDuration.WithLabelValues(r.Repairer).Observe(r.Duration.Seconds())
}

func recordSkipped(repairer string) {
	skippedTotal.WithLabelValues(repairer).Inc()
}
