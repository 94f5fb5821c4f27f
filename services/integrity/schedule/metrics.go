// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schedule

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	marksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "integrity",
		Subsystem: "schedule",
		Name:      "marks_total",
		Help:      "Top objects moved from clean to pending, by reason",
	}, []string{"reason"})

	dedupTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "integrity",
		Subsystem: "schedule",
		Name:      "dedup_total",
		Help:      "Marks absorbed because the top object was already pending",
	}, []string{"reason"})

	staleHoldersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "integrity",
		Subsystem: "schedule",
		Name:      "stale_holders_total",
		Help:      "Holders skipped because they no longer resolve to a live node",
	})

	pendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "integrity",
		Subsystem: "schedule",
		Name:      "pending",
		Help:      "Top objects currently pending re-validation",
	})
)

func recordMark(r Reason, pending int) {
	marksTotal.WithLabelValues(string(r)).Inc()
	pendingGauge.Set(float64(pending))
}

func recordDedup(r Reason) {
	dedupTotal.WithLabelValues(string(r)).Inc()
}

func recordStale() {
	staleHoldersTotal.Inc()
}

func setPendingGauge(n int) {
	pendingGauge.Set(float64(n))
}
