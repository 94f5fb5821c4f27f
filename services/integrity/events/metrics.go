// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

var (
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "integrity",
		Subsystem: "events",
		Name:      "notifications_total",
		Help:      "Raw graph notifications seen by the classifier",
	}, []string{"kind"})

	classifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "integrity",
		Subsystem: "events",
		Name:      "classified_total",
		Help:      "Classified events by kind",
	}, []string{"kind", "implicit"})
)

func recordClassified(n model.Notification, out []Event) {
	notificationsTotal.WithLabelValues(n.Kind.String()).Inc()
	for _, e := range out {
		implicit := "false"
		if e.Implicit {
			implicit = "true"
		}
		classifiedTotal.WithLabelValues(e.Kind.String(), implicit).Inc()
	}
}
