// Package metrics defines all custom Prometheus metrics for the billing
// API. It is the single source of truth for metric names, labels, and help
// strings; promauto registers everything with the default registry at
// package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "billing"

// ── Rate resolution metrics ──────────────────────────────────────────────────

// RateResolutionsTotal counts successful rate resolutions.
// Labels:
//   - source: the hierarchy tier that supplied the rate (project, client,
//     user, role, global)
//   - multiplier: applied multiplier type (holiday, weekend, overtime, none)
var RateResolutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_resolutions_total",
		Help:      "Total number of successful rate resolutions, by source tier and multiplier.",
	},
	[]string{"source", "multiplier"},
)

// RateResolutionErrorsTotal counts failed resolutions.
// Label:
//   - reason: "not_found" (no tier matched) or "error"
var RateResolutionErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_resolution_errors_total",
		Help:      "Total number of rate resolutions that failed.",
	},
	[]string{"reason"},
)

// RateCacheTotal counts resolution cache lookups.
// Label:
//   - result: "hit" or "miss"
var RateCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_cache_total",
		Help:      "Total number of resolution cache lookups, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// ── Invoice workflow metrics ─────────────────────────────────────────────────

// InvoicesCreatedTotal counts newly created invoices.
// Label:
//   - period_type: "weekly", "monthly", "project_milestone", or "custom"
var InvoicesCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoices_created_total",
		Help:      "Total number of invoices created, by billing period type.",
	},
	[]string{"period_type"},
)

// InvoiceTransitionsTotal counts workflow transitions that were persisted.
// Label:
//   - to: the resulting status (e.g. "approved", "sent", "paid")
var InvoiceTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoice_transitions_total",
		Help:      "Total number of invoice status transitions, by resulting status.",
	},
	[]string{"to"},
)

// PaymentsRecordedTotal counts recorded payments.
var PaymentsRecordedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_recorded_total",
		Help:      "Total number of payments recorded against invoices.",
	},
)
