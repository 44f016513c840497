package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PurchasesStarted tracks purchase attempts per chain
	PurchasesStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditflow_purchases_started_total",
			Help: "Total number of purchase attempts",
		},
		[]string{"chain"},
	)

	// PurchasesCompleted tracks fully settled and credited purchases
	PurchasesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditflow_purchases_completed_total",
			Help: "Total number of completed purchases",
		},
		[]string{"chain"},
	)

	// PurchaseFailures tracks terminal failures per chain and cause
	PurchaseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditflow_purchase_failures_total",
			Help: "Total number of failed purchase attempts",
		},
		[]string{"chain", "reason"},
	)

	// PurchaseDuration tracks end-to-end purchase latency
	PurchaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creditflow_purchase_duration_seconds",
			Help:    "Purchase duration from order creation to completion",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"chain"},
	)

	// ReconcilePolls tracks balance reconciliation poll cycles
	ReconcilePolls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "creditflow_reconcile_polls_total",
			Help: "Total number of balance reconciliation polls",
		},
	)

	// ReconcileTimeouts tracks reconciliation loops that gave up
	ReconcileTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "creditflow_reconcile_timeouts_total",
			Help: "Total number of reconciliation loops ending without observing the credit",
		},
	)
)
