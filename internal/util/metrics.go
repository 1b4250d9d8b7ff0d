package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_created_total",
		Help: "Total number of sales committed",
	})

	SalesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_failed_total",
		Help: "Total number of rejected or failed sales",
	}, []string{"reason"})

	PaymentsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Total number of payments recorded against sales",
	})

	PaymentsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_rejected_total",
		Help: "Total number of rejected payment attempts",
	}, []string{"reason"})

	RefundRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refund_requests_total",
		Help: "Total number of refund requests created",
	})

	RefundsApprovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refunds_approved_total",
		Help: "Total number of refund requests approved and executed",
	})

	RefundsDeclinedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refunds_declined_total",
		Help: "Total number of refund requests declined",
	})

	StockDeductionsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_deductions_failed_total",
		Help: "Total number of sales aborted by insufficient stock",
	})

	SaleCommitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sale_commit_latency_seconds",
		Help:    "Latency of the sale creation transaction",
		Buckets: prometheus.DefBuckets,
	})

	RefundApprovalLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "refund_approval_latency_seconds",
		Help:    "Latency of the refund approval transaction",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
