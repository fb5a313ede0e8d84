// Package obs holds the prometheus collectors shared across the service.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campaignops_sync_runs_total",
		Help: "Jira sync executions by outcome.",
	}, []string{"outcome"})

	SyncTicketsScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaignops_sync_tickets_scanned_total",
		Help: "Tickets walked by the Jira sync.",
	})

	ReportQueries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaignops_report_queries_total",
		Help: "Report endpoint invocations.",
	})

	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "campaignops_report_duration_seconds",
		Help:    "Wall time to filter, aggregate and page one report.",
		Buckets: prometheus.DefBuckets,
	})

	CSVRowsImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campaignops_csv_rows_total",
		Help: "CSV import rows by result.",
	}, []string{"result"})
)
