package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherqueries_provider_calls_total",
			Help: "Total external weather provider calls",
		},
		[]string{"provider", "endpoint", "status"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherqueries_provider_latency_seconds",
			Help:    "External provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "endpoint"},
	)

	QueryMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherqueries_query_mutations_total",
			Help: "Query create/update/delete operations by result",
		},
		[]string{"op", "result"},
	)

	ObservationsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherqueries_observations_stored_total",
			Help: "Total observation rows written",
		},
	)

	LocationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherqueries_locations_created_total",
			Help: "Locations inserted because no stored location matched",
		},
	)
)
