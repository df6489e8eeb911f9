package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SimulationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vocmax_simulations_total",
			Help: "Total simulation runs by module model and outcome",
		},
		[]string{"model", "status"},
	)

	SimulationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vocmax_simulation_duration_seconds",
			Help:    "Wall time of a simulation run including the summary",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"model"},
	)

	TimestepsSimulated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vocmax_timesteps_simulated_total",
			Help: "Total weather timesteps evaluated",
		},
	)

	TimestepsExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vocmax_timesteps_excluded_total",
			Help: "Timesteps dropped from statistics",
		},
		[]string{"reason"},
	)

	WeatherFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vocmax_weather_fetch_total",
			Help: "Total weather file fetches",
		},
		[]string{"source", "status"},
	)

	WeatherFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vocmax_weather_fetch_latency_seconds",
			Help:    "Weather file fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	WeatherRecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vocmax_weather_records_ingested_total",
			Help: "Total weather records stored",
		},
		[]string{"source"},
	)

	SitesIndexed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vocmax_sites_indexed",
			Help: "Sites in the current weather index",
		},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vocmax_cache_requests_total",
			Help: "Summary cache lookups by result",
		},
		[]string{"result"},
	)
)
