package http

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cacheMetricsMu          sync.Mutex
	cacheMetricsInitialized bool

	cacheHitCounter   *prometheus.CounterVec
	cacheMissCounter  *prometheus.CounterVec
	vmBuildHistogram  *prometheus.HistogramVec
	cacheMetricsError error
)

// SetupCacheMetrics registers Prometheus metrics observing the statement
// view-model cache. The registration is performed once and subsequent
// calls are ignored.
func SetupCacheMetrics(reg prometheus.Registerer) error {
	cacheMetricsMu.Lock()
	defer cacheMetricsMu.Unlock()
	if cacheMetricsInitialized {
		return cacheMetricsError
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cacheHitCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_statement_cache_hits_total",
		Help: "Number of cache hits for statement view models.",
	}, []string{"statement", "period"})
	cacheMissCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_statement_cache_miss_total",
		Help: "Number of cache misses for statement view models.",
	}, []string{"statement", "period"})
	vmBuildHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_statement_build_duration_seconds",
		Help:    "Duration required to build statement view models.",
		Buckets: prometheus.DefBuckets,
	}, []string{"statement", "period"})

	for _, collector := range []prometheus.Collector{cacheHitCounter, cacheMissCounter, vmBuildHistogram} {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				switch c := already.ExistingCollector.(type) {
				case *prometheus.CounterVec:
					if collector == cacheHitCounter {
						cacheHitCounter = c
					} else {
						cacheMissCounter = c
					}
				case *prometheus.HistogramVec:
					vmBuildHistogram = c
				default:
					cacheMetricsError = fmt.Errorf("statement cache metrics: unexpected collector type %T", c)
				}
				continue
			}
			cacheMetricsError = err
			cacheHitCounter = nil
			cacheMissCounter = nil
			vmBuildHistogram = nil
			cacheMetricsInitialized = true
			return cacheMetricsError
		}
	}

	cacheMetricsInitialized = true
	return cacheMetricsError
}

func recordCacheHit(statementType, period string) {
	if cacheHitCounter == nil {
		return
	}
	cacheHitCounter.WithLabelValues(statementType, period).Inc()
}

func recordCacheMiss(statementType, period string) {
	if cacheMissCounter == nil {
		return
	}
	cacheMissCounter.WithLabelValues(statementType, period).Inc()
}

func observeBuildDuration(statementType, period string, duration time.Duration) {
	if vmBuildHistogram == nil {
		return
	}
	vmBuildHistogram.WithLabelValues(statementType, period).Observe(duration.Seconds())
}
