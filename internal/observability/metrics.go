package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpDurationHistogram  *prometheus.HistogramVec
	rateRefreshCounter     *prometheus.CounterVec
	rateFallbackCounter    *prometheus.CounterVec
	promoActivationCounter *prometheus.CounterVec
	orderTransitionCounter *prometheus.CounterVec
	ledgerImbalanceCounter *prometheus.CounterVec
	idempotencyCounter     *prometheus.CounterVec
	payoutQueueGauge       prometheus.Gauge
	workerRunCounter       *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		rateRefreshCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_rate_refresh_total",
			Help: "Exchange rate refresh attempts by outcome",
		}, []string{"result"})

		rateFallbackCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_rate_fallback_total",
			Help: "Conversions served from the static fallback table",
		}, []string{"currency"})

		promoActivationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promo_activations_total",
			Help: "Promo code activation attempts by outcome",
		}, []string{"outcome"})

		orderTransitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Order status transitions",
		}, []string{"from", "to"})

		ledgerImbalanceCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_imbalance_total",
			Help: "Number of times balance reconciliation found a divergence",
		}, []string{"currency"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		payoutQueueGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "payout_pending_queue_size",
			Help: "Current number of payout requests awaiting review",
		})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			rateRefreshCounter,
			rateFallbackCounter,
			promoActivationCounter,
			orderTransitionCounter,
			ledgerImbalanceCounter,
			idempotencyCounter,
			payoutQueueGauge,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementRateRefresh(result string) {
	if rateRefreshCounter == nil {
		return
	}
	rateRefreshCounter.WithLabelValues(result).Inc()
}

func IncrementRateFallback(currency string) {
	if rateFallbackCounter == nil {
		return
	}
	rateFallbackCounter.WithLabelValues(currency).Inc()
}

func IncrementPromoActivation(outcome string) {
	if promoActivationCounter == nil {
		return
	}
	promoActivationCounter.WithLabelValues(outcome).Inc()
}

func IncrementOrderTransition(from, to string) {
	if orderTransitionCounter == nil {
		return
	}
	orderTransitionCounter.WithLabelValues(from, to).Inc()
}

func IncrementLedgerImbalance(currency string) {
	if ledgerImbalanceCounter == nil {
		return
	}
	ledgerImbalanceCounter.WithLabelValues(currency).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func SetPayoutQueueSize(size int64) {
	if payoutQueueGauge == nil {
		return
	}
	payoutQueueGauge.Set(float64(size))
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
