package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Singleton collector
	collector     *Collector
	collectorOnce sync.Once
)

// Collector holds all exchange metrics
type Collector struct {
	// Order metrics
	OrdersTotal     *prometheus.CounterVec
	OrderRejections *prometheus.CounterVec
	OrdersResting   prometheus.Gauge

	// Matching engine metrics
	MatchingLatency *prometheus.HistogramVec

	// Trade metrics
	TradesTotal *prometheus.CounterVec
	TradeVolume *prometheus.CounterVec

	// Bulk transaction metrics
	BulkBatchesTotal *prometheus.CounterVec
	BulkBatchSize    prometheus.Histogram

	// Snapshot metrics
	SnapshotWritesTotal  prometheus.Counter
	SnapshotWriteErrors  prometheus.Counter
	SnapshotWriteLatency prometheus.Histogram

	// WebSocket metrics
	WSConnectionsActive *prometheus.GaugeVec
	WSMessagesTotal     *prometheus.CounterVec
	WSSubscribersLost   *prometheus.CounterVec

	// API metrics
	APIRequestsTotal  *prometheus.CounterVec
	APIRequestLatency *prometheus.HistogramVec

	// System metrics
	RegisteredUsers prometheus.Gauge
}

// GetCollector returns the singleton metrics collector
func GetCollector() *Collector {
	collectorOnce.Do(func() {
		collector = newCollector()
	})
	return collector
}

func newCollector() *Collector {
	c := &Collector{}

	c.OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hourex",
			Subsystem: "orders",
			Name:      "total",
			Help:      "Total number of orders submitted",
		},
		[]string{"side", "execution_type", "status"},
	)

	c.OrderRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hourex",
			Subsystem: "orders",
			Name:      "rejections_total",
			Help:      "Orders rejected at admission, by gate",
		},
		[]string{"reason"},
	)

	c.OrdersResting = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hourex",
			Subsystem: "orders",
			Name:      "resting",
			Help:      "Number of orders currently resting on the book",
		},
	)

	c.MatchingLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hourex",
			Subsystem: "matching",
			Name:      "latency_ms",
			Help:      "Matching engine latency in milliseconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50},
		},
		[]string{"operation"},
	)

	c.TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hourex",
			Subsystem: "trades",
			Name:      "total",
			Help:      "Total number of trades executed",
		},
		[]string{"source"},
	)

	c.TradeVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hourex",
			Subsystem: "trades",
			Name:      "volume",
			Help:      "Total traded quantity",
		},
		[]string{"source"},
	)

	c.BulkBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hourex",
			Subsystem: "bulk",
			Name:      "batches_total",
			Help:      "Bulk batches processed, by outcome",
		},
		[]string{"outcome"},
	)

	c.BulkBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hourex",
			Subsystem: "bulk",
			Name:      "batch_size",
			Help:      "Operations per bulk batch",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	c.SnapshotWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hourex",
			Subsystem: "snapshot",
			Name:      "writes_total",
			Help:      "Snapshot files written",
		},
	)

	c.SnapshotWriteErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hourex",
			Subsystem: "snapshot",
			Name:      "write_errors_total",
			Help:      "Snapshot writes that failed",
		},
	)

	c.SnapshotWriteLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hourex",
			Subsystem: "snapshot",
			Name:      "write_latency_ms",
			Help:      "Snapshot write latency in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	c.WSConnectionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hourex",
			Subsystem: "websocket",
			Name:      "connections_active",
			Help:      "Number of active WebSocket connections",
		},
		[]string{"channel"},
	)

	c.WSMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hourex",
			Subsystem: "websocket",
			Name:      "messages_total",
			Help:      "Total WebSocket messages sent",
		},
		[]string{"channel"},
	)

	c.WSSubscribersLost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hourex",
			Subsystem: "websocket",
			Name:      "subscribers_lost_total",
			Help:      "Subscribers dropped for falling behind",
		},
		[]string{"channel"},
	)

	c.APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hourex",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total API requests",
		},
		[]string{"method", "path", "status"},
	)

	c.APIRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hourex",
			Subsystem: "api",
			Name:      "request_latency_ms",
			Help:      "API request latency in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"method", "path"},
	)

	c.RegisteredUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hourex",
			Subsystem: "system",
			Name:      "registered_users",
			Help:      "Number of registered users",
		},
	)

	c.registerAll()

	return c
}

func (c *Collector) registerAll() {
	prometheus.MustRegister(c.OrdersTotal)
	prometheus.MustRegister(c.OrderRejections)
	prometheus.MustRegister(c.OrdersResting)

	prometheus.MustRegister(c.MatchingLatency)

	prometheus.MustRegister(c.TradesTotal)
	prometheus.MustRegister(c.TradeVolume)

	prometheus.MustRegister(c.BulkBatchesTotal)
	prometheus.MustRegister(c.BulkBatchSize)

	prometheus.MustRegister(c.SnapshotWritesTotal)
	prometheus.MustRegister(c.SnapshotWriteErrors)
	prometheus.MustRegister(c.SnapshotWriteLatency)

	prometheus.MustRegister(c.WSConnectionsActive)
	prometheus.MustRegister(c.WSMessagesTotal)
	prometheus.MustRegister(c.WSSubscribersLost)

	prometheus.MustRegister(c.APIRequestsTotal)
	prometheus.MustRegister(c.APIRequestLatency)

	prometheus.MustRegister(c.RegisteredUsers)
}

// ============ Recording Helpers ============

// RecordOrder records an admitted order's outcome
func (c *Collector) RecordOrder(side, executionType, status string) {
	c.OrdersTotal.WithLabelValues(side, executionType, status).Inc()
}

// RecordRejection records an admission failure
func (c *Collector) RecordRejection(reason string) {
	c.OrderRejections.WithLabelValues(reason).Inc()
}

// RecordTrade records a trade event
func (c *Collector) RecordTrade(source string, quantity int64) {
	c.TradesTotal.WithLabelValues(source).Inc()
	c.TradeVolume.WithLabelValues(source).Add(float64(quantity))
}

// RecordMatchingLatency records matching engine latency
func (c *Collector) RecordMatchingLatency(operation string, latencyMs float64) {
	c.MatchingLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordBulkBatch records a bulk batch outcome
func (c *Collector) RecordBulkBatch(outcome string, size int) {
	c.BulkBatchesTotal.WithLabelValues(outcome).Inc()
	c.BulkBatchSize.Observe(float64(size))
}

// RecordSnapshotWrite records a snapshot write attempt
func (c *Collector) RecordSnapshotWrite(latencyMs float64, err error) {
	if err != nil {
		c.SnapshotWriteErrors.Inc()
		return
	}
	c.SnapshotWritesTotal.Inc()
	c.SnapshotWriteLatency.Observe(latencyMs)
}

// RecordAPIRequest records an API request
func (c *Collector) RecordAPIRequest(method, path, status string, latencyMs float64) {
	c.APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.APIRequestLatency.WithLabelValues(method, path).Observe(latencyMs)
}

// RecordWSConnection records WebSocket connection changes
func (c *Collector) RecordWSConnection(channel string, delta int) {
	c.WSConnectionsActive.WithLabelValues(channel).Add(float64(delta))
}

// RecordWSMessage records a WebSocket message
func (c *Collector) RecordWSMessage(channel string) {
	c.WSMessagesTotal.WithLabelValues(channel).Inc()
}

// RecordWSSubscriberLost records a subscriber dropped for falling behind
func (c *Collector) RecordWSSubscriberLost(channel string) {
	c.WSSubscribersLost.WithLabelValues(channel).Inc()
}

// ============ HTTP Handler ============

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for measuring latency
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ElapsedMs returns the elapsed time in milliseconds
func (t *Timer) ElapsedMs() float64 {
	return float64(time.Since(t.start).Microseconds()) / 1000.0
}
