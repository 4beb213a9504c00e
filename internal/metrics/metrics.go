package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the POS collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	salesCreated  prometheus.Counter
	saleFailures  *prometheus.CounterVec
	saleAmount    prometheus.Histogram
	totalDrift    prometheus.Counter
	scans         *prometheus.CounterVec
	lowStock      prometheus.Counter
	barcodes      prometheus.Counter
	httpDurations *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		salesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sales_created_total",
			Help: "Sales committed.",
		}),
		saleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_sale_failures_total",
			Help: "Sale attempts rejected, by reason.",
		}, []string{"reason"}),
		saleAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pos_sale_total_amount",
			Help:    "Grand total of committed sales.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		totalDrift: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sale_total_drift_total",
			Help: "Sales whose client-declared totals differed from the computed totals.",
		}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_barcode_scans_total",
			Help: "Barcode lookups, by result.",
		}, []string{"result"}),
		lowStock: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_low_stock_signals_total",
			Help: "Scans that resolved to a product at or below its minimum quantity.",
		}),
		barcodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_barcodes_issued_total",
			Help: "Barcodes issued to new products.",
		}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.salesCreated, m.saleFailures, m.saleAmount, m.totalDrift, m.scans, m.lowStock, m.barcodes, m.httpDurations)
	return m
}

func (m *Metrics) SaleCreated(total float64) {
	if m == nil {
		return
	}
	m.salesCreated.Inc()
	m.saleAmount.Observe(total)
}

func (m *Metrics) SaleFailed(reason string) {
	if m == nil {
		return
	}
	m.saleFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *Metrics) TotalDrift() {
	if m == nil {
		return
	}
	m.totalDrift.Inc()
}

func (m *Metrics) Scan(result string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) LowStockSignal() {
	if m == nil {
		return
	}
	m.lowStock.Inc()
}

func (m *Metrics) BarcodeIssued() {
	if m == nil {
		return
	}
	m.barcodes.Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpDurations.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
