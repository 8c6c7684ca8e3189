package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the HTTP collectors of an application.
type Metrics struct {
	inFlight prometheus.Gauge
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the HTTP collectors with reg under namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
	}
	for _, c := range []prometheus.Collector{m.inFlight, m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// routeLabel is filled in by the matched route so outer middleware can
// label by template instead of raw path.
type routeLabel struct {
	template string
}

type routeLabelKey struct{}

func withRouteLabel(ctx context.Context) (context.Context, *routeLabel) {
	l := &routeLabel{template: "unmatched"}
	return context.WithValue(ctx, routeLabelKey{}, l), l
}

func setRouteLabel(r *http.Request, template string) {
	if l, ok := r.Context().Value(routeLabelKey{}).(*routeLabel); ok {
		l.template = template
	}
}

func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		ctx, label := withRouteLabel(r.Context())
		rw := wrap(w)
		next.ServeHTTP(rw, r.WithContext(ctx))

		m.requests.WithLabelValues(r.Method, label.template, strconv.Itoa(rw.status)).Inc()
		m.duration.WithLabelValues(r.Method, label.template).Observe(time.Since(start).Seconds())
	})
}
