// Package metrics records prometheus request metrics for compiled
// controllers, either as a single instrumenting step or as a Tee/TeePost
// pair placed around a member chain.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/ark7/a7router/pkg/web/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type startKey struct{}

// Metrics holds the prometheus collectors for handler requests.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	registry        *prometheus.Registry
}

// New creates Metrics registered on registry. A nil registry gets a fresh
// one, so several instances never collide.
func New(namespace string, registry *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = "a7router"
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{registry: registry}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of handled requests",
		},
		[]string{"handler", "method", "code"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"handler", "method", "code"},
	)

	m.inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of requests being served",
		},
	)

	registry.MustRegister(m.requestsTotal, m.requestDuration, m.inFlight)

	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe records a completed request.
func (m *Metrics) Observe(handler, method string, code int, duration time.Duration) {
	if handler == "" {
		handler = "unknown"
	}
	codeStr := strconv.Itoa(code)
	m.requestsTotal.WithLabelValues(handler, method, codeStr).Inc()
	m.requestDuration.WithLabelValues(handler, method, codeStr).Observe(duration.Seconds())
}

// Step instruments the rest of the chain, failed requests included. The
// code of a failed request is the status its error renders with.
func (m *Metrics) Step() middleware.Step {
	return func(c *middleware.Context, next middleware.Next) error {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		rec := m.record(c)
		err := next()

		code := rec.code()
		if err != nil && !rec.wroteHeader {
			code = statusOf(err)
		}
		m.Observe(c.Handler, c.Method(), code, time.Since(start))
		return err
	}
}

// Begin marks the start of a request. Pair it with Finish:
//
//	controller.Tee(m.Begin), ..., controller.TeePost(m.Finish)
//
// Finish only runs for requests whose chain succeeded.
func (m *Metrics) Begin(c *middleware.Context, _ middleware.Next) error {
	c.Set(startKey{}, time.Now())
	m.record(c)
	return nil
}

// Finish records a request started with Begin. Requests Begin never saw
// are ignored.
func (m *Metrics) Finish(c *middleware.Context, _ middleware.Next) error {
	start, ok := c.Value(startKey{}).(time.Time)
	if !ok {
		return nil
	}
	code := http.StatusOK
	if rec, ok := c.Value(recorderKey{}).(*statusRecorder); ok {
		code = rec.code()
	}
	m.Observe(c.Handler, c.Method(), code, time.Since(start))
	return nil
}

type recorderKey struct{}

// record installs a status recorder on the context writer, reusing one
// already in place.
func (m *Metrics) record(c *middleware.Context) *statusRecorder {
	if rec, ok := c.Value(recorderKey{}).(*statusRecorder); ok {
		return rec
	}
	rec := &statusRecorder{ResponseWriter: c.Writer}
	if c.Writer != nil {
		c.Writer = rec
	}
	c.Set(recorderKey{}, rec)
	return rec
}

func statusOf(err error) int {
	var he *router.HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return http.StatusInternalServerError
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) code() int {
	if !r.wroteHeader {
		return http.StatusOK
	}
	return r.status
}

// Unwrap lets http.ResponseController reach the underlying writer
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack hands the connection over for protocol upgrades
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, rw, err := http.NewResponseController(r.ResponseWriter).Hijack()
	if err == nil && !r.wroteHeader {
		r.status = http.StatusSwitchingProtocols
		r.wroteHeader = true
	}
	return conn, rw, err
}
