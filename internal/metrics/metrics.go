// Package metrics collects and exposes Prometheus metrics for the API.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the subset of collection operations used by the service
// and handler layers.
type Recorder interface {
	RecordHTTPStatus(statusCode int)
	RecordLoanDecision(decision string)
	RecordLoginFailure()
}

// Collector implements Recorder backed by Prometheus counters.
type Collector struct {
	httpStatus    *prometheus.CounterVec
	loanDecisions *prometheus.CounterVec
	loginFailures prometheus.Counter
}

// NewCollector constructs a Collector and registers its metrics on the
// given registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booklend_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		loanDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booklend_loan_decisions_total",
			Help: "Borrow lifecycle transitions by decision.",
		}, []string{"decision"}),
		loginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booklend_login_failures_total",
			Help: "Failed login attempts.",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.loanDecisions,
		c.loginFailures,
	)

	return c
}

// RecordHTTPStatus counts a response by status code.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordLoanDecision counts an approve/deny/return transition.
func (c *Collector) RecordLoanDecision(decision string) {
	c.loanDecisions.WithLabelValues(decision).Inc()
}

// RecordLoginFailure counts a failed login attempt.
func (c *Collector) RecordLoginFailure() {
	c.loginFailures.Inc()
}

// Handler returns the Prometheus scrape handler for the gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// Middleware counts every response by status code.
func Middleware(recorder Recorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)
			recorder.RecordHTTPStatus(rec.statusCode)
		})
	}
}
