// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records cycle, account and HTTP activity.
type Collector struct {
	periodToggles  *prometheus.CounterVec
	symptomToggles *prometheus.CounterVec
	registrations  *prometheus.CounterVec
	logins         *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		periodToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cycletracker_period_toggles_total",
			Help: "Target-day toggles by resulting state.",
		}, []string{"state"}),
		symptomToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cycletracker_symptom_toggles_total",
			Help: "Symptom toggle requests by outcome.",
		}, []string{"outcome"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cycletracker_registrations_total",
			Help: "Completed registrations by account type.",
		}, []string{"type"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cycletracker_logins_total",
			Help: "Password logins by outcome.",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cycletracker_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.periodToggles,
		c.symptomToggles,
		c.registrations,
		c.logins,
		c.httpStatus,
	)
	return c
}

// RecordPeriodToggle counts a target-day toggle.
func (c *Collector) RecordPeriodToggle(marked bool) {
	state := "unmarked"
	if marked {
		state = "marked"
	}
	c.periodToggles.WithLabelValues(state).Inc()
}

// RecordSymptomToggle counts a symptom toggle; rejected means an unknown symptom id.
func (c *Collector) RecordSymptomToggle(accepted bool) {
	c.symptomToggles.WithLabelValues(outcome(accepted, "accepted", "rejected")).Inc()
}

// RecordRegistration counts a completed registration.
func (c *Collector) RecordRegistration(accountType string) {
	c.registrations.WithLabelValues(accountType).Inc()
}

// RecordLogin counts a password login attempt.
func (c *Collector) RecordLogin(success bool) {
	c.logins.WithLabelValues(outcome(success, "success", "failure")).Inc()
}

// RecordHTTPStatus counts a response status code.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
