package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics exposes Prometheus collectors for the donation and auth paths.
type Metrics struct {
	donations     *prometheus.CounterVec
	donatedAmount prometheus.Counter
	tokenFailures *prometheus.CounterVec
	denials       *prometheus.CounterVec
	logins        *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// New registers the collectors against registerer. When registerer is nil the
// default Prometheus registerer is used, once per process.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = build(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return build(registerer)
}

func build(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		donations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donations",
			Name:      "donate_requests_total",
			Help:      "Donation attempts by outcome.",
		}, []string{"outcome"}),
		donatedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "donations",
			Name:      "donated_amount_total",
			Help:      "Sum of committed donation amounts.",
		}),
		tokenFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donations",
			Name:      "token_verification_failures_total",
			Help:      "Rejected session tokens by resolution mode.",
		}, []string{"mode"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donations",
			Name:      "authorization_denials_total",
			Help:      "Authorization gate rejections by reason.",
		}, []string{"reason"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donations",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
	}
	registerer.MustRegister(m.donations, m.donatedAmount, m.tokenFailures, m.denials, m.logins)
	return m
}

// DonationCommitted records a successful donation.
func (m *Metrics) DonationCommitted(amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.donations.WithLabelValues("committed").Inc()
	m.donatedAmount.Add(amount.InexactFloat64())
}

// DonationRejected records a failed donation attempt with a short outcome label.
func (m *Metrics) DonationRejected(outcome string) {
	if m == nil {
		return
	}
	m.donations.WithLabelValues(outcome).Inc()
}

// TokenRejected records a token that failed resolution in the given mode.
func (m *Metrics) TokenRejected(mode string) {
	if m == nil {
		return
	}
	m.tokenFailures.WithLabelValues(mode).Inc()
}

// Denied records an authorization gate rejection.
func (m *Metrics) Denied(reason string) {
	if m == nil {
		return
	}
	m.denials.WithLabelValues(reason).Inc()
}

// Login records a login attempt.
func (m *Metrics) Login(success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.logins.WithLabelValues(outcome).Inc()
}
