package metrics

import (
	"github.com/layer-3/fluxauth/ports"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fluxauth"

// Collector records protocol activity as Prometheus metrics.
type Collector struct {
	phrases *prometheus.CounterVec
	logins  *prometheus.CounterVec
	logouts *prometheus.CounterVec
	removed *prometheus.CounterVec
	waiters *prometheus.GaugeVec
}

var _ ports.Metrics = (*Collector)(nil)

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		phrases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phrases_issued_total",
			Help:      "Login phrases issued, by kind.",
		}, []string{"kind"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login verifications, by outcome.",
		}, []string{"outcome"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Logout requests, by scope.",
		}, []string{"scope"}),
		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_removed_total",
			Help:      "Sessions removed by logouts, by scope.",
		}, []string{"scope"}),
		waiters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_waiters",
			Help:      "Open long-poll channels, by channel.",
		}, []string{"channel"}),
	}

	for _, col := range []prometheus.Collector{c.phrases, c.logins, c.logouts, c.removed, c.waiters} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) PhraseIssued(kind string) {
	c.phrases.WithLabelValues(kind).Inc()
}

func (c *Collector) LoginAttempt(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) Logout(scope ports.LogoutScope, removed int) {
	c.logouts.WithLabelValues(string(scope)).Inc()
	c.removed.WithLabelValues(string(scope)).Add(float64(removed))
}

func (c *Collector) WaiterStarted(channel string) {
	c.waiters.WithLabelValues(channel).Inc()
}

func (c *Collector) WaiterFinished(channel string) {
	c.waiters.WithLabelValues(channel).Dec()
}
