package clverify

import (
	"github.com/prometheus/client_golang/prometheus"

	"clverify/verifier"
)

type metrics struct {
	registry      *prometheus.Registry
	verifications *prometheus.CounterVec
	nonces        prometheus.Counter
}

func newMetrics(open func() float64) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clverify",
			Name:      "verifications_total",
			Help:      "Proof verifications by proof kind and outcome.",
		}, []string{"kind", "result"}),
		nonces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clverify",
			Name:      "nonces_issued_total",
			Help:      "Nonces handed out.",
		}),
	}
	m.registry.MustRegister(
		m.verifications,
		m.nonces,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "clverify",
			Name:      "open_interactions",
			Help:      "Nonces issued and not yet consumed or expired.",
		}, open),
	)
	return m
}

// pluginHook logs verifier checkpoints and counts their outcomes.
type pluginHook struct {
	b *backend
}

func (h *pluginHook) Observe(e verifier.Event) {
	logger := h.b.Logger()

	switch e.Stage {
	case verifier.StageParams:
		logger.Trace("proof parameters computed", "kind", e.Kind, "issuer_keys", e.KeyIDs)
	case verifier.StageChallenge:
		result := "rejected"
		if e.Accepted {
			result = "accepted"
		}
		h.b.metrics.verifications.WithLabelValues(string(e.Kind), result).Inc()
		logger.Debug("challenge compared", "kind", e.Kind, "issuer_keys", e.KeyIDs, "result", result)
	case verifier.StageFailed:
		h.b.metrics.verifications.WithLabelValues(string(e.Kind), "malformed").Inc()
		logger.Warn("proof could not be interpreted", "kind", e.Kind, "issuer_keys", e.KeyIDs, "error", e.Err)
	}
}
