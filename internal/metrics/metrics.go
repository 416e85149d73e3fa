// Package metrics exposes normalization counters on a private Prometheus registry.
package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jsnorm "github.com/reoring/jsnorm"
	"github.com/reoring/jsnorm/middleware"
)

// Service implements middleware.Recorder.
type Service struct {
	registry   *prom.Registry
	normalized *prom.CounterVec
	stripped   *prom.CounterVec
	defaults   *prom.CounterVec
}

// New registers the jsnorm collectors, plus Go runtime and process collectors.
func New() *Service {
	s := &Service{
		registry: prom.NewRegistry(),
		normalized: prom.NewCounterVec(prom.CounterOpts{
			Name: "jsnorm_normalized_total",
			Help: "Write requests seen by the normalizer, by collection and outcome.",
		}, []string{"collection", "outcome"}),
		stripped: prom.NewCounterVec(prom.CounterOpts{
			Name: "jsnorm_fields_stripped_total",
			Help: "readOnly values discarded from payloads.",
		}, []string{"collection"}),
		defaults: prom.NewCounterVec(prom.CounterOpts{
			Name: "jsnorm_defaults_applied_total",
			Help: "Schema defaults injected into payloads.",
		}, []string{"collection"}),
	}
	s.registry.MustRegister(
		s.normalized, s.stripped, s.defaults,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

// Observe records one request. Field counters come from res.Presence and stay
// untouched when presence was not collected.
func (s *Service) Observe(collection, outcome string, res jsnorm.Normalized) {
	s.normalized.WithLabelValues(collection, outcome).Inc()
	if outcome != middleware.OutcomeNormalized || res.Presence == nil {
		return
	}
	if n := len(res.Presence.Paths(jsnorm.PresenceReadOnlyStripped)); n > 0 {
		s.stripped.WithLabelValues(collection).Add(float64(n))
	}
	if n := len(res.Presence.Paths(jsnorm.PresenceDefaultApplied)); n > 0 {
		s.defaults.WithLabelValues(collection).Add(float64(n))
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (s *Service) Registry() *prom.Registry { return s.registry }

// Handler serves the registry in the Prometheus exposition format.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

var _ middleware.Recorder = (*Service)(nil)
