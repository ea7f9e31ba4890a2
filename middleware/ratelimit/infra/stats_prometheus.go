package infra

import (
	"context"

	"task-service/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStats expõe as decisões como admission_requests_total{route,outcome,class}.
type PrometheusStats struct {
	requests *prometheus.CounterVec
}

// NewPrometheusStats registra o contador em reg. Se reg for nil usa o registry padrão.
func NewPrometheusStats(reg prometheus.Registerer) (*PrometheusStats, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admission_requests_total",
		Help: "Admission control decisions by route, outcome and violated rule class.",
	}, []string{"route", "outcome", "class"})
	if err := reg.Register(requests); err != nil {
		return nil, err
	}
	return &PrometheusStats{requests: requests}, nil
}

func (p *PrometheusStats) Record(_ context.Context, ev domain.StatsEvent) error {
	outcome := "admitted"
	if !ev.Allowed {
		outcome = "rejected"
	}
	p.requests.WithLabelValues(string(ev.Route), outcome, string(ev.Class)).Inc()
	return nil
}

// TeeStats repassa o evento para todas as stores; devolve o primeiro erro.
type TeeStats []domain.StatsStore

func (t TeeStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var first error
	for _, s := range t {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	_ domain.StatsStore = (*PrometheusStats)(nil)
	_ domain.StatsStore = TeeStats(nil)
	_ domain.StatsStore = (*MemoryStatsStore)(nil)
	_ domain.StatsStore = (*RedisStatsStore)(nil)
)
