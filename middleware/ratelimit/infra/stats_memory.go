package infra

import (
	"context"
	"sync"

	"task-service/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed  int64 `json:"allowed"`
	Denied   int64 `json:"denied"`
	Burst    int64 `json:"burst_denied"`
	Throttle int64 `json:"throttle_denied"`
}

func (c *Counters) add(ev domain.StatsEvent) {
	if ev.Allowed {
		c.Allowed++
		return
	}
	c.Denied++
	switch ev.Class {
	case domain.ClassBurst:
		c.Burst++
	case domain.ClassThrottle:
		c.Throttle++
	}
}

// MemoryStatsStore guarda contadores de admissão em memória.
// Útil para testes, desenvolvimento e para o endpoint de inspeção.
//
// Não faz expiração: a cardinalidade de byRoute é limitada pelas rotas
// registradas; byKey só é preenchido com WithTrackKeys(true).
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[domain.RouteID]Counters
	byKey   map[domain.ClientKey]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[domain.RouteID]Counters),
		byKey:   make(map[domain.ClientKey]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)

	c := s.byRoute[ev.Route]
	c.add(ev)
	s.byRoute[ev.Route] = c

	if s.trackKeys {
		k := s.byKey[ev.Key]
		k.add(ev)
		s.byKey[ev.Key] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[domain.RouteID]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.RouteID]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[domain.ClientKey]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.ClientKey]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}
