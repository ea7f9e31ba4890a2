package ratelimit

import (
	"encoding/json"
	"net/http"

	"task-service/middleware/ratelimit/domain"
	"task-service/middleware/ratelimit/infra"
)

type statsResponse struct {
	Total   infra.Counters                      `json:"total"`
	ByRoute map[domain.RouteID]infra.Counters   `json:"by_route"`
	ByKey   map[domain.ClientKey]infra.Counters `json:"by_key,omitempty"`
}

// StatsHandler expõe um snapshot do MemoryStatsStore em JSON.
func StatsHandler(s *infra.MemoryStatsStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := statsResponse{Total: s.Total(), ByRoute: s.ByRoute(), ByKey: s.ByKey()}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(resp)
	})
}
