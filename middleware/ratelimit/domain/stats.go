package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão do controle de admissão.
//
// Route é o RouteID avaliado (não o path bruto), o que mantém a cardinalidade
// limitada ao número de rotas registradas.
//
// Observação: Key pode explodir a cardinalidade em Redis/Prometheus; as
// implementações só a usam quando explicitamente configuradas.
type StatsEvent struct {
	Key     ClientKey
	Route   RouteID
	Allowed bool

	// Class é a classe da regra violada; vazio quando admitido.
	Class RuleClass

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas de admissão.
//
// O middleware trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
