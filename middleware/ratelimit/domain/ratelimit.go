package domain

// Camada de domínio do controle de admissão.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"errors"
	"time"
)

var (
	// ErrInvalidRule indica regra mal configurada (maxHits <= 0, janela <= 0, escopo vazio).
	// É fatal na inicialização: o serviço não deve subir com regra inválida.
	ErrInvalidRule = errors.New("ratelimit: invalid rule")

	// ErrInvalidRate indica uma declaração "{count} per {window}" que não pôde ser lida.
	ErrInvalidRate = errors.New("ratelimit: invalid rate declaration")

	// ErrStoreCorruption indica violação de invariante no CounterStore
	// (ex.: contador negativo). A avaliação deve falhar fechada.
	ErrStoreCorruption = errors.New("ratelimit: counter store corruption")
)

// ClientKey identifica o cliente (IP normalizado, API key...). Igualdade é exata.
type ClientKey string

// RouteID identifica a rota (ex.: "POST /tasks").
type RouteID string

// Verdict é o resultado de uma avaliação.
type Verdict struct {
	Admitted bool

	// Rule é a primeira regra violada (ordem de registro). Nil quando admitido.
	Rule *Rule

	// RetryAfter é o tempo até a janela da regra violada terminar.
	RetryAfter time.Duration

	// Limit/Remaining descrevem o orçamento mais apertado após a admissão
	// (para headers X-RateLimit-*). Zero quando não há regras.
	Limit     int64
	Remaining int64

	// Err é preenchido quando a avaliação foi abortada (ex.: ErrStoreCorruption).
	// Nesse caso Admitted é sempre false.
	Err error
}

// Admit monta um veredito de admissão.
func Admit(limit, remaining int64) Verdict {
	return Verdict{Admitted: true, Limit: limit, Remaining: remaining}
}

// Reject monta um veredito de rejeição pela regra r.
func Reject(r Rule, retryAfter time.Duration) Verdict {
	return Verdict{Rule: &r, RetryAfter: retryAfter, Limit: r.MaxHits}
}

// Failed monta um veredito de falha interna (fail closed).
func Failed(err error) Verdict {
	return Verdict{Err: err}
}

// CounterTx é a visão transacional do CounterStore para um único cliente.
// Todas as chamadas dentro de um Atomically são linearizáveis entre si.
type CounterTx interface {
	// Peek retorna a contagem na janela que contém now, sem efeito colateral.
	Peek(rule Rule, now time.Time) (int64, error)
	// RecordHit registra um hit e retorna a nova contagem.
	RecordHit(rule Rule, now time.Time) (int64, error)
	// WindowEnd retorna o fim da janela corrente da regra (now+window se não houver).
	WindowEnd(rule Rule, now time.Time) time.Time
}

// CounterStore mantém contadores de janela fixa por (cliente, regra).
//
// Implementações devem ser seguras para uso concorrente.
type CounterStore interface {
	Peek(key ClientKey, rule Rule, now time.Time) (int64, error)
	RecordHit(key ClientKey, rule Rule, now time.Time) (int64, error)

	// Atomically executa fn com acesso exclusivo a todas as entradas de key.
	Atomically(key ClientKey, fn func(tx CounterTx) error) error
}
