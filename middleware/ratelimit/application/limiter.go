package application

import (
	"fmt"
	"time"

	"task-service/middleware/ratelimit/domain"
)

// Limiter combina RuleSet e CounterStore numa decisão por requisição.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna um Verdict.
type Limiter struct {
	Rules *RuleSet
	Store domain.CounterStore
}

// Evaluate decide se a requisição de key em route é admitida em now.
//
// Primeiro lê todas as regras (sem efeito colateral); se alguma estiver no
// limite, rejeita pela primeira em ordem de registro e nada é contado. Caso
// contrário registra o hit em todas. As duas fases rodam sob o mesmo
// Atomically, então a admissão é tudo-ou-nada e linearizável por cliente.
//
// Erro do store (ex.: contador corrompido) gera um Verdict com Err e
// Admitted=false: falha fechada.
func (l Limiter) Evaluate(key domain.ClientKey, route domain.RouteID, now time.Time) domain.Verdict {
	if l.Store == nil {
		return domain.Admit(0, 0)
	}
	rules := l.Rules.RulesFor(route)
	if len(rules) == 0 {
		return domain.Admit(0, 0)
	}

	var verdict domain.Verdict
	err := l.Store.Atomically(key, func(tx domain.CounterTx) error {
		violated := -1
		for i, r := range rules {
			current, err := tx.Peek(r, now)
			if err != nil {
				return err
			}
			if violated < 0 && current >= r.MaxHits {
				violated = i
			}
		}
		if violated >= 0 {
			r := rules[violated]
			verdict = domain.Reject(r, tx.WindowEnd(r, now).Sub(now))
			return nil
		}

		// orçamento mais apertado após o hit, para os headers
		var limit, remaining int64 = 0, -1
		for _, r := range rules {
			n, err := tx.RecordHit(r, now)
			if err != nil {
				return err
			}
			if left := r.MaxHits - n; remaining < 0 || left < remaining {
				limit, remaining = r.MaxHits, left
			}
		}
		verdict = domain.Admit(limit, remaining)
		return nil
	})
	if err != nil {
		return domain.Failed(fmt.Errorf("evaluate %q on %q: %w", key, route, err))
	}
	return verdict
}
