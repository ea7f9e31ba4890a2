// Package application contém os casos de uso do controle de admissão:
// resolução de regras (RuleSet), decisão por requisição (Limiter) e limite de
// concorrência.
//
// Depende apenas do pacote domain e não conhece net/http.
// Ex.: Limiter.Evaluate(key, route, now) retorna um domain.Verdict
// (admit/reject + retry-after).
package application
