package application

import (
	"fmt"
	"sort"

	"task-service/middleware/ratelimit/domain"
)

// RuleSet guarda as regras registradas e resolve quais valem para cada rota.
//
// A resolução é aditiva: uma rota está sujeita a todas as regras globais e a
// todas as regras registradas para ela, na ordem de registro. Não há
// sobrescrita de regras globais por regras de rota.
type RuleSet struct {
	rules  []domain.Rule
	global []domain.Rule
	routes map[domain.RouteID][]domain.Rule
}

// NewRuleSet valida e registra as regras na ordem recebida.
//
// Regras sem ID recebem "global/<i>" ou "route/<rota>/<i>", com i = posição no
// registro. Qualquer regra inválida (ou ID repetido) impede a construção.
func NewRuleSet(rules ...domain.Rule) (*RuleSet, error) {
	rs := &RuleSet{
		rules:  make([]domain.Rule, 0, len(rules)),
		routes: make(map[domain.RouteID][]domain.Rule),
	}
	seen := make(map[domain.RuleID]struct{}, len(rules))

	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule #%d (%s): %w", i, r.Scope, err)
		}
		if r.ID == "" {
			r.ID = defaultRuleID(r.Scope, i)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate rule id %q", domain.ErrInvalidRule, r.ID)
		}
		seen[r.ID] = struct{}{}
		rs.rules = append(rs.rules, r)
	}

	// pré-calcula global ∪ rota mantendo a ordem de registro
	for _, r := range rs.rules {
		if r.Scope.Kind == domain.ScopeGlobal {
			rs.global = append(rs.global, r)
		}
	}
	for _, r := range rs.rules {
		if r.Scope.Kind != domain.ScopeRoute {
			continue
		}
		if _, done := rs.routes[r.Scope.Route]; done {
			continue
		}
		rs.routes[r.Scope.Route] = rs.resolve(r.Scope.Route)
	}
	return rs, nil
}

func defaultRuleID(s domain.Scope, i int) domain.RuleID {
	if s.Kind == domain.ScopeGlobal {
		return domain.RuleID(fmt.Sprintf("global/%d", i))
	}
	return domain.RuleID(fmt.Sprintf("route/%s/%d", s.Route, i))
}

func (rs *RuleSet) resolve(route domain.RouteID) []domain.Rule {
	var out []domain.Rule
	for _, r := range rs.rules {
		if r.Scope.Kind == domain.ScopeGlobal || r.Scope.Route == route {
			out = append(out, r)
		}
	}
	return out
}

// RulesFor devolve as regras aplicáveis a route, em ordem de registro.
// O slice devolvido é compartilhado e não deve ser modificado.
func (rs *RuleSet) RulesFor(route domain.RouteID) []domain.Rule {
	if rs == nil {
		return nil
	}
	if rules, ok := rs.routes[route]; ok {
		return rules
	}
	return rs.global
}

// Len é o total de regras registradas.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Rules devolve uma cópia de todas as regras, em ordem de registro.
func (rs *RuleSet) Rules() []domain.Rule {
	if rs == nil {
		return nil
	}
	return append([]domain.Rule(nil), rs.rules...)
}

// Routes lista (ordenado) as rotas que têm regras próprias.
func (rs *RuleSet) Routes() []domain.RouteID {
	if rs == nil {
		return nil
	}
	out := make([]domain.RouteID, 0, len(rs.routes))
	for r := range rs.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
