package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ScopeKind diz se a regra vale para todas as rotas ou só para uma.
type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota
	ScopeRoute
)

// Scope é o escopo de anexação de uma regra.
type Scope struct {
	Kind  ScopeKind
	Route RouteID
}

func GlobalScope() Scope { return Scope{Kind: ScopeGlobal} }

func RouteScope(route RouteID) Scope { return Scope{Kind: ScopeRoute, Route: route} }

func (s Scope) String() string {
	if s.Kind == ScopeGlobal {
		return "global"
	}
	return "route " + string(s.Route)
}

// RuleClass é usada apenas na mensagem de rejeição.
type RuleClass string

const (
	ClassBurst    RuleClass = "burst"
	ClassThrottle RuleClass = "throttle"
)

// burstWindowLimit: janelas estritamente menores que este valor são
// classificadas como burst quando a classe não é declarada. "20 per minute"
// já é throttle.
const burstWindowLimit = time.Minute

// ParseRuleClass aceita "", "burst" e "throttle" (case-insensitive).
func ParseRuleClass(s string) (RuleClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case string(ClassBurst):
		return ClassBurst, nil
	case string(ClassThrottle):
		return ClassThrottle, nil
	default:
		return "", fmt.Errorf("%w: unknown class %q", ErrInvalidRule, s)
	}
}

// RuleID identifica a regra dentro do RuleSet (atribuído no registro).
type RuleID string

// Rule é uma regra de janela fixa: no máximo MaxHits por Window.
// Imutável depois de registrada.
type Rule struct {
	ID      RuleID
	MaxHits int64
	Window  time.Duration
	Scope   Scope
	Class   RuleClass
}

// NewRule cria uma regra a partir de uma declaração "{count} per {window}".
func NewRule(scope Scope, decl string, class RuleClass) (Rule, error) {
	hits, window, err := ParseRate(decl)
	if err != nil {
		return Rule{}, err
	}
	r := Rule{MaxHits: hits, Window: window, Scope: scope, Class: class}
	return r, r.Validate()
}

// Validate verifica maxHits >= 1, window > 0 e escopo de rota não vazio.
func (r Rule) Validate() error {
	if r.MaxHits < 1 {
		return fmt.Errorf("%w: max hits must be >= 1, got %d", ErrInvalidRule, r.MaxHits)
	}
	if r.Window <= 0 {
		return fmt.Errorf("%w: window must be > 0, got %s", ErrInvalidRule, r.Window)
	}
	if r.Scope.Kind == ScopeRoute && strings.TrimSpace(string(r.Scope.Route)) == "" {
		return fmt.Errorf("%w: route scope requires a route id", ErrInvalidRule)
	}
	if r.Scope.Kind != ScopeGlobal && r.Scope.Kind != ScopeRoute {
		return fmt.Errorf("%w: unknown scope kind %d", ErrInvalidRule, r.Scope.Kind)
	}
	return nil
}

// EffectiveClass devolve a classe declarada ou a inferida pela janela.
func (r Rule) EffectiveClass() RuleClass {
	if r.Class != "" {
		return r.Class
	}
	if r.Window < burstWindowLimit {
		return ClassBurst
	}
	return ClassThrottle
}

func (r Rule) String() string {
	return fmt.Sprintf("%d per %s (%s, %s)", r.MaxHits, r.Window, r.Scope, r.EffectiveClass())
}

// ParseRate lê declarações como "5 per second", "5 per 10 seconds",
// "200 per day" ou "20/minute".
func ParseRate(decl string) (int64, time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(decl))
	var countPart, windowPart string
	if i := strings.Index(s, " per "); i >= 0 {
		countPart, windowPart = s[:i], s[i+len(" per "):]
	} else if i := strings.IndexByte(s, '/'); i >= 0 {
		countPart, windowPart = s[:i], s[i+1:]
	} else {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRate, decl)
	}

	count, err := strconv.ParseInt(strings.TrimSpace(countPart), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad count in %q", ErrInvalidRate, decl)
	}

	fields := strings.Fields(windowPart)
	mult := int64(1)
	switch len(fields) {
	case 1:
	case 2:
		mult, err = strconv.ParseInt(fields[0], 10, 64)
		if err != nil || mult < 1 {
			return 0, 0, fmt.Errorf("%w: bad window multiplier in %q", ErrInvalidRate, decl)
		}
		fields = fields[1:]
	default:
		return 0, 0, fmt.Errorf("%w: bad window in %q", ErrInvalidRate, decl)
	}

	unit, ok := windowUnit(fields[0])
	if !ok {
		return 0, 0, fmt.Errorf("%w: unknown window unit %q", ErrInvalidRate, fields[0])
	}
	if mult > math.MaxInt64/int64(unit) {
		return 0, 0, fmt.Errorf("%w: window overflows in %q", ErrInvalidRate, decl)
	}
	return count, time.Duration(mult) * unit, nil
}

func windowUnit(s string) (time.Duration, bool) {
	switch strings.TrimSuffix(s, "s") {
	case "second":
		return time.Second, true
	case "minute":
		return time.Minute, true
	case "hour":
		return time.Hour, true
	case "day":
		return 24 * time.Hour, true
	default:
		return 0, false
	}
}
