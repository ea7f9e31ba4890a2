package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"task-service/middleware/ratelimit/application"
	"task-service/middleware/ratelimit/domain"
)

var (
	ErrUnsupportedFormat = errors.New("config: unsupported config format")
	ErrLoadFailed        = errors.New("config: failed to load config")
	ErrInvalidConfig     = errors.New("config: invalid config")
)

// Backends de estatística aceitos em stats.backend.
const (
	StatsMemory = "memory"
	StatsRedis  = "redis"
	StatsNone   = "none"
)

type Config struct {
	RateLimit   RateLimitConfig   `koanf:"ratelimit"`
	Concurrency ConcurrencyConfig `koanf:"concurrency"`
	Stats       StatsConfig       `koanf:"stats"`
}

type RateLimitConfig struct {
	KeyHeader    string        `koanf:"key_header"`
	TrustXFF     bool          `koanf:"trust_xff"`
	Headers      bool          `koanf:"headers"`
	CleanupEvery time.Duration `koanf:"cleanup_every"`
	Shards       int           `koanf:"shards"`

	// amostragem dos logs de rejeição (rate.Sometimes)
	LogFirst int           `koanf:"log_first"`
	LogEvery time.Duration `koanf:"log_every"`

	Global []LimitDecl            `koanf:"global"`
	Routes map[string][]LimitDecl `koanf:"routes"`
}

// LimitDecl é uma regra declarada: Limit no formato "{count} per {window}",
// Class opcional ("burst" | "throttle").
type LimitDecl struct {
	Limit string `koanf:"limit"`
	Class string `koanf:"class"`
}

type ConcurrencyConfig struct {
	Max     int           `koanf:"max"`
	Timeout time.Duration `koanf:"timeout"`
}

type StatsConfig struct {
	Backend string           `koanf:"backend"`
	Redis   RedisStatsConfig `koanf:"redis"`
}

type RedisStatsConfig struct {
	Addr      string        `koanf:"addr"`
	Password  string        `koanf:"password"`
	DB        int           `koanf:"db"`
	Prefix    string        `koanf:"prefix"`
	TTL       time.Duration `koanf:"ttl"`
	Bucket    string        `koanf:"bucket"`
	TrackKeys bool          `koanf:"track_keys"`
}

// Default devolve a configuração usada quando nenhum arquivo é informado.
func Default() Config {
	return Config{
		RateLimit: RateLimitConfig{
			Headers:      true,
			CleanupEvery: time.Minute,
			Shards:       64,
			LogFirst:     10,
			LogEvery:     time.Second,
			Global: []LimitDecl{
				{Limit: "200 per day"},
				{Limit: "50 per hour"},
			},
			Routes: map[string][]LimitDecl{
				"POST /tasks": {
					{Limit: "5 per 10 seconds", Class: string(domain.ClassBurst)},
					{Limit: "20 per minute", Class: string(domain.ClassThrottle)},
				},
			},
		},
		Concurrency: ConcurrencyConfig{Max: 100},
		Stats: StatsConfig{
			Backend: StatsMemory,
			Redis: RedisStatsConfig{
				Prefix: "ratelimit:stats",
				TTL:    24 * time.Hour,
				Bucket: "minute",
			},
		},
	}
}

// Rules converte as declarações em regras, na ordem de registro usada pelo
// RuleSet: primeiro as globais (ordem do arquivo), depois as de rota, com as
// rotas em ordem alfabética e as regras de cada rota na ordem do arquivo.
func (c RateLimitConfig) Rules() ([]domain.Rule, error) {
	rules := make([]domain.Rule, 0, len(c.Global))
	for i, d := range c.Global {
		r, err := d.rule(domain.GlobalScope())
		if err != nil {
			return nil, fmt.Errorf("ratelimit.global[%d]: %w", i, err)
		}
		rules = append(rules, r)
	}

	routes := make([]string, 0, len(c.Routes))
	for route := range c.Routes {
		routes = append(routes, route)
	}
	sort.Strings(routes)

	for _, route := range routes {
		id := domain.RouteID(strings.TrimSpace(route))
		for i, d := range c.Routes[route] {
			r, err := d.rule(domain.RouteScope(id))
			if err != nil {
				return nil, fmt.Errorf("ratelimit.routes[%q][%d]: %w", route, i, err)
			}
			rules = append(rules, r)
		}
	}
	return rules, nil
}

func (d LimitDecl) rule(scope domain.Scope) (domain.Rule, error) {
	class, err := domain.ParseRuleClass(d.Class)
	if err != nil {
		return domain.Rule{}, err
	}
	r, err := domain.NewRule(scope, d.Limit, class)
	if err != nil {
		// taxa ilegível também é regra mal configurada
		if errors.Is(err, domain.ErrInvalidRate) && !errors.Is(err, domain.ErrInvalidRule) {
			return domain.Rule{}, fmt.Errorf("%w: %w", domain.ErrInvalidRule, err)
		}
		return domain.Rule{}, err
	}
	return r, nil
}

// BuildRuleSet monta o RuleSet. Qualquer regra inválida é fatal.
func (c Config) BuildRuleSet() (*application.RuleSet, error) {
	rules, err := c.RateLimit.Rules()
	if err != nil {
		return nil, err
	}
	return application.NewRuleSet(rules...)
}

// Validate verifica regras, concorrência e backend de stats.
func (c Config) Validate() error {
	if _, err := c.BuildRuleSet(); err != nil {
		return err
	}

	rl := c.RateLimit
	if rl.CleanupEvery < 0 {
		return fmt.Errorf("%w: ratelimit.cleanup_every must be >= 0", ErrInvalidConfig)
	}
	if rl.Shards < 0 {
		return fmt.Errorf("%w: ratelimit.shards must be >= 0", ErrInvalidConfig)
	}
	if rl.LogFirst < 0 || rl.LogEvery < 0 {
		return fmt.Errorf("%w: ratelimit.log_first/log_every must be >= 0", ErrInvalidConfig)
	}
	if c.Concurrency.Max < 0 || c.Concurrency.Timeout < 0 {
		return fmt.Errorf("%w: concurrency.max/timeout must be >= 0", ErrInvalidConfig)
	}

	switch strings.ToLower(strings.TrimSpace(c.Stats.Backend)) {
	case StatsMemory, StatsNone, "":
	case StatsRedis:
		if strings.TrimSpace(c.Stats.Redis.Addr) == "" {
			return fmt.Errorf("%w: stats.redis.addr is required for the redis backend", ErrInvalidConfig)
		}
		switch strings.ToLower(c.Stats.Redis.Bucket) {
		case "", "minute", "none":
		default:
			return fmt.Errorf("%w: unknown stats.redis.bucket %q", ErrInvalidConfig, c.Stats.Redis.Bucket)
		}
	default:
		return fmt.Errorf("%w: unknown stats.backend %q", ErrInvalidConfig, c.Stats.Backend)
	}
	return nil
}
