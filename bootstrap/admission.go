package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"task-service/config"
	"task-service/middleware/ratelimit"
	"task-service/middleware/ratelimit/application"
	"task-service/middleware/ratelimit/domain"
	"task-service/middleware/ratelimit/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisPingTimeout = 2 * time.Second

// Stack é o controle de admissão pronto para ser montado num router.
type Stack struct {
	Rules     *application.RuleSet
	Store     *infra.CounterStore
	Limiter   application.Limiter
	Admission *ratelimit.Admission

	// Memory só é preenchido com stats.backend=memory.
	Memory *infra.MemoryStatsStore

	Concurrency func(http.Handler) http.Handler

	closers []func() error
}

type Options struct {
	Logger *zap.Logger
	// Registerer recebe admission_requests_total. Nil desliga as métricas.
	Registerer prometheus.Registerer
	RouteFn    ratelimit.RouteFunc
	// Redis substitui o client criado a partir de stats.redis (testes).
	Redis redis.UniversalClient
}

// Build valida as regras e cria store, limiter, stats e middlewares.
// Regra inválida ou Redis inacessível impedem a subida.
func Build(ctx context.Context, cfg config.Config, opts Options) (*Stack, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rules, err := cfg.BuildRuleSet()
	if err != nil {
		return nil, err
	}

	rl := cfg.RateLimit
	store := infra.NewCounterStore(
		infra.WithShards(rl.Shards),
		infra.WithCleanupEvery(rl.CleanupEvery),
	)
	st := &Stack{
		Rules:   rules,
		Store:   store,
		Limiter: application.Limiter{Rules: rules, Store: store},
	}

	var stats infra.TeeStats
	if opts.Registerer != nil {
		prom, err := infra.NewPrometheusStats(opts.Registerer)
		if err != nil {
			return nil, fmt.Errorf("register admission metrics: %w", err)
		}
		stats = append(stats, prom)
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Stats.Backend))
	switch backend {
	case config.StatsMemory, "":
		backend = config.StatsMemory
		st.Memory = infra.NewMemoryStatsStore()
		stats = append(stats, st.Memory)
	case config.StatsRedis:
		rs, err := st.redisStats(ctx, cfg.Stats.Redis, opts.Redis)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		stats = append(stats, rs)
	}

	var statsStore domain.StatsStore
	if len(stats) > 0 {
		statsStore = stats
	}

	st.Admission = ratelimit.NewAdmission(ratelimit.Options{
		Limiter:             st.Limiter,
		Stats:               statsStore,
		KeyHeader:           rl.KeyHeader,
		TrustXForwardedFor:  rl.TrustXFF,
		RouteFn:             opts.RouteFn,
		AddRateLimitHeaders: rl.Headers,
		Logger:              logger.Named("admission"),
		LogFirst:            rl.LogFirst,
		LogEvery:            rl.LogEvery,
	})
	st.Concurrency = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.Concurrency.Max,
		AcquireTimeout: cfg.Concurrency.Timeout,
		Logger:         logger.Named("concurrency"),
	})

	routes := make([]string, 0)
	for _, r := range rules.Routes() {
		routes = append(routes, string(r))
	}
	logger.Info("admission control configured",
		zap.Int("rules", rules.Len()),
		zap.Strings("routes", routes),
		zap.String("stats_backend", backend),
		zap.Int("concurrency_max", cfg.Concurrency.Max),
	)
	for _, r := range rules.Rules() {
		logger.Debug("rule registered", zap.String("id", string(r.ID)), zap.Stringer("rule", r))
	}
	return st, nil
}

func (s *Stack) redisStats(ctx context.Context, rc config.RedisStatsConfig, rdb redis.UniversalClient) (*infra.RedisStatsStore, error) {
	if rdb == nil {
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		s.closers = append(s.closers, client.Close)
		rdb = client
	}

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis stats ping: %w", err)
	}

	return infra.NewRedisStatsStore(rdb,
		infra.WithStatsPrefix(rc.Prefix),
		infra.WithStatsTTL(rc.TTL),
		infra.WithStatsBucket(rc.Bucket),
		infra.WithStatsTrackKeys(rc.TrackKeys),
	), nil
}

// Close libera conexões abertas por Build (ex.: client Redis).
func (s *Stack) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	return errors.Join(errs...)
}
