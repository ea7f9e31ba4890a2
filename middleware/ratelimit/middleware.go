package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"task-service/middleware/ratelimit/domain"
	"task-service/middleware/ratelimit/infra"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type KeyFunc func(r *http.Request) string

// Evaluator é o que o middleware precisa do Limiter.
type Evaluator interface {
	Evaluate(key domain.ClientKey, route domain.RouteID, now time.Time) domain.Verdict
}

type Options struct {
	Limiter             Evaluator
	Clock               domain.Clock
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RouteFn             RouteFunc
	AddRateLimitHeaders bool

	Logger *zap.Logger
	// LogEvery limita os logs de rejeição (as primeiras LogFirst sempre saem,
	// depois no máximo uma por intervalo). 0 loga todas.
	LogEvery time.Duration
	LogFirst int
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				ip, _, _ := strings.Cut(xff, ",")
				if ip = strings.TrimSpace(ip); ip != "" {
					return ip
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Admission é o ponto de decisão HTTP: extrai (cliente, rota), consulta o
// Limiter e deixa passar ou responde 429/503 sem chamar o handler.
type Admission struct {
	opts      Options
	sometimes *rate.Sometimes
}

func NewAdmission(opts Options) *Admission {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.RouteFn == nil {
		opts.RouteFn = ChiRouteFunc
	}
	if opts.Clock == nil {
		opts.Clock = infra.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	a := &Admission{opts: opts}
	if opts.LogEvery > 0 {
		a.sometimes = &rate.Sometimes{First: opts.LogFirst, Interval: opts.LogEvery}
	}
	return a
}

// Middleware é o atalho para NewAdmission(opts).Handler.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	return NewAdmission(opts).Handler
}

// Handler resolve a rota de cada requisição com RouteFn.
func (a *Admission) Handler(next http.Handler) http.Handler {
	return a.wrap(next, a.opts.RouteFn)
}

// Guard fixa o RouteID, para roteadores que não informam o pattern casado.
func (a *Admission) Guard(route domain.RouteID) func(next http.Handler) http.Handler {
	fixed := func(*http.Request) domain.RouteID { return route }
	return func(next http.Handler) http.Handler { return a.wrap(next, fixed) }
}

func (a *Admission) wrap(next http.Handler, routeFn RouteFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.opts.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := domain.ClientKey(a.opts.KeyFn(r))
		route := routeFn(r)
		now := a.opts.Clock.Now()

		v := a.opts.Limiter.Evaluate(key, route, now)
		a.record(r, key, route, v, now)

		if a.opts.AddRateLimitHeaders && v.Err == nil {
			h := w.Header()
			h.Set("X-RateLimit-Key", string(key))
			if v.Limit > 0 {
				h.Set("X-RateLimit-Limit", formatInt(v.Limit))
				h.Set("X-RateLimit-Remaining", formatInt(v.Remaining))
			}
		}

		switch {
		case v.Err != nil:
			a.opts.Logger.Error("admission control failed closed",
				zap.String("key", string(key)),
				zap.String("route", string(route)),
				zap.Error(v.Err),
			)
			writeJSON(w, http.StatusServiceUnavailable, serviceUnavailableBody)
		case !v.Admitted:
			class := v.Rule.EffectiveClass()
			a.logRejection(func() {
				a.opts.Logger.Info("request rejected by admission control",
					zap.String("key", string(key)),
					zap.String("route", string(route)),
					zap.String("rule", string(v.Rule.ID)),
					zap.String("class", string(class)),
					zap.Duration("retry_after", v.RetryAfter),
				)
			})
			w.Header().Set("Retry-After", formatRetryAfter(v.RetryAfter))
			writeJSON(w, http.StatusTooManyRequests, tooManyRequestsBody(class))
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (a *Admission) logRejection(f func()) {
	if a.sometimes == nil {
		f()
		return
	}
	a.sometimes.Do(f)
}

// record é best-effort: falha de stats nunca muda a decisão.
func (a *Admission) record(r *http.Request, key domain.ClientKey, route domain.RouteID, v domain.Verdict, now time.Time) {
	if a.opts.Stats == nil {
		return
	}
	ev := domain.StatsEvent{Key: key, Route: route, Allowed: v.Admitted, At: now}
	if v.Rule != nil {
		ev.Class = v.Rule.EffectiveClass()
	}
	if err := a.opts.Stats.Record(r.Context(), ev); err != nil {
		a.opts.Logger.Warn("admission stats record failed", zap.Error(err))
	}
}
