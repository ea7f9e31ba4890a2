package ratelimit

import (
	"net/http"
	"time"

	"task-service/middleware/ratelimit/application"
	"task-service/middleware/ratelimit/infra"

	"go.uber.org/zap"
)

type ConcurrencyOptions struct {
	Max            int
	AcquireTimeout time.Duration
	Logger         *zap.Logger
}

// ConcurrencyMiddleware limita requisições em voo no processo inteiro.
// Sem vaga dentro do timeout responde 503 com corpo JSON. Max <= 0 desliga.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				opts.Logger.Debug("concurrency limit reached",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				writeJSON(w, http.StatusServiceUnavailable, serverBusyBody)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
