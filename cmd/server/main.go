// Command server é o serviço de tarefas com controle de admissão.
//
// Uso:
//
//	server --config rules.yaml --listen :8080
//	server --log-level debug --log-format console
package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task-service/bootstrap"
	"task-service/config"
	"task-service/middleware/ratelimit"
	"task-service/resources"

	"github.com/alecthomas/kong"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type CLI struct {
	Config    string `short:"c" help:"Rules file (YAML or JSON). Built-in defaults when empty." env:"CONFIG_FILE" type:"path"`
	Listen    string `help:"Listen address." env:"LISTEN_ADDR" default:":8080"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." env:"LOG_LEVEL" default:"info"`
	LogFormat string `help:"Log format." env:"LOG_FORMAT" default:"json" enum:"json,console"`
}

func main() {
	// .env é opcional; variáveis já exportadas têm precedência
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = os.Stderr.WriteString("load .env: " + err.Error() + "\n")
		os.Exit(1)
	}

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("server"),
		kong.Description("Task service with multi-rule admission control."),
		kong.UsageOnError(),
	)

	logger, err := bootstrap.NewLogger(cli.LogLevel, cli.LogFormat)
	kctx.FatalIfErrorf(err)
	defer func() { _ = logger.Sync() }()

	if err := run(cli, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cli CLI, logger *zap.Logger) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := bootstrap.Build(ctx, cfg, bootstrap.Options{
		Logger:     logger,
		Registerer: prometheus.DefaultRegisterer,
		RouteFn:    ratelimit.ChiRouteFunc,
	})
	if err != nil {
		return err
	}
	defer func() { _ = stack.Close() }()

	stack.Store.StartJanitor(ctx)

	router := newRouter(stack, resources.NewHandler(resources.NewStore(), logger.Named("resources")))
	warnUnroutedRules(logger, router, stack)

	srv := &http.Server{
		Addr:              cli.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", cli.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newRouter monta as rotas. O controle de admissão fica num Group para que o
// chi já tenha casado o pattern quando o middleware roda.
func newRouter(stack *bootstrap.Stack, h *resources.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(stack.Concurrency)

	r.Handle("/metrics", promhttp.Handler())
	if stack.Memory != nil {
		r.Method(http.MethodGet, "/admin/ratelimit/stats", ratelimit.StatsHandler(stack.Memory))
	}

	r.Group(func(r chi.Router) {
		r.Use(stack.Admission.Handler)
		h.Mount(r)
	})
	return r
}

// warnUnroutedRules avisa sobre regras de rota que nenhuma rota do router casa.
func warnUnroutedRules(logger *zap.Logger, router chi.Routes, stack *bootstrap.Stack) {
	missing, err := ratelimit.MissingChiRoutes(router, stack.Rules.Routes())
	if err != nil {
		logger.Warn("could not inspect router for rule routes", zap.Error(err))
		return
	}
	for _, id := range missing {
		logger.Warn("route rules never applied: no matching route registered", zap.String("route", string(id)))
	}
}
