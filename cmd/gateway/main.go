// Command gateway é um reverse proxy protegido pelo mesmo controle de admissão
// do serviço. Como não há rotas próprias, o RouteID é "<METHOD> <path>" da
// requisição encaminhada quando esse par tem regras configuradas, e
// "<METHOD> *" nos demais casos.
package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"task-service/bootstrap"
	"task-service/config"
	"task-service/middleware/ratelimit"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := readConfig()
	if err != nil {
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := bootstrap.NewLogger(cfg.logLevel, cfg.logFormat)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("gateway stopped with error", zap.Error(err))
	}
}

func run(cfg gatewayConfig, logger *zap.Logger) error {
	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		return errors.New("invalid UPSTREAM_URL: " + err.Error())
	}

	rules, err := config.Load(cfg.rulesFile)
	if err != nil {
		return err
	}

	routeFn, err := gatewayRouteFunc(rules)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stack, err := bootstrap.Build(ctx, rules, bootstrap.Options{
		Logger:     logger,
		Registerer: prometheus.DefaultRegisterer,
		RouteFn:    routeFn,
	})
	if err != nil {
		return err
	}
	defer func() { _ = stack.Close() }()
	stack.Store.StartJanitor(ctx)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           newHandler(cfg, stack, newProxy(target, logger)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening",
		zap.String("addr", cfg.listenAddr),
		zap.Stringer("upstream", target),
		zap.Bool("admission", cfg.rateEnabled),
		zap.String("rules_file", cfg.rulesFile),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// gatewayRouteFunc só deixa passar os paths com regras de rota configuradas.
func gatewayRouteFunc(rules config.Config) (ratelimit.RouteFunc, error) {
	rs, err := rules.BuildRuleSet()
	if err != nil {
		return nil, err
	}
	return ratelimit.KnownRouteFunc(ratelimit.PathRouteFunc, rs.Routes()), nil
}

func newProxy(target *url.URL, logger *zap.Logger) *httputil.ReverseProxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("proxy error", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}
	return proxy
}

// newHandler: admissão por fora, concorrência por dentro, proxy no fim.
// metricsPath é servido pelo próprio gateway e nunca chega ao upstream.
func newHandler(cfg gatewayConfig, stack *bootstrap.Stack, upstream http.Handler) http.Handler {
	h := stack.Concurrency(upstream)
	if cfg.rateEnabled {
		h = stack.Admission.Handler(h)
	}

	mux := http.NewServeMux()
	if cfg.metricsPath != "" {
		mux.Handle(cfg.metricsPath, promhttp.Handler())
	}
	mux.Handle("/", h)
	return mux
}

type gatewayConfig struct {
	listenAddr  string
	upstreamURL string
	rateEnabled bool
	rulesFile   string
	metricsPath string
	logLevel    string
	logFormat   string
}

func readConfig() (gatewayConfig, error) {
	cfg := gatewayConfig{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")
	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", true)
	cfg.rulesFile = os.Getenv("RATE_RULES_FILE")
	cfg.metricsPath = getenvDefault("METRICS_PATH", "/_gateway/metrics")
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.logFormat = getenvDefault("LOG_FORMAT", "json")

	if cfg.upstreamURL == "" {
		return gatewayConfig{}, errors.New("UPSTREAM_URL is required")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
