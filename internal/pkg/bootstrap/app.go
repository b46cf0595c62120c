// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/pkg/tracing"
)

// Runner is a long-running background task such as a consumer or a sweeper.
// Run blocks until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

type AppCtx struct {
	Mux    *http.ServeMux
	Config *Config
}

// AppInfo carries everything service-specific StartService needs.
type AppInfo struct {
	ServiceName      string
	Config           *Config
	RegisterHandlers func(appCtx AppCtx)
	Runners          []Runner
	// Cleanup runs after the runners and the HTTP server have stopped.
	Cleanup func(ctx context.Context)
}

// LoadConfig loads the file named by CONFIG_FILE, or the defaults.
func LoadConfig() (*Config, error) {
	return Load(getEnv("CONFIG_FILE", ""))
}

// StartService wires logging, tracing, the HTTP server and the background
// runners, and blocks until SIGINT/SIGTERM or a runner fails.
func StartService(info AppInfo) {
	cfg := info.Config
	logger.Init(info.ServiceName, cfg.App.LogLevel, os.Stdout)
	log := logger.L()

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("GET /metrics", promhttp.Handler())
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Config: cfg})
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msgf("%s listening", info.ServiceName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	for _, r := range info.Runners {
		r := r
		g.Go(func() error { return r.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msgf("Shutting down service %s...", info.ServiceName)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down http server")
		}
		return nil
	})

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if info.Cleanup != nil {
		info.Cleanup(shutdownCtx)
	}
	// Flush buffered spans last so the shutdown path is traced too.
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down tracer provider")
	}

	if runErr != nil {
		log.Fatal().Err(runErr).Msgf("service %s stopped with error", info.ServiceName)
	}
	log.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}
