package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"wikimind/internal/bootstrap"
	"wikimind/internal/common/camunda"
	"wikimind/internal/common/config"
	"wikimind/internal/common/logger"
	"wikimind/internal/common/observability"
	"wikimind/pkg/registry"

	aq "wikimind/internal/workers/wikimind/answer-question"
	rt "wikimind/internal/workers/wikimind/resolve-topic"
	ss "wikimind/internal/workers/wikimind/suggest-topics"
	sp "wikimind/internal/workers/wikimind/synthesize-speech"
)

func main() {
	zapLog := logger.New("info", "json")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}
	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting wikimind worker",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	activities, err := registry.Default()
	if err != nil {
		zapLog.Fatal("activity registry invalid", zap.Error(err))
	}

	app, err := bootstrap.Build(ctx, bootstrap.Options{Config: cfg, Logger: log, Observer: obs})
	if err != nil {
		zapLog.Fatal("session bootstrap failed", zap.Error(err))
	}
	defer app.Close()

	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected", zap.String("gateway", cfg.Camunda.BrokerAddress))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           healthMux(zeebe, app.Engine, cfg.Inference.WarmOnStart),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	if cfg.Inference.WarmOnStart {
		if err := app.Warm(ctx); err != nil {
			// the engine stays uninitialized and the first question retries the load
			zapLog.Error("inference warm-up failed", zap.Error(err))
		}
	}

	handlers, err := newHandlers(cfg, activities, app, log)
	if err != nil {
		zapLog.Fatal("worker setup failed", zap.Error(err))
	}

	var workers []*camunda.Worker
	for _, h := range handlers {
		if !config.IsWorkerEnabled(cfg, h.TaskType()) {
			zapLog.Info("Worker disabled by configuration", zap.String("taskType", h.TaskType()))
			continue
		}
		workers = append(workers, zeebe.StartWorker(h, log))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	for _, w := range workers {
		w.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Health/Metrics server shutdown failed", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}

func newHandlers(cfg *config.Config, activities *registry.ActivityRegistry, app *bootstrap.App, log logger.Logger) ([]camunda.JobHandler, error) {
	resolve, err := rt.NewHandler(rt.HandlerOptions{
		AppConfig: cfg,
		Registry:  activities,
		Resolver:  app.Session,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	answer, err := aq.NewHandler(aq.HandlerOptions{
		AppConfig: cfg,
		Registry:  activities,
		Answerer:  app.Session,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	suggest, err := ss.NewHandler(ss.HandlerOptions{
		AppConfig: cfg,
		Registry:  activities,
		Suggester: app.Session,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	speechOpts := sp.HandlerOptions{
		AppConfig: cfg,
		Registry:  activities,
		Speaker:   app.Session,
		Logger:    log,
	}
	if app.AudioStore != nil {
		speechOpts.Store = app.AudioStore
	}
	speech, err := sp.NewHandler(speechOpts)
	if err != nil {
		return nil, err
	}

	return []camunda.JobHandler{resolve, answer, suggest, speech}, nil
}
