// Command server runs the dealer communications engine: the job processor,
// the scheduler, and the health/metrics HTTP surface (C13).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dealer-comms/engine/internal/adapter/httpserver"
	"github.com/dealer-comms/engine/internal/adapter/llm"
	"github.com/dealer-comms/engine/internal/adapter/observability"
	"github.com/dealer-comms/engine/internal/adapter/provider"
	"github.com/dealer-comms/engine/internal/adapter/repo/postgres"
	"github.com/dealer-comms/engine/internal/adapter/template"
	"github.com/dealer-comms/engine/internal/adapter/tenantconfig"
	"github.com/dealer-comms/engine/internal/adapter/tenantstore"
	"github.com/dealer-comms/engine/internal/app"
	"github.com/dealer-comms/engine/internal/config"
)

const maxCentralPoolConns = 25

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.CentralDBURL, maxCentralPoolConns)
	if err != nil {
		slog.Error("central db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	jobRepo := postgres.NewJobRepo(pool)
	queueItemRepo := postgres.NewQueueItemRepo(pool)
	templateRepo := postgres.NewTemplateRepo(pool)
	tenantRepo := postgres.NewTenantRepo(pool)

	tenantCfg := tenantconfig.NewCache(tenantRepo, tenantconfig.Defaults{
		QuietHoursStart: "21:00",
		QuietHoursEnd:   "08:00",
	})
	gateway := tenantstore.NewGateway(tenantCfg)
	defer gateway.Close()

	factory := provider.NewFactory()
	templateStore := template.NewCachedStore(templateRepo)
	_ = template.NewRenderer() // content rendering (C7) is driven through the generator below
	generator := llm.NewGenerator(templateStore, cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, logger)

	processor := app.NewProcessor(jobRepo, tenantCfg, factory, gateway, generator, queueItemRepo, app.ProcessorConfig{
		PollInterval:      cfg.PollInterval(),
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		RetryDelay:        cfg.RetryDelay(),
		MaxRetries:        cfg.MaxRetries,
	}, logger)

	scheduler := app.NewScheduler(tenantRepo, gateway, tenantCfg, generator, jobRepo, queueItemRepo, app.SchedulerConfig{
		GhostCustomerMonths:       cfg.GhostCustomerMonths,
		WarrantyWarningDays:       cfg.WarrantyWarningDays,
		TradeInMinAgeYears:        cfg.TradeInMinAgeYears,
		TradeInMinRepairCount:     cfg.TradeInMinRepairCount,
		FirstServiceHoursThresh:   cfg.FirstServiceHoursThresh,
		UsageServiceHoursInterval: cfg.UsageServiceHoursInterval,
		DailySweepHour:            cfg.DailySweepHour,
		WeeklySweepHour:           cfg.WeeklySweepHour,
		MonthlySweepHour:          cfg.MonthlySweepHour,
		QueuePollSeconds:          cfg.QueuePollSeconds,
	}, logger)

	sweeper := app.NewStuckJobSweeper(jobRepo, 0, 0)

	srv := httpserver.NewServer(pool, processor, "dev")
	handler := app.BuildRouter(cfg, srv)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HealthPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	procCtx, cancelProc := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		processor.Run(procCtx)
	}()
	go func() {
		defer wg.Done()
		scheduler.Run(procCtx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Run(procCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.HealthPort))
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", slog.Any("error", err))
		}
	}

	cancelProc()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.ShutdownGrace):
		slog.Warn("shutdown grace period expired with work still in flight")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", slog.Any("error", err))
	}
}
