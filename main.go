package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Kocoro-lab/interplay/internal/activities"
	"github.com/Kocoro-lab/interplay/internal/agents"
	"github.com/Kocoro-lab/interplay/internal/circuitbreaker"
	"github.com/Kocoro-lab/interplay/internal/config"
	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/db"
	"github.com/Kocoro-lab/interplay/internal/director"
	"github.com/Kocoro-lab/interplay/internal/health"
	"github.com/Kocoro-lab/interplay/internal/httpapi"
	"github.com/Kocoro-lab/interplay/internal/llm"
	"github.com/Kocoro-lab/interplay/internal/registry"
	"github.com/Kocoro-lab/interplay/internal/report"
	"github.com/Kocoro-lab/interplay/internal/research"
	"github.com/Kocoro-lab/interplay/internal/schedules"
	"github.com/Kocoro-lab/interplay/internal/skills"
	"github.com/Kocoro-lab/interplay/internal/sources"
	"github.com/Kocoro-lab/interplay/internal/temporal"
	"github.com/Kocoro-lab/interplay/internal/tracing"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	shutdownTracing, err := tracing.Initialize(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Warn("Failed to initialize tracing", zap.Error(err))
	}

	// Store
	dbx, err := db.Open(ctx, cfg.Database(), logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	key, _ := cfg.Encryption.KeyBytes()
	sealer, err := db.NewSealer(key)
	if err != nil {
		logger.Fatal("Failed to initialize stage encryption", zap.Error(err))
	}
	if !sealer.Enabled() {
		logger.Warn("Stage encryption disabled; stage outputs are stored in plaintext")
	}
	store := db.NewStore(dbx, sealer, logger)
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate report store", zap.Error(err))
	}
	scheduleDB := schedules.NewDBOperations(dbx)
	if err := scheduleDB.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate schedule store", zap.Error(err))
	}

	// Skill bundles, with hot reload of overlay directories
	skillReg, err := skills.NewDefaultRegistry(logger, skills.ResolveSkillDirs()...)
	if err != nil {
		logger.Fatal("Failed to load skill bundles", zap.Error(err))
	}
	go func() {
		if err := skillReg.Watch(ctx); err != nil {
			logger.Warn("Skill watcher stopped", zap.Error(err))
		}
	}()

	source, err := newSource(cfg.Sources, logger)
	if err != nil {
		logger.Fatal("Failed to initialize data source", zap.Error(err))
	}

	var pageCache research.PageCache
	var redisCache *research.RedisCache
	if cfg.Redis.Addr != "" {
		redisCache, err = research.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("Redis page cache unavailable, using in-process cache", zap.Error(err))
		} else {
			defer redisCache.Close()
			pageCache = redisCache
		}
	}
	if pageCache == nil {
		pageCache = research.NewLocalLRU(cfg.Research.LocalCache)
	}
	researcher := research.New(
		research.NewHTTPPageFetcher(cfg.Research.UserAgent, logger),
		pageCache,
		source,
		research.Options{
			CacheTTL:     cfg.Research.CacheTTL,
			PerHostRPS:   cfg.Research.PerHostRPS,
			PerHostBurst: cfg.Research.PerHostBurst,
		},
		logger,
	)

	gen, err := newGenerator(ctx, cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to initialize text generator", zap.Error(err))
	}
	logger.Info("Text generator ready", zap.String("provider", cfg.LLM.Provider))
	agentOpts := agents.Options{MaxTokens: cfg.LLM.MaxTokens, Temperature: cfg.LLM.Temperature}

	acts := activities.NewActivities(activities.Deps{
		Skills:     skillReg,
		Unifier:    dataset.NewUnifier(source, logger),
		Researcher: researcher,
		SEM:        agents.NewSEM(gen, agentOpts, logger),
		SEO:        agents.NewSEO(gen, agentOpts, logger),
		Director: director.New(gen, director.Options{
			Factors:     cfg.Director.Factors,
			Narrative:   cfg.Director.Narrative,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		}, logger),
		Store: store,
	}, logger)

	// Temporal
	dialCtx, dialCancel := context.WithTimeout(ctx, 2*time.Minute)
	tClient, err := temporal.Dial(dialCtx, cfg.Temporal, logger)
	dialCancel()
	if err != nil {
		logger.Fatal("Failed to connect to Temporal", zap.Error(err))
	}
	defer tClient.Close()

	w := worker.New(tClient, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.Workflow.WorkerActivities,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.Workflow.WorkerWorkflows,
	})
	if err := registry.RegisterAll(registry.NewReportRegistry(acts, logger), w); err != nil {
		logger.Fatal("Failed to register workflows and activities", zap.Error(err))
	}
	if err := w.Start(); err != nil {
		logger.Fatal("Failed to start Temporal worker", zap.Error(err))
	}
	defer w.Stop()
	logger.Info("Temporal worker started",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.Int("activities", cfg.Workflow.WorkerActivities),
		zap.Int("workflows", cfg.Workflow.WorkerWorkflows))

	schedMgr := schedules.NewManager(tClient.ScheduleClient(), scheduleDB, skillReg, schedules.Config{
		MinInterval:     cfg.Schedules.MinInterval,
		MaxPerClient:    cfg.Schedules.MaxPerClient,
		DefaultTimezone: cfg.Schedules.Timezone,
		TaskQueue:       cfg.Temporal.TaskQueue,
		Options:         cfg.WorkflowOptions(),
	}, logger)

	svc := report.NewService(store, tClient, skillReg, schedMgr, report.Config{
		TaskQueue:   cfg.Temporal.TaskQueue,
		DefaultDays: cfg.Workflow.DefaultDays,
		Workflow:    cfg.WorkflowOptions(),
	}, logger)

	hm := health.NewManager(logger)
	_ = hm.RegisterChecker(health.NewPingChecker("database", true, store.Ping))
	_ = hm.RegisterChecker(health.NewPingChecker("temporal", true, func(ctx context.Context) error {
		_, err := tClient.CheckHealth(ctx, &client.CheckHealthRequest{})
		return err
	}))
	_ = hm.RegisterChecker(health.NewBreakerChecker(circuitbreaker.GlobalMetricsCollector.Snapshot))
	if redisCache != nil {
		_ = hm.RegisterChecker(health.NewPingChecker("redis", false, redisCache.Ping).WithBreaker(redisCache.BreakerOpen))
	}

	if cfg.Server.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN unset; operator routes are disabled")
	}
	apiServer := httpapi.Serve(cfg.Server.HTTPPort, httpapi.NewRouter(svc, hm, cfg.Server.AdminToken, logger), logger)

	var metricsServer *http.Server
	if cfg.Server.MetricsPort > 0 && cfg.Server.MetricsPort != cfg.Server.HTTPPort {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("Metrics server listening", zap.Int("port", cfg.Server.MetricsPort))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutting down", zap.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API server shutdown", zap.Error(err))
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("Tracing shutdown", zap.Error(err))
		}
	}
}

func newLogger(level string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zc.Build()
}

func newSource(cfg config.SourcesConfig, logger *zap.Logger) (sources.Client, error) {
	if cfg.FixturePath != "" {
		logger.Info("Using data-source fixture", zap.String("path", cfg.FixturePath))
		return sources.LoadFixture(cfg.FixturePath)
	}
	return sources.NewHTTPClient(sources.HTTPConfig{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		RetryBase:  cfg.RetryBase,
	}, logger), nil
}

func newGenerator(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (llm.TextGenerator, error) {
	switch cfg.Provider {
	case "gemini":
		return llm.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	case "scripted":
		raw, err := os.ReadFile(cfg.ScriptedPath)
		if err != nil {
			return nil, fmt.Errorf("read scripted responses: %w", err)
		}
		responses := map[string]string{}
		if err := json.Unmarshal(raw, &responses); err != nil {
			return nil, fmt.Errorf("parse scripted responses: %w", err)
		}
		return llm.NewScripted(responses), nil
	default:
		return llm.NewHTTPGenerator(cfg.ServiceURL, cfg.Timeout, logger), nil
	}
}
