package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"duel_arena/internal/config"
	"duel_arena/internal/db"
	httpServer "duel_arena/internal/http"
	"duel_arena/internal/http/handlers"
	"duel_arena/internal/http/middleware"
	"duel_arena/internal/logger"
	"duel_arena/internal/match"
	"duel_arena/internal/metrics"
	"duel_arena/internal/ports"
	"duel_arena/internal/presence"
	"duel_arena/internal/repository"
	"duel_arena/internal/service"
	"duel_arena/internal/worker"
	"duel_arena/internal/ws"
)

// Version устанавливается при сборке
var Version = "dev"

func main() {
	cfg := config.Load()

	// Инициализация структурированного логгера
	log := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jwt := service.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)

	// Без DATABASE_URL движок работает без сохранения результатов и наград
	var (
		recorder ports.ResultRecorder = ports.NopRecorder{}
		rewards  ports.RewardIssuer   = ports.NopRewards{}
		progress handlers.Progress
		audit    handlers.Audit
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database connect failed", "error", err)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("migration failed", "error", err)
		}

		auditRepo := repository.NewAuditRepository(pool)
		progressRepo := repository.NewProgressRepository(pool, auditRepo)
		recorder = repository.NewMatchRepository(pool, auditRepo)
		rewards = progressRepo
		progress = progressRepo
		audit = auditRepo
	} else {
		log.Warn("DATABASE_URL не задан: результаты матчей не сохраняются")
	}

	var limiter *middleware.RateLimiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis недоступен, rate limit пропускает запросы", "error", err)
		}
		limiter = middleware.NewRateLimiter(rdb, cfg.RateLimit, cfg.RateLimitWindow)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	hub := ws.NewHub(log.With("component", "ws"))
	registry := match.NewRegistry(match.Deps{
		Emitter:  hub,
		Recorder: recorder,
		Rewards:  rewards,
		Observer: m,
		Logger:   log.With("component", "match"),
		Timings:  cfg.Timings(),
	})
	tracker := presence.NewTracker(cfg.PresenceConfig(), presence.Deps{
		Identity:  jwt,
		Rooms:     registry,
		Transport: hub,
		Logger:    log.With("component", "presence"),
	})
	hub.Attach(registry, tracker)

	janitor := worker.NewJanitor(registry, hub, m, cfg.Engine.JanitorInterval, log.With("component", "janitor"))
	if err := janitor.Start(); err != nil {
		logger.Fatal("janitor start failed", "error", err)
	}

	router := httpServer.NewRouter(httpServer.RouterConfig{
		Handler: &handlers.Handler{
			Registry: registry,
			Auth:     &service.AuthService{BotToken: cfg.BotToken, InitDataTTL: cfg.InitDataTTL, JWT: jwt},
			Progress: progress,
			Audit:    audit,
			Version:  Version,
			Log:      log,
		},
		WS:            ws.NewWSHandler(hub, cfg.AllowedOrigin),
		Identity:      jwt,
		Limiter:       limiter,
		Gatherer:      promReg,
		AllowedOrigin: cfg.AllowedOrigin,
		Log:           log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server started", "port", cfg.AppPort, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	if err := janitor.Stop(); err != nil {
		log.Error("janitor stop failed", "error", err)
	}
	registry.Shutdown()
	hub.CloseAll()

	log.Info("server exited")
}
