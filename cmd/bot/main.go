package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aurafarm/farm-bot/internal/approval"
	"github.com/aurafarm/farm-bot/internal/bot"
	"github.com/aurafarm/farm-bot/internal/database"
	"github.com/aurafarm/farm-bot/internal/farm"
	"github.com/aurafarm/farm-bot/internal/health"
	"github.com/aurafarm/farm-bot/internal/jobs"
	jobhandlers "github.com/aurafarm/farm-bot/internal/jobs/handlers"
	"github.com/aurafarm/farm-bot/internal/notify"
	"github.com/aurafarm/farm-bot/internal/ratelimit"
	"github.com/aurafarm/farm-bot/internal/repository"
	"github.com/aurafarm/farm-bot/internal/settings"
	"github.com/aurafarm/farm-bot/internal/state"
	"github.com/aurafarm/farm-bot/internal/userbot"
	"github.com/aurafarm/farm-bot/pkg/config"
	"github.com/aurafarm/farm-bot/pkg/graceful"
	"github.com/aurafarm/farm-bot/pkg/logger"
	pkgredis "github.com/aurafarm/farm-bot/pkg/redis"

	_ "github.com/lib/pq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Log, cfg.Sentry.Enabled)
	slog.SetDefault(log)

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			log.Error("failed to init sentry", slog.Any("error", err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	log.Info("starting aura farm bot",
		slog.String("env", cfg.AppEnv),
		slog.String("http_port", cfg.Server.Port),
		slog.String("log_level", cfg.Log.Level),
	)

	db, err := sql.Open("postgres", cfg.DB.DSN())
	if err != nil {
		log.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Error("error closing database", slog.Any("error", cerr))
		}
	}()

	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to ping database", slog.Any("error", err))
		os.Exit(1)
	}

	migrator := database.NewMigrator(db, log)
	if err := migrator.ApplyDir(ctx, "migrations"); err != nil {
		log.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := pkgredis.New(ctx, pkgredis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if cerr := redisClient.Close(); cerr != nil {
			log.Error("error closing redis", slog.Any("error", cerr))
		}
	}()

	// Repositories and services.
	approvalRepo := repository.NewApprovalRepository(db, log)
	settingsRepo := repository.NewSettingsRepository(db, log)
	sessionRepo := repository.NewSessionRepository(db, log)
	adminRepo := repository.NewAdminRepository(db, log)

	approvals := approval.NewService(approvalRepo, log)
	settingsSvc := settings.NewService(
		settingsRepo,
		settings.NewCache(redisClient.Client),
		log,
		cfg.Farm.PearlLimit,
		cfg.Farm.TicketLimit,
	)

	stateStorage := state.NewRedisStorage(redisClient.Client, log)
	fsm := state.NewStateMachine(stateStorage, log, redisClient.Client)

	limiter := ratelimit.NewAdaptiveLimiter(
		ratelimit.NewRedisLimiter(redisClient.Client, log),
		ratelimit.NewMemoryLimiter(),
		log,
	)

	// Control bot first; the notifier and prompt hub need its sender.
	controlBot, err := bot.New(*cfg, log, fsm, limiter)
	if err != nil {
		log.Error("failed to build control bot", slog.Any("error", err))
		os.Exit(1)
	}

	notifier := notify.New(controlBot.Telebot(), settingsSvc, log)

	registry := farm.NewRegistry()
	engine := farm.NewEngine(registry, notifier, settingsSvc, log, farm.Pacing{
		JitterMin:       cfg.Farm.JitterMin,
		JitterMax:       cfg.Farm.JitterMax,
		ExploreCooldown: cfg.Farm.ExploreCooldown,
		AckTimeout:      cfg.Farm.AckTimeout,
	})

	config.WatchFarm(v, func(fc config.FarmConfig) {
		engine.SetPacing(farm.Pacing{
			JitterMin:       fc.JitterMin,
			JitterMax:       fc.JitterMax,
			ExploreCooldown: fc.ExploreCooldown,
			AckTimeout:      fc.AckTimeout,
		})
		log.Info("farm pacing reloaded")
	})

	zapLog, err := zap.NewProduction()
	if err != nil {
		zapLog = zap.NewNop()
	}
	defer func() { _ = zapLog.Sync() }()

	manager := userbot.NewManager(cfg.Game, sessionRepo, engine, controlBot.Prompts(), notifier, log, zapLog)

	controlBot.RegisterRoutes(ctx, bot.Deps{
		Manager:   manager,
		Approvals: approvals,
		Admins:    adminRepo,
		Sessions:  sessionRepo,
		Settings:  settingsSvc,
		Registry:  registry,
	})

	// Background jobs.
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	jobManager := jobs.NewManager(redisOpt, log)
	defer func() {
		if cerr := jobManager.Close(); cerr != nil {
			log.Error("error closing job manager", slog.Any("error", cerr))
		}
	}()

	scheduler := jobs.NewScheduler(redisOpt, log)
	if err := scheduler.RegisterTasks(); err != nil {
		log.Error("failed to register scheduled tasks", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Run()
	defer scheduler.Shutdown()

	worker := jobs.NewWorker(redisOpt, map[string]int{
		jobs.QueueCritical: 6,
		jobs.QueueDefault:  3,
		jobs.QueueLow:      1,
	}, log)
	worker.RegisterHandler(jobs.TaskTypeApprovalCleanup,
		jobhandlers.NewApprovalCleanupHandler(approvals, engine, notifier, log))
	worker.RegisterHandler(jobs.TaskTypeSessionAudit,
		jobhandlers.NewSessionAuditHandler(sessionRepo, engine, log))
	go func() {
		if err := worker.Run(); err != nil {
			log.Error("job worker stopped", slog.Any("error", err))
		}
	}()
	defer worker.Shutdown()

	// Sweep approvals that lapsed while the bot was down instead of waiting
	// for the first scheduled run.
	if task, err := jobs.NewApprovalCleanupTask(); err != nil {
		log.Error("failed to build startup cleanup task", slog.Any("error", err))
	} else if _, err := jobManager.Enqueue(ctx, task); err != nil {
		log.Warn("failed to enqueue startup cleanup", slog.Any("error", err))
	}

	// Keep-alive HTTP server.
	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(redisClient.Client))
	checker.AddCheck("telegram", health.NewTelegramChecker(controlBot.Telebot()))

	httpServer := graceful.NewServer(log, &http.Server{
		Addr:    cfg.Server.Port,
		Handler: logger.Middleware(newMux(checker)),
	}, cfg.Server.ShutdownTimeout)

	go func() {
		if err := httpServer.ListenAndServe(ctx); err != nil {
			log.Error("http server exited", slog.Any("error", err))
		}
	}()

	if cfg.Server.PublicURL != "" {
		go selfPing(ctx, log, cfg.Server.PublicURL, cfg.Server.SelfPingInterval)
	}

	// Reconnect users whose Telegram sessions survived the restart.
	go manager.Restore(ctx)

	go controlBot.Start()

	<-ctx.Done()
	log.Info("shutting down")

	controlBot.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	manager.Shutdown(shutdownCtx)

	log.Info("aura farm bot stopped")
}

func newMux(checker *health.Checker) *http.ServeMux {
	mux := http.NewServeMux()

	alive := func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Bot is alive!"))
	}
	mux.HandleFunc("/", alive)
	mux.HandleFunc("/ping", alive)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		results := checker.Check(r.Context())

		status := http.StatusOK
		for _, v := range results {
			if v != "OK" {
				status = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(results)
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// selfPing keeps free-tier hosts from idling the process out.
func selfPing(ctx context.Context, log *slog.Logger, publicURL string, interval time.Duration) {
	client := &http.Client{Timeout: 10 * time.Second}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, publicURL+"/ping", nil)
			if err != nil {
				log.Error("self-ping request build failed", slog.Any("error", err))
				continue
			}

			resp, err := client.Do(req)
			if err != nil {
				log.Warn("self-ping failed", slog.Any("error", err))
				continue
			}
			_ = resp.Body.Close()
		}
	}
}
