// Package main - точка входа HTTP-сервера PyShark.
//
// Сервер отвечает за:
// - REST API прогресса ученика (уроки, XP, достижения, дневная цель)
// - Экспорт, импорт и резервное копирование записи
// - Ночной сброс дневной цели и ночной бэкап по расписанию
// - /health и /metrics для эксплуатации
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/MirasRuslanJR/PyShark/config"
	"github.com/MirasRuslanJR/PyShark/internal/application/eventhandler"
	"github.com/MirasRuslanJR/PyShark/internal/application/ledger"
	"github.com/MirasRuslanJR/PyShark/internal/domain/curriculum"
	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/backup"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/messaging"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/metrics"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/persistence"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/scheduler"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/MirasRuslanJR/PyShark/internal/interface/http"
	"github.com/MirasRuslanJR/PyShark/internal/interface/http/handlers"
	"github.com/MirasRuslanJR/PyShark/pkg/logger"
)

// eventBus is what both bus implementations provide.
type eventBus interface {
	shared.EventPublisher
	shared.EventSubscriber
	Close() error
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		FilePath:    cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
		JSONConsole: cfg.Log.JSONConsole,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting PyShark server",
		zap.String("env", string(cfg.App.Environment)),
		zap.String("timezone", cfg.Location().String()),
		logger.Backend(cfg.Store.Backend),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. МЕТРИКИ И ХРАНИЛИЩЕ
	// ─────────────────────────────────────────────────────────────────────────
	m := metrics.New()

	store, err := persistence.Open(ctx, cfg.Store, log, m)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("store close failed", zap.Error(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ШИНА СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.InMemoryEventBusConfig{Logger: log, Observer: m}

	var bus eventBus
	if store.Redis != nil {
		bus, err = messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(store.Redis),
			LocalBusConfig: busCfg,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start redis event bus: %w", err)
		}
		log.Info("events fan out over redis")
	} else {
		bus = messaging.NewInMemoryEventBus(busCfg)
	}
	defer func() { _ = bus.Close() }()

	feed := eventhandler.NewNotificationFeed(cfg.App.NotificationFeedSize, log)
	if err := feed.Subscribe(bus); err != nil {
		return fmt.Errorf("failed to subscribe notification feed: %w", err)
	}
	if err := m.Subscribe(bus); err != nil {
		return fmt.Errorf("failed to subscribe metrics: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЛЕДЖЕР ПРОГРЕССА
	// ─────────────────────────────────────────────────────────────────────────
	svc := ledger.NewService(store.Store, curriculum.Default(),
		ledger.WithKey(cfg.Store.Key),
		ledger.WithLocation(cfg.Location()),
		ledger.WithStoreTimeout(cfg.Store.Timeout),
		ledger.WithPublisher(bus),
		ledger.WithRecorder(m),
		ledger.WithLogger(log),
	)
	if _, err := svc.Load(ctx); err != nil {
		if !shared.IsStorageUnavailable(err) {
			return fmt.Errorf("failed to load progress: %w", err)
		}
		log.Warn("progress store unavailable at startup, serving defaults in memory", zap.Error(err))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. РЕЗЕРВНОЕ КОПИРОВАНИЕ (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var archiver *backup.Archiver
	if cfg.Backup.Enabled() {
		sink, err := backup.NewObjectSink(cfg.Backup)
		if err != nil {
			return fmt.Errorf("failed to create backup sink: %w", err)
		}
		if err := sink.EnsureBucket(ctx); err != nil {
			log.Warn("backup bucket check failed, backups may fail", zap.Error(err))
		}
		archiver = backup.NewArchiver(svc, sink, sink.Prefix(), log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:   log,
			Timezone: cfg.Location(),
		})
		if err := sched.RegisterDaily(jobs.NewDayRolloverJob(svc, log), cfg.Scheduler.RolloverAt); err != nil {
			return fmt.Errorf("failed to register rollover job: %w", err)
		}
		if archiver != nil {
			if err := sched.RegisterDaily(jobs.NewBackupJob(archiver), cfg.Scheduler.BackupAt); err != nil {
				return fmt.Errorf("failed to register backup job: %w", err)
			}
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(httpapi.Version)
	health.AddCheck("store", handlers.NewPingCheck(store.Store))

	server := httpapi.NewServer(httpapi.ConfigFrom(cfg.HTTP), httpapi.Dependencies{
		Ledger:        svc,
		Feed:          feed,
		HealthChecker: health,
		Metrics:       m,
		Logger:        log,
	})
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ОЖИДАНИЕ СИГНАЛА И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok && err != nil {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	if sched != nil {
		if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			log.Error("scheduler stop failed", zap.Error(err))
		}
	}

	log.Info("PyShark server stopped")
	return serveErr
}
