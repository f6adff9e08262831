// Package main - CLI для обслуживания записи прогресса PyShark.
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
	"github.com/MirasRuslanJR/PyShark/internal/application/ledger"
	"github.com/MirasRuslanJR/PyShark/internal/domain/curriculum"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/backup"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/persistence"
	"github.com/MirasRuslanJR/PyShark/internal/tools/ledgerctl"
	"github.com/MirasRuslanJR/PyShark/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerctl: %v\n", err)
		if errors.Is(err, ledgerctl.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Консоль CLI принадлежит выводу команд; логи уходят в stderr и файл.
	log, err := logger.New(logger.Options{
		Level:      "warn",
		FilePath:   cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Console:    os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	store, err := persistence.Open(ctx, cfg.Store, log, nil)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("store close failed", zap.Error(err))
		}
	}()

	lessons := curriculum.Default()
	svc := ledger.NewService(store.Store, lessons,
		ledger.WithKey(cfg.Store.Key),
		ledger.WithLocation(cfg.Location()),
		ledger.WithStoreTimeout(cfg.Store.Timeout),
		ledger.WithLogger(log),
	)
	// Never act on in-memory defaults when the store is unreachable.
	if _, err := svc.Load(ctx); err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}

	app := ledgerctl.App{
		Ledger:  svc,
		Lessons: lessons.Lessons(),
		Out:     os.Stdout,
		Err:     os.Stderr,
	}
	if store.Store.KeepsHistory() {
		app.History = store.Store
	}
	if cfg.Backup.Enabled() {
		sink, err := backup.NewObjectSink(cfg.Backup)
		if err != nil {
			return fmt.Errorf("failed to create backup sink: %w", err)
		}
		app.Archiver = backup.NewArchiver(svc, sink, sink.Prefix(), log)
		app.Backups = sink
	}

	return ledgerctl.Run(ctx, app, args)
}
