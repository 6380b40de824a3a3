// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/0x0BSoD/animeTimes/internal/config"
	"github.com/0x0BSoD/animeTimes/internal/fetcher"
	"github.com/0x0BSoD/animeTimes/internal/ledger"
	"github.com/0x0BSoD/animeTimes/internal/metrics"
	"github.com/0x0BSoD/animeTimes/internal/notifier"
	"github.com/0x0BSoD/animeTimes/internal/publisher"
	"github.com/0x0BSoD/animeTimes/internal/reporter"
	"github.com/0x0BSoD/animeTimes/internal/scheduler"
	"github.com/0x0BSoD/animeTimes/internal/source"
	"github.com/0x0BSoD/animeTimes/internal/storage"
	"github.com/0x0BSoD/animeTimes/internal/summary"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		return 1
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		slog.Error("failed to create botAPI", "err", err)
		return 1
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open ledger", "backend", cfg.LedgerBackend, "err", err)
		return 1
	}
	defer closeStore()

	key, err := ledger.KeyFuncByName(cfg.LedgerKey)
	if err != nil {
		slog.Error("invalid ledger key", "err", err)
		return 1
	}

	client := &http.Client{Timeout: cfg.RequestTimeout}

	ann, err := source.NewANNSource(cfg.BaseURL, client, cfg.Location(), cfg.AllDates)
	if err != nil {
		slog.Error("failed to create source", "base_url", cfg.BaseURL, "err", err)
		return 1
	}
	sources := []fetcher.Source{ann}
	for _, feed := range cfg.FeedURLs {
		sources = append(sources, source.NewRSSSource(feed, client))
	}

	summarizer, err := summary.New(summary.Options{
		Type:    cfg.AIType,
		BaseURL: cfg.AIBaseURL,
		Key:     cfg.AIKey,
		Prompt:  cfg.AIPrompt,
		Model:   cfg.AIModel,
		Timeout: cfg.AITimeout,
	})
	if err != nil {
		slog.Error("failed to create summarizer", "err", err)
		return 1
	}
	if summarizer != nil {
		slog.Info("using summarizer", "type", cfg.AIType, "model", cfg.AIModel)
	}

	telegram, err := publisher.NewTelegram(botAPI, cfg.TelegramChatID, cfg.Signature, cfg.ParseMode, client)
	if err != nil {
		slog.Error("failed to create publisher", "err", err)
		return 1
	}

	var (
		m      = metrics.New()
		report = reporter.New(botAPI, cfg.TelegramAdminChatID)
		n      = notifier.New(
			store,
			fetcher.New(sources, ann, cfg.FilterKeywords, cfg.FetchWorkers, fetcher.DefaultBackoff),
			telegram,
			summarizer,
			m,
			key,
			cfg.SendInterval,
			cfg.LedgerMaxEntries,
		)
	)

	runJob := func() error {
		r, err := n.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("run failed", "run_id", r.RunID, "err", err)
			report.Notifyf("anime news run %s failed after %d posts: %v", r.RunID, r.Posted, err)
		}
		return err
	}

	if cfg.Schedule == "" {
		if err := runJob(); err != nil {
			return 1
		}
		return 0
	}

	if err := watch(ctx, cfg, m, runJob); err != nil {
		slog.Error("watch mode stopped", "err", err)
		return 1
	}
	return 0
}

// openStore returns the ledger store for the configured backend and a func
// releasing it.
func openStore(ctx context.Context, cfg config.Config) (ledger.Store, func(), error) {
	switch cfg.LedgerBackend {
	case storage.DriverPostgres, storage.DriverSQLite:
		db, err := storage.Open(ctx, cfg.LedgerBackend, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using sql ledger", "driver", cfg.LedgerBackend)
		return storage.NewLedgerStorage(db), func() { db.Close() }, nil
	default:
		fs := ledger.NewFileStore(cfg.LedgerPath)
		slog.Info("using file ledger", "path", fs.Path())
		return fs, func() {}, nil
	}
}

// watch runs job on cfg.Schedule until ctx is cancelled and serves health
// and metrics meanwhile.
func watch(ctx context.Context, cfg config.Config, m *metrics.Metrics, job func() error) error {
	sched, err := scheduler.New(cfg.Location())
	if err != nil {
		return err
	}
	if err := sched.AddJob("anime-news", cfg.Schedule, func() { _ = job() }); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to run http server", "err", err)
			return
		}
		slog.Info("http server stopped")
	}()

	sched.Start()
	slog.Info("watch mode started", "schedule", cfg.Schedule, "http_addr", cfg.HTTPAddr)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := sched.Stop(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
