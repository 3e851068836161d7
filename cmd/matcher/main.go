// Package main - точка входа для прогона подбора пар (Matcher).
//
// Matcher запускается администратором вручную для одного батча:
//
//	matcher -batch 2026-valentines [-dry-run]
//
// Загружает отправленные анкеты, считает совместимость, находит пары и
// атомарно заменяет пары батча. Сводка прогона печатается в stdout как JSON,
// логи идут в stderr. Ноль пар - успешный результат; ненулевой код выхода
// только при ошибке конфигурации или инфраструктуры.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campus-cupid/matchmaker/config"
	"github.com/campus-cupid/matchmaker/internal/application/command"
	"github.com/campus-cupid/matchmaker/internal/domain/matching"
	"github.com/campus-cupid/matchmaker/internal/infrastructure/persistence/postgres"
	"github.com/campus-cupid/matchmaker/internal/infrastructure/persistence/redis"
	"github.com/campus-cupid/matchmaker/pkg/logger"
	"github.com/campus-cupid/matchmaker/pkg/tracing"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	batch := flag.String("batch", "", "batch id to match (required)")
	dryRun := flag.Bool("dry-run", false, "compute matches without writing them")
	flag.Parse()

	// Отмена по Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *batch, *dryRun, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, batch string, dryRun bool, out io.Writer) error {
	if batch == "" {
		return fmt.Errorf("-batch is required")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ И ТРАССИРОВКИ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	defer log.Sync()

	log.Info("starting matcher",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.BatchID(batch),
		logger.Bool("dry_run", dryRun),
		logger.String("combiner", string(cfg.Matching.Policy.Combiner)),
		logger.Int("quota", cfg.Matching.Policy.Quota),
		logger.Int("questions", cfg.Matching.Catalog.Len()),
	)

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.App.Name,
		Environment: string(cfg.App.Environment),
		Version:     cfg.App.Version,
		Enabled:     cfg.Observability.TracingEnabled,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing shutdown failed", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnection(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.AutoMigrate {
		applied, err := postgres.NewMigrator(dbConn).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", logger.Int("applied", applied))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (опционально: блокировка прогона и кэш статистики)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		runLock    matching.RunLock
		statsCache matching.StatsCache
	)
	if !cfg.Redis.Disabled {
		cache, err := redis.NewCache(ctx, cfg.Redis)
		if err != nil {
			log.Warn("failed to connect to Redis, running without run lock and stats cache", logger.Err(err))
		} else {
			defer cache.Close()
			runLock = redis.NewRunLock(cache, cfg.Matching.LockTTL)
			statsCache = redis.NewStatsCache(cache, cfg.Matching.StatsTTL)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ОБРАБОТЧИК
	// ─────────────────────────────────────────────────────────────────────────
	handler, err := command.NewRunMatchingHandler(
		postgres.NewUserRepository(dbConn),
		postgres.NewMatchRepository(dbConn),
		postgres.NewRunRepository(dbConn),
		runLock,
		statsCache,
		command.RunMatchingHandlerConfig{
			Catalog:      cfg.Matching.Catalog,
			Policy:       cfg.Matching.Policy,
			Features:     cfg.Features,
			Concurrency:  cfg.Matching.ScoringConcurrency,
			LockAttempts: 3,
			Logger:       log,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to build handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ПРОГОН
	// ─────────────────────────────────────────────────────────────────────────
	runCtx, cancel := context.WithTimeout(ctx, cfg.Matching.RunTimeout)
	defer cancel()

	result, err := handler.Handle(runCtx, command.RunMatchingCommand{BatchID: batch, DryRun: dryRun})
	if err != nil {
		return err
	}

	return writeSummary(out, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// summary - то, что видит администратор после прогона.
type summary struct {
	Stats      matching.Stats `json:"stats"`
	Preferred  int            `json:"preferred_pairs"`
	Ineligible int            `json:"ineligible_users"`
	Malformed  int            `json:"malformed_answers"`
	Message    string         `json:"message,omitempty"`
}

func writeSummary(out io.Writer, result *command.RunMatchingResult) error {
	s := summary{
		Stats:      result.Stats,
		Preferred:  len(result.Preferred),
		Ineligible: len(result.Ineligible),
		Malformed:  len(result.Issues),
	}
	if !result.Stats.HasMatches() {
		s.Message = "no matches yet, questionnaires are still being processed"
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// setupLogger настраивает структурированное логирование. stdout занят сводкой,
// поэтому логи пишутся в stderr.
func setupLogger(cfg *config.Config) *logger.Logger {
	logger.SetHashSalt(cfg.Observability.LogHashSalt)

	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}

	return logger.New(logger.Options{
		Output:    os.Stderr,
		Level:     level,
		Format:    logger.Format(cfg.Observability.LogFormat),
		AddCaller: !cfg.IsProduction(),
	}).With(logger.String("service", cfg.App.Name))
}
