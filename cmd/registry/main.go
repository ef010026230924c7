// Точка входа файлового реестра.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// RabbitMQ и узлу IPFS, назначает первоначального администратора,
// инициализирует сервисный слой и API handlers, запускает HTTP-сервер
// с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/uyinene-ledger/registry/internal/api/handlers"
	"github.com/uyinene-ledger/registry/internal/api/middleware"
	"github.com/uyinene-ledger/registry/internal/config"
	"github.com/uyinene-ledger/registry/internal/database"
	"github.com/uyinene-ledger/registry/internal/events"
	"github.com/uyinene-ledger/registry/internal/ipfs"
	"github.com/uyinene-ledger/registry/internal/repository"
	"github.com/uyinene-ledger/registry/internal/server"
	"github.com/uyinene-ledger/registry/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Файловый реестр запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Репозитории и транзакции
	store := repository.NewStore(pool)
	runner := repository.NewTxRunner(pool)

	// 6. Публикация событий (RabbitMQ опционален)
	var publisher events.Publisher = events.NopPublisher{}
	var mqChecker handlers.ReadinessChecker
	if cfg.AMQPURL != "" {
		rabbit, rabbitErr := events.NewRabbitPublisher(cfg.AMQPURL, logger)
		if rabbitErr != nil {
			logger.Error("Ошибка подключения к RabbitMQ", slog.String("error", rabbitErr.Error()))
			os.Exit(1)
		}
		defer rabbit.Close()
		publisher = rabbit
		mqChecker = events.NewReadinessChecker(rabbit)
	} else {
		logger.Warn("FR_AMQP_URL не задан, публикация событий отключена")
	}

	// 7. IPFS-клиент
	ipfsClient := ipfs.New(cfg.IPFSURL, logger)
	logger.Info("IPFS клиент создан", slog.String("url", cfg.IPFSURL))

	// 8. Сервисный слой
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL, logger)
	registrySvc := service.NewRegistryService(runner, store, cache, publisher, logger)
	adminSvc := service.NewAdminService(store, logger)

	// 9. Первоначальный администратор
	if err := adminSvc.BootstrapAdmin(ctx, cfg.BootstrapAdmin); err != nil {
		logger.Error("Ошибка назначения первоначального администратора",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 10. Readiness checkers (PostgreSQL + RabbitMQ + IPFS)
	pgChecker := database.NewReadinessChecker(pool)
	ipfsChecker := ipfs.NewReadinessChecker(ipfsClient)
	healthHandler := handlers.NewHealthHandler(pgChecker, mqChecker, ipfsChecker)

	// 11. API handler
	apiHandler := handlers.NewAPIHandler(healthHandler, registrySvc, adminSvc, ipfsClient, logger)

	// 12. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.JWTIssuer,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Файловый реестр остановлен")
}
