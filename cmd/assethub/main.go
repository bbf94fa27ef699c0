// Точка входа Assethub — backend управления ассетами.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL
// и объектному хранилищу, собирает сервисный слой и GraphQL-схему,
// запускает topologymetrics и HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	apigraphql "github.com/avkuznetsov/assethub/internal/api/graphql"
	"github.com/avkuznetsov/assethub/internal/api/handlers"
	"github.com/avkuznetsov/assethub/internal/api/middleware"
	"github.com/avkuznetsov/assethub/internal/config"
	"github.com/avkuznetsov/assethub/internal/database"
	"github.com/avkuznetsov/assethub/internal/domain/model"
	"github.com/avkuznetsov/assethub/internal/repository"
	"github.com/avkuznetsov/assethub/internal/server"
	"github.com/avkuznetsov/assethub/internal/service"
	"github.com/avkuznetsov/assethub/internal/storage"
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
	logger.Info("Assethub запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("AH_DEPHEALTH_GROUP") == "" {
		logger.Warn("AH_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

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

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Клиент объектного хранилища
	store, err := storage.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := store.CheckBucket(ctx); err != nil {
		// Хранилище может подняться позже — readiness probe отразит состояние.
		logger.Warn("Bucket недоступен при старте",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("error", err.Error()),
		)
	}

	// 6. Repositories
	assetRepo := repository.NewAssetRepository(pool)
	namespaceRepo := repository.NewNamespaceRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	groupRepo := repository.NewGroupRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	permRepo := repository.NewPermissionRepository(pool)
	membershipRepo := repository.NewMembershipRepository(pool)

	// 7. Кэши
	nsCache := service.NewCache[*model.Namespace]("namespaces", cfg.NamespaceCacheSize, cfg.NamespaceCacheTTL)
	permCache := service.NewCache[[]*model.Permission]("permissions", cfg.PermissionCacheSize, cfg.PermissionCacheTTL)

	// 8. Services
	namespacesSvc := service.NewNamespaceService(namespaceRepo, nsCache, logger)
	limitsSvc := service.NewRateLimitService(
		assetRepo,
		cfg.UploadsPerHour, cfg.UploadsPerDay, cfg.StorageQuotaBytes,
		logger,
	)
	assetsSvc := service.NewAssetService(
		assetRepo, namespacesSvc, limitsSvc, store,
		cfg.PresignTTL,
		logger,
	)
	accessSvc := service.NewAccessService(
		userRepo, groupRepo, roleRepo, permRepo, membershipRepo,
		permCache,
		logger,
	)

	// 9. topologymetrics — мониторинг зависимостей (PostgreSQL + хранилище)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"assethub",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.S3Endpoint,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 10. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.JWTIssuer,
		cfg.RoleAdminGroups,
		cfg.RoleReadonlyGroups,
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

	// 11. Health handler (readiness: PostgreSQL + хранилище)
	pgChecker := database.NewReadinessChecker(pool)
	s3Checker := &storage.ReadinessChecker{Client: store}
	healthHandler := handlers.NewHealthHandler(pgChecker, s3Checker)

	// 12. GraphQL: резолвер, схема, HTTP-обработчик
	resolver := apigraphql.NewResolver(assetsSvc, accessSvc, namespacesSvc, limitsSvc, logger)
	schema, err := apigraphql.NewSchema(resolver)
	if err != nil {
		logger.Error("Ошибка сборки GraphQL-схемы", slog.String("error", err.Error()))
		os.Exit(1)
	}
	gqlHandler := apigraphql.NewHandler(schema, logger)

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, gqlHandler, healthHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Graceful shutdown фоновых задач
	if dephealthSvc != nil && dephealthErr == nil {
		dephealthSvc.Stop()
	}

	logger.Info("Assethub остановлен")
}
