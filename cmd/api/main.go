package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/athebyme/gomarket-platform/itemsync-service/config"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/adapters/cache"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/adapters/messaging"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/api"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/api/handlers"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/security"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
	"github.com/athebyme/gomarket-platform/itemsync-service/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/itemsync-service/pkg/tx"
)

// метрики для Prometheus
var (
	httpDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_durations_seconds",
		Help:    "Длительность HTTP запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	requestsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Общее количество HTTP запросов",
	}, []string{"method", "path", "status"})
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.ENV == "production")
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	log.Info("Инициализация сервиса",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
		interfaces.LogField{Key: "storage_driver", Value: cfg.Storage.Driver},
		interfaces.LogField{Key: "queue_driver", Value: cfg.Queue.Driver},
	)

	warehouse, audit, closeStorage, err := buildStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer closeStorage()
	log.Info("Хранилище инициализировано")

	queue, err := buildQueue(cfg, log)
	if err != nil {
		log.Fatal("Ошибка инициализации очереди", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer queue.Close()
	log.Info("Очередь инициализирована")

	clock := interfaces.SystemClock{}

	classifier := services.NewRequestClassifier(
		cfg.Classifier.SchedulerSourcePrefix,
		cfg.Classifier.SchedulerHeader,
	)
	mapper := services.NewItemMapper(cfg.BarcodeCutover(), cfg.Mapping.ApparelCategories)
	breaker := services.NewCircuitBreaker(services.CircuitBreakerSettings{
		FailureThreshold:  cfg.CircuitBreaker.FailureThreshold,
		DurationOfBreak:   cfg.DurationOfBreak(),
		SamplingDuration:  cfg.SamplingDuration(),
		MinimumThroughput: cfg.CircuitBreaker.MinimumThroughput,
	}, clock)
	publisher := services.NewResilientPublisher(queue, breaker, clock, log, services.PublisherSettings{
		Topic:             cfg.Publisher.Topic,
		MaxRetries:        cfg.Publisher.MaxRetries,
		BaseDelay:         time.Duration(cfg.Publisher.BaseDelayMs) * time.Millisecond,
		BackoffMultiplier: cfg.Publisher.BackoffMultiplier,
		BatchSize:         cfg.Publisher.BatchSize,
	})
	orchestrator := services.NewProcessingOrchestrator(
		warehouse, audit, mapper, publisher, clock, log, cfg.Fetcher.LatestLimit,
	)
	log.Info("Конвейер обработки инициализирован")

	var jwtManager *security.JWTManager
	if cfg.Security.AuthEnabled {
		jwtManager, err = security.NewJWTManager(cfg.Security.JWTSecret, 24*time.Hour, cfg.AppName)
		if err != nil {
			log.Fatal("Ошибка инициализации JWT", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}

	processHandler := handlers.NewProcessHandler(classifier, orchestrator, log, cfg.Server.DeadlineMargin)

	router := api.SetupRouter(api.RouterOptions{
		ProcessHandler:     processHandler,
		Logger:             log,
		CORSAllowedOrigins: cfg.Security.CORSAllowOrigins,
		InvocationBudget:   cfg.Server.InvocationBudget,
		JWTManager:         jwtManager,
		MetricsEnabled:     cfg.Metrics.Enabled,
		RequestsTotal:      requestsCounter,
		RequestDuration:    httpDurations,
	})
	log.Info("Маршрутизатор настроен")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Сервер запущен", interfaces.LogField{Key: "address", Value: server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Ошибка запуска сервера", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}()

	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error("Ошибка при graceful shutdown", interfaces.LogField{Key: "error", Value: err.Error()})
		}

		log.Info("HTTP сервер остановлен")
		close(done)
	}()

	<-done
	log.Info("Сервер корректно завершил работу")
}

// buildStorage собирает хранилище и журнал аудита по выбранному драйверу.
// Возвращаемая функция закрывает все созданные соединения.
func buildStorage(ctx context.Context, cfg *config.Config, log interfaces.LoggerPort) (storage.WarehousePort, storage.AuditPort, func(), error) {
	if cfg.Storage.Driver == config.DriverMemory {
		memCache := cache.NewMemoryCache(cfg.Redis.DefaultExpiration)
		warehouse := storage.NewCachedWarehouse(storage.NewMemoryWarehouse(), memCache, log, cfg.Redis.DefaultExpiration)
		return warehouse, storage.NewMemoryAudit(), func() {}, nil
	}

	connStr, err := utils.GenerateConnectionString(
		cfg.Postgres.Host,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
		cfg.Postgres.Port,
		cfg.Postgres.PoolSize,
		cfg.Postgres.Timeout,
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ошибка формирования строки подключения: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ошибка создания пула PostgreSQL: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.Postgres.Timeout)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}
	log.Info("Соединение с PostgreSQL проверено")

	warehouse, err := storage.NewWarehouseStorageWithPool(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	txm := tx.NewTxManager(pool, log)
	audit, err := storage.NewAuditStorage(pool, txm)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	// Кэш записей хранилища: Redis недоступен - выборка идет напрямую
	cacheClient, err := cache.NewRedisCache(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("Кэш недоступен, выборка будет идти напрямую из хранилища",
			interfaces.LogField{Key: "error", Value: err.Error()})
		return warehouse, audit, pool.Close, nil
	}
	log.Info("Кэш инициализирован")

	cached := storage.NewCachedWarehouse(warehouse, cacheClient, log, cfg.Redis.DefaultExpiration)
	closeAll := func() {
		if err := cacheClient.Close(); err != nil {
			log.Error("Ошибка при закрытии Redis", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		pool.Close()
	}
	return cached, audit, closeAll, nil
}

// buildQueue собирает очередь по выбранному драйверу
func buildQueue(cfg *config.Config, log interfaces.LoggerPort) (interfaces.QueuePort, error) {
	if cfg.Queue.Driver == config.DriverMemory {
		return messaging.NewMemoryQueue(), nil
	}
	return messaging.NewKafkaQueue(cfg.Kafka.Brokers, log)
}
