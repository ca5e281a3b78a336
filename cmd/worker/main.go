package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/athebyme/gomarket-platform/itemsync-service/config"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/adapters/cache"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/adapters/messaging"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
	"github.com/athebyme/gomarket-platform/itemsync-service/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/itemsync-service/pkg/tx"
)

// Метрики для Prometheus
var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_runs_total",
		Help: "Общее количество плановых запусков конвейера",
	}, []string{"status"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worker_run_duration_seconds",
		Help:    "Длительность одного планового запуска",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	itemsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_items_published_total",
		Help: "Количество товаров, опубликованных плановыми запусками",
	})
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
	log.Info("Инициализация воркера",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName + "-worker"},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
		interfaces.LogField{Key: "interval", Value: cfg.Worker.Interval.String()},
	)

	// HTTP сервер для метрик, если они включены
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("OK"))
			})

			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			log.Info("Запуск HTTP сервера для метрик",
				interfaces.LogField{Key: "addr", Value: addr})

			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error("Ошибка запуска HTTP сервера для метрик",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}()
	}

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

	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")
		cancel()
		close(done)
	}()

	log.Info("Воркер запущен")
	runLoop(ctx, cfg, orchestrator, log)

	<-done
	log.Info("Воркер корректно завершил работу")
}

// runLoop выполняет плановые запуски конвейера с заданным интервалом.
// Плановый запуск эквивалентен пустому запросу: обрабатываются
// последние обновленные товары.
func runLoop(ctx context.Context, cfg *config.Config, orchestrator *services.ProcessingOrchestrator, log interfaces.LoggerPort) {
	ticker := time.NewTicker(cfg.Worker.Interval)
	defer ticker.Stop()

	for {
		runOnce(ctx, cfg, orchestrator, log)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runOnce(ctx context.Context, cfg *config.Config, orchestrator *services.ProcessingOrchestrator, log interfaces.LoggerPort) {
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, cfg.Server.InvocationBudget-cfg.Server.DeadlineMargin)
	defer cancel()
	runCtx = utils.WithTraceID(runCtx, uuid.New().String())

	resp, err := orchestrator.Process(runCtx, &models.ProcessRequest{})
	duration := time.Since(start)

	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		runDuration.WithLabelValues("error").Observe(duration.Seconds())
		log.ErrorWithContext(runCtx, "Плановый запуск завершился с ошибкой",
			interfaces.LogField{Key: "error", Value: err.Error()},
			interfaces.LogField{Key: "duration", Value: duration.String()})
		return
	}

	status := "success"
	if resp.PublishError != "" {
		status = "publish_failed"
	}
	runsTotal.WithLabelValues(status).Inc()
	runDuration.WithLabelValues(status).Observe(duration.Seconds())
	itemsPublished.Add(float64(resp.ItemsPublished))

	log.InfoWithContext(runCtx, "Плановый запуск завершен",
		interfaces.LogField{Key: "processed", Value: resp.ItemsProcessed},
		interfaces.LogField{Key: "published", Value: resp.ItemsPublished},
		interfaces.LogField{Key: "failed", Value: resp.ItemsFailed},
		interfaces.LogField{Key: "duration", Value: duration.String()})
}

// buildStorage собирает хранилище и журнал аудита по выбранному драйверу
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

	cacheClient, err := cache.NewRedisCache(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("Кэш недоступен, выборка будет идти напрямую из хранилища",
			interfaces.LogField{Key: "error", Value: err.Error()})
		return warehouse, audit, pool.Close, nil
	}

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
