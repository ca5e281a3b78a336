package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
)

// Драйверы хранилища и очереди, выбираются один раз на старте процесса
const (
	DriverPostgres = "postgres"
	DriverKafka    = "kafka"
	DriverMemory   = "memory"
)

// Config содержит все настройки сервиса
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string

	Server struct {
		Host             string
		Port             int
		ReadTimeout      time.Duration
		WriteTimeout     time.Duration
		ShutdownTimeout  time.Duration
		InvocationBudget time.Duration // общий бюджет времени одного вызова
		DeadlineMargin   time.Duration // запас, вычитаемый из бюджета перед публикацией
	}

	Postgres struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
		Timeout  time.Duration
		PoolSize int // размер пула соединений
	}

	Redis struct {
		Host              string
		Port              int
		Password          string
		DB                int
		DefaultExpiration time.Duration // срок действия кэша по умолчанию
	}

	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		GroupID string   `mapstructure:"group_id"`
	}

	// Publisher - настройки отказоустойчивой публикации в очередь
	Publisher struct {
		Topic             string  // тема очереди для публикации
		MaxRetries        int     // повторов на пакет, границы 0-10
		BaseDelayMs       int     // базовая задержка повтора в мс, > 0
		BackoffMultiplier float64 // множитель экспоненциальной задержки, > 1.0
		BatchSize         int     // размер пакета, границы 1-500
	}

	// CircuitBreaker - настройки предохранителя публикации
	CircuitBreaker struct {
		FailureThreshold        int // границы 1-20; порог/10 дает долю отказов
		DurationOfBreakSeconds  int // границы 1-300
		SamplingDurationSeconds int // границы 1-600
		MinimumThroughput       int // границы 1-100
	}

	Fetcher struct {
		LatestLimit int // сколько последних товаров брать при пустом запросе
	}

	Mapping struct {
		BarcodeCutoverDate string   // дата переключения правила штрихкодов, YYYY-MM-DD
		ApparelCategories  []string // маркеры категорий одежды/текстиля
	}

	Classifier struct {
		SchedulerSourcePrefix string // префикс источника планировщика
		SchedulerHeader       string // служебный заголовок планировщика
	}

	Storage struct {
		Driver string // postgres | memory
	}

	Queue struct {
		Driver string // kafka | memory
	}

	Metrics struct {
		Enabled bool
		Port    int `mapstructure:"port"`
	}

	Security struct {
		AuthEnabled      bool
		JWTSecret        string
		CORSAllowOrigins []string
	}

	Worker struct {
		Interval time.Duration // период планового запуска обработки
	}
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	configFile := "config"
	if configPath != "" {
		configFile = configPath
	}

	var cfg Config

	// Настройка Viper
	viper.SetConfigName(configFile)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("../config")
	viper.AddConfigPath("../../config")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Чтение конфигурационного файла
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
		// Продолжаем, если файл не найден, будем использовать только переменные окружения
	}

	setDefaults()
	bindEnvVariables()

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка десериализации конфигурации: %w", err)
	}

	cfg.ENV = viper.GetString("env")
	if cfg.ENV == "" {
		cfg.ENV = "development"
		if envVar := os.Getenv("APP_ENV"); envVar != "" {
			cfg.ENV = envVar
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет обязательные настройки и допустимые границы.
// Нарушение фатально: процесс не должен обслужить ни одного вызова.
func (c *Config) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", utils.ErrConfigInvalid, fmt.Sprintf(format, args...))
	}

	if c.Publisher.Topic == "" {
		return fail("publisher.topic не задан")
	}
	if c.Publisher.MaxRetries < 0 || c.Publisher.MaxRetries > 10 {
		return fail("publisher.maxRetries=%d вне границ [0,10]", c.Publisher.MaxRetries)
	}
	if c.Publisher.BaseDelayMs <= 0 {
		return fail("publisher.baseDelayMs=%d должен быть > 0", c.Publisher.BaseDelayMs)
	}
	if c.Publisher.BackoffMultiplier <= 1.0 {
		return fail("publisher.backoffMultiplier=%v должен быть > 1.0", c.Publisher.BackoffMultiplier)
	}
	if c.Publisher.BatchSize < 1 || c.Publisher.BatchSize > 500 {
		return fail("publisher.batchSize=%d вне границ [1,500]", c.Publisher.BatchSize)
	}
	if c.CircuitBreaker.FailureThreshold < 1 || c.CircuitBreaker.FailureThreshold > 20 {
		return fail("circuitBreaker.failureThreshold=%d вне границ [1,20]", c.CircuitBreaker.FailureThreshold)
	}
	if c.CircuitBreaker.DurationOfBreakSeconds < 1 || c.CircuitBreaker.DurationOfBreakSeconds > 300 {
		return fail("circuitBreaker.durationOfBreakSeconds=%d вне границ [1,300]", c.CircuitBreaker.DurationOfBreakSeconds)
	}
	if c.CircuitBreaker.SamplingDurationSeconds < 1 || c.CircuitBreaker.SamplingDurationSeconds > 600 {
		return fail("circuitBreaker.samplingDurationSeconds=%d вне границ [1,600]", c.CircuitBreaker.SamplingDurationSeconds)
	}
	if c.CircuitBreaker.MinimumThroughput < 1 || c.CircuitBreaker.MinimumThroughput > 100 {
		return fail("circuitBreaker.minimumThroughput=%d вне границ [1,100]", c.CircuitBreaker.MinimumThroughput)
	}
	if c.Fetcher.LatestLimit < 1 {
		return fail("fetcher.latestLimit=%d должен быть >= 1", c.Fetcher.LatestLimit)
	}
	if _, err := time.Parse("2006-01-02", c.Mapping.BarcodeCutoverDate); err != nil {
		return fail("mapping.barcodeCutoverDate=%q не является датой YYYY-MM-DD", c.Mapping.BarcodeCutoverDate)
	}
	if c.Storage.Driver != DriverPostgres && c.Storage.Driver != DriverMemory {
		return fail("storage.driver=%q не поддерживается", c.Storage.Driver)
	}
	if c.Queue.Driver != DriverKafka && c.Queue.Driver != DriverMemory {
		return fail("queue.driver=%q не поддерживается", c.Queue.Driver)
	}
	if c.Security.AuthEnabled && c.Security.JWTSecret == "" {
		return fail("security.jwtSecret обязателен при security.authEnabled")
	}

	return nil
}

// BarcodeCutover возвращает разобранную дату переключения правила штрихкодов.
// Вызывается после Validate, поэтому ошибки разбора быть не может.
func (c *Config) BarcodeCutover() time.Time {
	t, _ := time.Parse("2006-01-02", c.Mapping.BarcodeCutoverDate)
	return t
}

// DurationOfBreak возвращает длительность размыкания предохранителя
func (c *Config) DurationOfBreak() time.Duration {
	return time.Duration(c.CircuitBreaker.DurationOfBreakSeconds) * time.Second
}

// SamplingDuration возвращает длительность окна выборки предохранителя
func (c *Config) SamplingDuration() time.Duration {
	return time.Duration(c.CircuitBreaker.SamplingDurationSeconds) * time.Second
}

// setDefaults устанавливает значения по умолчанию
func setDefaults() {
	// Основные настройки
	viper.SetDefault("appName", "itemsync-service")
	viper.SetDefault("version", "1.0.0")
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("env", "development")

	// Настройки сервера
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", "10s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "5s")
	viper.SetDefault("server.invocationBudget", "60s")
	viper.SetDefault("server.deadlineMargin", "3s")

	// Настройки Postgres
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.user", "postgres")
	viper.SetDefault("postgres.password", "postgres")
	viper.SetDefault("postgres.dbname", "postgres")
	viper.SetDefault("postgres.sslmode", "disable")
	viper.SetDefault("postgres.timeout", "5s")
	viper.SetDefault("postgres.poolSize", 10)

	// Настройки Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.defaultExpiration", "10m")

	// Настройки Kafka
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.groupID", "itemsync-service")

	// Настройки публикации
	viper.SetDefault("publisher.topic", "unified-items")
	viper.SetDefault("publisher.maxRetries", 2)
	viper.SetDefault("publisher.baseDelayMs", 1000)
	viper.SetDefault("publisher.backoffMultiplier", 2.0)
	viper.SetDefault("publisher.batchSize", 100)

	// Настройки предохранителя
	viper.SetDefault("circuitBreaker.failureThreshold", 5)
	viper.SetDefault("circuitBreaker.durationOfBreakSeconds", 30)
	viper.SetDefault("circuitBreaker.samplingDurationSeconds", 60)
	viper.SetDefault("circuitBreaker.minimumThroughput", 3)

	// Настройки выборки товаров
	viper.SetDefault("fetcher.latestLimit", 100)

	// Настройки маппинга
	viper.SetDefault("mapping.barcodeCutoverDate", "2020-01-01")
	viper.SetDefault("mapping.apparelCategories", []string{"apparel", "clothing", "textile"})

	// Настройки классификатора вызовов
	viper.SetDefault("classifier.schedulerSourcePrefix", "aws.events")
	viper.SetDefault("classifier.schedulerHeader", "X-Scheduler-Event")

	// Выбор реализаций
	viper.SetDefault("storage.driver", DriverPostgres)
	viper.SetDefault("queue.driver", DriverKafka)

	// Настройки метрик
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	// Настройки безопасности
	viper.SetDefault("security.authEnabled", false)
	viper.SetDefault("security.jwtSecret", "")
	viper.SetDefault("security.corsAllowOrigins", []string{"*"})

	// Настройки воркера
	viper.SetDefault("worker.interval", "5m")
}

// bindEnvVariables привязывает переменные окружения к конфигурации
func bindEnvVariables() {
	// Основные настройки
	viper.BindEnv("appName", "APP_NAME")
	viper.BindEnv("version", "APP_VERSION")
	viper.BindEnv("logLevel", "LOG_LEVEL")
	viper.BindEnv("env", "APP_ENV")

	// Настройки сервера
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.readTimeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.writeTimeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.shutdownTimeout", "SERVER_SHUTDOWN_TIMEOUT")
	viper.BindEnv("server.invocationBudget", "SERVER_INVOCATION_BUDGET")
	viper.BindEnv("server.deadlineMargin", "SERVER_DEADLINE_MARGIN")

	// Настройки Postgres
	viper.BindEnv("postgres.host", "POSTGRES_HOST")
	viper.BindEnv("postgres.port", "POSTGRES_PORT")
	viper.BindEnv("postgres.user", "POSTGRES_USER")
	viper.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	viper.BindEnv("postgres.dbname", "POSTGRES_DBNAME")
	viper.BindEnv("postgres.sslmode", "POSTGRES_SSLMODE")
	viper.BindEnv("postgres.timeout", "POSTGRES_TIMEOUT")
	viper.BindEnv("postgres.poolSize", "POSTGRES_POOL_SIZE")

	// Настройки Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("redis.defaultExpiration", "REDIS_DEFAULT_EXPIRATION")

	// Настройки Kafka
	viper.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	viper.BindEnv("kafka.groupID", "KAFKA_GROUP_ID")

	// Настройки публикации
	viper.BindEnv("publisher.topic", "PUBLISHER_TOPIC")
	viper.BindEnv("publisher.maxRetries", "PUBLISHER_MAX_RETRIES")
	viper.BindEnv("publisher.baseDelayMs", "PUBLISHER_BASE_DELAY_MS")
	viper.BindEnv("publisher.backoffMultiplier", "PUBLISHER_BACKOFF_MULTIPLIER")
	viper.BindEnv("publisher.batchSize", "PUBLISHER_BATCH_SIZE")

	// Настройки предохранителя
	viper.BindEnv("circuitBreaker.failureThreshold", "CIRCUIT_BREAKER_FAILURE_THRESHOLD")
	viper.BindEnv("circuitBreaker.durationOfBreakSeconds", "CIRCUIT_BREAKER_DURATION_OF_BREAK_SECONDS")
	viper.BindEnv("circuitBreaker.samplingDurationSeconds", "CIRCUIT_BREAKER_SAMPLING_DURATION_SECONDS")
	viper.BindEnv("circuitBreaker.minimumThroughput", "CIRCUIT_BREAKER_MINIMUM_THROUGHPUT")

	// Настройки выборки товаров
	viper.BindEnv("fetcher.latestLimit", "FETCHER_LATEST_LIMIT")

	// Настройки маппинга
	viper.BindEnv("mapping.barcodeCutoverDate", "MAPPING_BARCODE_CUTOVER_DATE")
	viper.BindEnv("mapping.apparelCategories", "MAPPING_APPAREL_CATEGORIES")

	// Настройки классификатора вызовов
	viper.BindEnv("classifier.schedulerSourcePrefix", "CLASSIFIER_SCHEDULER_SOURCE_PREFIX")
	viper.BindEnv("classifier.schedulerHeader", "CLASSIFIER_SCHEDULER_HEADER")

	// Выбор реализаций
	viper.BindEnv("storage.driver", "STORAGE_DRIVER")
	viper.BindEnv("queue.driver", "QUEUE_DRIVER")

	// Настройки метрик
	viper.BindEnv("metrics.enabled", "METRICS_ENABLED")
	viper.BindEnv("metrics.port", "METRICS_PORT")

	// Настройки безопасности
	viper.BindEnv("security.authEnabled", "SECURITY_AUTH_ENABLED")
	viper.BindEnv("security.jwtSecret", "JWT_SECRET")
	viper.BindEnv("security.corsAllowOrigins", "CORS_ALLOW_ORIGINS")

	// Настройки воркера
	viper.BindEnv("worker.interval", "WORKER_INTERVAL")
}
