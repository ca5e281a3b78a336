package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/api/handlers"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/api/middleware"
	"github.com/athebyme/gomarket-platform/itemsync-service/internal/security"
	"github.com/athebyme/gomarket-platform/itemsync-service/pkg/interfaces"
)

// RouterOptions зависимости и настройки маршрутизатора
type RouterOptions struct {
	ProcessHandler     *handlers.ProcessHandler
	Logger             interfaces.LoggerPort
	CORSAllowedOrigins []string
	InvocationBudget   time.Duration
	JWTManager         *security.JWTManager // nil, если аутентификация выключена
	MetricsEnabled     bool
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
}

// SetupRouter настраивает маршрутизатор
func SetupRouter(opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.Recoverer(opts.Logger))
	r.Use(middleware.Timeout(opts.InvocationBudget))
	r.Use(middleware.CORS(opts.CORSAllowedOrigins))
	if opts.MetricsEnabled && opts.RequestsTotal != nil && opts.RequestDuration != nil {
		r.Use(middleware.Metrics(opts.RequestsTotal, opts.RequestDuration))
	}

	r.Method(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	r.Method(http.MethodHead, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if opts.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if opts.JWTManager != nil {
			r.Use(middleware.Auth(opts.JWTManager, opts.Logger))
		}

		r.Route("/items", func(r chi.Router) {
			// Единая точка входа конвейера, форма тела определяется классификатором
			r.Post("/process", opts.ProcessHandler.Process)
		})
	})

	return r
}
