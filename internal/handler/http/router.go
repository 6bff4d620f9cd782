package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/bulkpromo/internal/service"
	"github.com/utafrali/bulkpromo/pkg/health"
	"github.com/utafrali/bulkpromo/pkg/middleware"
)

// RouterConfig carries the settings the router needs from the service config.
type RouterConfig struct {
	ServiceName    string
	Environment    string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all bulk code routes registered.
func NewRouter(
	svc *service.BulkCodeService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.Environment = cfg.Environment
	if len(cfg.AllowedOrigins) > 0 {
		corsCfg.AllowedOrigins = cfg.AllowedOrigins
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	bulkHandler := NewBulkCodeHandler(svc, logger)
	sessionHandler := NewSessionHandler(svc, logger)

	r.Route("/api/v1/bulk-codes", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/validate", bulkHandler.Validate)
		r.Post("/preview", bulkHandler.Preview)
		r.Post("/generate", bulkHandler.Generate)
		r.Post("/suggestions", bulkHandler.Suggest)
		r.Get("/batches", bulkHandler.ListBatches)
		r.Get("/batches/{id}", bulkHandler.GetBatch)
	})

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.With(ContentTypeJSON).Post("/", sessionHandler.CreateSession)
		r.Get("/{id}", sessionHandler.GetSession)
		r.With(ContentTypeJSON).Put("/{id}", sessionHandler.UpdateSession)
		r.Delete("/{id}", sessionHandler.DeleteSession)
		r.Post("/{id}/preview", sessionHandler.PreviewSession)
		r.Post("/{id}/generate", sessionHandler.GenerateSession)
	})

	return r
}
