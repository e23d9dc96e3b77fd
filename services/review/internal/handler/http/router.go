package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jbytow/coffeetica/pkg/health"
	"github.com/jbytow/coffeetica/pkg/middleware"
	"github.com/jbytow/coffeetica/pkg/pagination"
	"github.com/jbytow/coffeetica/services/review/internal/service"
)

// RouterConfig carries the HTTP-level settings of the review service.
type RouterConfig struct {
	ServiceName        string
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
	FeedLimits         pagination.Limits
}

// NewRouter creates a chi router with all review service routes registered.
func NewRouter(
	reviewService *service.ReviewService,
	coffeeService *service.CoffeeService,
	validateToken middleware.TokenValidator,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins...)))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check and metrics endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	reviewHandler := NewReviewHandler(reviewService, cfg.FeedLimits, logger)
	requireAuth := middleware.Auth(validateToken)
	// Re-derive the request logger once the user id is known.
	userLogger := middleware.RequestLogger(logger)
	rateLimit := middleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst, logger)

	r.Route("/api/reviews", func(r chi.Router) {
		r.Get("/", reviewHandler.ListReviews)
		r.With(requireAuth, userLogger).Get("/user", reviewHandler.GetMine)
		r.Get("/{id}", reviewHandler.GetReview)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, userLogger, rateLimit)

			r.Post("/", reviewHandler.CreateReview)
			r.Put("/{id}", reviewHandler.UpdateReview)
			r.Delete("/{id}", reviewHandler.DeleteReview)
		})
	})

	coffeeHandler := NewCoffeeHandler(coffeeService, logger)

	r.Route("/api/coffees", func(r chi.Router) {
		r.Get("/{id}", coffeeHandler.GetCoffee)
	})

	return r
}
