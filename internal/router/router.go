package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/medreturn-api/internal/handler/prometheus"
	"github.com/jwalitptl/medreturn-api/internal/middleware"
)

const apiVersion = "1.0"

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// StreamHandler serves long-lived responses that must not be cut short by
// the request timeout.
type StreamHandler interface {
	RegisterStreamRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	RateClientTTL    time.Duration
	CORSConfig       middleware.CORSConfig
	RequestTimeout   time.Duration
	MaxBodySize      int64
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	health   Handler
	metrics  *prometheus.Handler
	handlers []Handler
	streams  []StreamHandler
	config   RouterConfig
}

func NewRouter(
	log zerolog.Logger,
	auth *middleware.AuthMiddleware,
	health Handler,
	metrics *prometheus.Handler,
	config RouterConfig,
) *Router {
	engine := gin.New()

	r := &Router{
		engine:  engine,
		auth:    auth,
		health:  health,
		metrics: metrics,
		config:  config,
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(log),
		middleware.Logger(),
		middleware.ErrorHandler(),
		metrics.Middleware(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
	)

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:      config.RateLimit,
			Burst:     config.RateBurst,
			ClientTTL: config.RateClientTTL,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	sizeLimit := middleware.DefaultSizeLimitConfig()
	if config.MaxBodySize > 0 {
		sizeLimit.MaxBodySize = config.MaxBodySize
	}
	engine.Use(middleware.SizeLimit(sizeLimit))

	return r
}

// Register adds authenticated handlers. Handlers that also implement
// StreamHandler get their stream routes mounted outside the timeout group.
func (r *Router) Register(handlers ...Handler) {
	for _, h := range handlers {
		r.handlers = append(r.handlers, h)
		if s, ok := h.(StreamHandler); ok {
			r.streams = append(r.streams, s)
		}
	}
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", apiVersion)
		c.Next()
	})

	r.health.RegisterRoutes(api)
	api.GET("/metrics", r.metrics.Handler())

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	for _, s := range r.streams {
		s.RegisterStreamRoutes(protected)
	}

	timed := protected.Group("")
	timed.Use(middleware.Timeout(middleware.TimeoutConfig{Duration: r.config.RequestTimeout}))
	for _, h := range r.handlers {
		h.RegisterRoutes(timed)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
