package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"duel_arena/internal/http/handlers"
	"duel_arena/internal/http/middleware"
	"duel_arena/internal/ports"
	"duel_arena/internal/ws"
)

// RouterConfig - все, что нужно для сборки маршрутов
type RouterConfig struct {
	Handler       *handlers.Handler
	WS            *ws.WSHandler
	Identity      ports.IdentityResolver
	Limiter       *middleware.RateLimiter
	Gatherer      prometheus.Gatherer
	AllowedOrigin string
	Log           *slog.Logger
}

// NewRouter собирает gin-движок со всеми маршрутами
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(cfg.Log), cors(cfg.AllowedOrigin))

	h := cfg.Handler
	r.GET("/health", h.Health)
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/ws", cfg.WS.HandleWS())

	api := r.Group("/api")
	api.Use(cfg.Limiter.Middleware(cfg.Log))
	api.POST("/auth/telegram", h.LoginTelegram)
	api.GET("/rooms", h.ListRooms)
	api.GET("/rooms/:id", h.GetRoom)
	api.GET("/leaderboard", h.Leaderboard)

	authed := api.Group("")
	authed.Use(middleware.Auth(cfg.Identity))
	authed.POST("/rooms", h.CreateRoom)
	authed.GET("/me/progress", h.MyProgress)

	return r
}

// CORS для фронта на другом домене
func cors(allowed string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (allowed == "" || origin == allowed) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			return
		}
		log.Debug("http",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
