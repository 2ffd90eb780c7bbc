package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/admission"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/cache"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/circuitbreaker"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/config"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/counter"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/events"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/handler"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/middleware"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/repository"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/service"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/storage"
	"github.com/gin-gonic/gin"
)

// Server owns every engine component. Everything is constructed here once
// and handed to handlers by reference - no package-level state anywhere.
type Server struct {
	router   *gin.Engine
	config   *config.Config
	redis    *storage.RedisClient
	postgres *storage.Postgres

	recorder *service.DecisionRecorder
	breaker  *circuitbreaker.CircuitBreaker

	checkHandler     *handler.CheckHandler
	apiKeyHandler    *handler.APIKeyHandler
	tierHandler      *handler.TierHandler
	authHandler      *handler.AuthHandler
	analyticsHandler *handler.AnalyticsHandler
	authService      *service.AuthService

	httpServer *http.Server
}

func New(cfg *config.Config, redis *storage.RedisClient, postgres *storage.Postgres) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Stores
	apiKeyRepo := repository.NewAPIKeyRepository(postgres)
	tierRepo := repository.NewTierRepository(postgres)
	authRepo := repository.NewUserRepository(postgres)
	requestLogRepo := repository.NewRequestLogRepository(postgres)

	metaCache := cache.New(redis, cfg.CacheTTL())
	counters := counter.NewStore(redis)
	eventLog := events.NewLog(redis, cfg.RateLimit.KeyEventLimit, cfg.RateLimit.GlobalEventLimit)

	// Admission flow
	resolver := service.NewKeyResolver(apiKeyRepo, tierRepo, metaCache)
	breaker := circuitbreaker.New(circuitbreaker.Config{
		MaxFailures: 5,
		OpenFor:     30 * time.Second,
		CallTimeout: 2 * time.Second,
	})
	engine := admission.NewEngine(resolver, counters, eventLog, breaker, cfg.RateLimit.FailOpen)

	// Services and handlers
	apiKeyService := service.NewAPIKeyService(apiKeyRepo, tierRepo, metaCache, counters, eventLog)
	tierService := service.NewTierService(tierRepo, apiKeyRepo, metaCache)
	authService := service.NewAuthService(authRepo, cfg.Auth.JWTSecret, cfg.Auth.ExpiryHours)
	analyticsService := service.NewAnalyticsService(requestLogRepo, eventLog)

	recorder := service.NewDecisionRecorder(requestLogRepo, 1000, cfg.RateLimit.LogRetentionDays)
	recorder.Start()

	s := &Server{
		router:           router,
		config:           cfg,
		redis:            redis,
		postgres:         postgres,
		recorder:         recorder,
		breaker:          breaker,
		checkHandler:     handler.NewCheckHandler(engine, apiKeyService, recorder),
		apiKeyHandler:    handler.NewAPIKeyHandler(apiKeyService),
		tierHandler:      handler.NewTierHandler(tierService),
		authHandler:      handler.NewAuthHandler(authService),
		analyticsHandler: handler.NewAnalyticsHandler(analyticsService),
		authService:      authService,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	// The admission endpoint the request dispatcher calls per request
	s.router.POST("/check", s.checkHandler.Check)

	auth := s.router.Group("/auth")
	{
		auth.POST("/register", s.authHandler.Register)
		auth.POST("/login", s.authHandler.Login)
	}

	admin := s.router.Group("/admin")
	admin.Use(middleware.RequireAuth(s.authService))
	{
		admin.POST("/keys", s.apiKeyHandler.Create)
		admin.GET("/keys", s.apiKeyHandler.List)
		admin.GET("/keys/:id", s.apiKeyHandler.Get)
		admin.PUT("/keys/:id/limits", s.apiKeyHandler.UpdateLimits)
		admin.POST("/keys/:id/disable", s.apiKeyHandler.Disable)
		admin.DELETE("/keys/:id", s.apiKeyHandler.Delete)

		admin.GET("/tiers", s.tierHandler.List)
		admin.POST("/tiers", s.tierHandler.Create)
		admin.PUT("/tiers/:id", s.tierHandler.Update)

		admin.GET("/analytics/summary", s.analyticsHandler.Summary)
		admin.GET("/analytics/keys/:id", s.analyticsHandler.KeyHistory)
		admin.GET("/analytics/activity", s.analyticsHandler.RecentActivity)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := true

	if err := s.redis.Ping(c.Request.Context()); err != nil {
		redisHealthy = false
		log.Printf("Redis health check failed: %v", err)
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	status := "healthy"
	statusCode := http.StatusOK

	if !redisHealthy || !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "rate-limit-engine",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":    redisHealthy,
			"database": dbHealthy,
			"breaker":  s.breaker.State().String(),
		},
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting rate limit engine on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	// Flush buffered decision logs after the listener drains
	s.recorder.Stop()

	return err
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
