package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/chalkbyte/chalkbyte-api/api/swagger"
	"github.com/chalkbyte/chalkbyte-api/internal/handler"
	"github.com/chalkbyte/chalkbyte-api/internal/middleware"
	"github.com/chalkbyte/chalkbyte-api/internal/models"
	"github.com/chalkbyte/chalkbyte-api/internal/repository"
	"github.com/chalkbyte/chalkbyte-api/internal/service"
	"github.com/chalkbyte/chalkbyte-api/pkg/cache"
	"github.com/chalkbyte/chalkbyte-api/pkg/config"
	"github.com/chalkbyte/chalkbyte-api/pkg/database"
	"github.com/chalkbyte/chalkbyte-api/pkg/logger"
	corsmiddleware "github.com/chalkbyte/chalkbyte-api/pkg/middleware/cors"
	reqidmiddleware "github.com/chalkbyte/chalkbyte-api/pkg/middleware/requestid"
)

// @title Chalkbyte API
// @version 1.0.0
// @description Multi-tenant academic calendar service: sessions, terms and their lifecycle.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The limiter degrades to pass-through without Redis.
		logr.Sugar().Warnw("redis unavailable, rate limiting disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	termRepo := repository.NewTermRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, cfg.JWT, validate, logr)
	schoolSvc := service.NewSchoolService(schoolRepo, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, validate, logr)
	termSvc := service.NewTermService(termRepo, sessionRepo, validate, logr)
	exportSvc := service.NewCalendarExportService(sessionRepo, termRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	schoolHandler := handler.NewSchoolHandler(schoolSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc, exportSvc, metricsSvc)
	termHandler := handler.NewTermHandler(termSvc, metricsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	limiter := middleware.NewRateLimiter(redisClient, cfg.RateLimit, metricsSvc, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", limiter.Auth(), authHandler.Login)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc), limiter.General())

	admins := []models.UserRole{models.RoleSystemAdmin, models.RoleSchoolAdmin}
	staff := []models.UserRole{models.RoleSystemAdmin, models.RoleSchoolAdmin, models.RoleTeacher}

	schools := protected.Group("/schools")
	schools.GET("", middleware.RequireRoles(staff...), schoolHandler.List)
	schools.GET("/:id", middleware.RequireRoles(staff...), schoolHandler.Get)
	schools.POST("", middleware.RequireRoles(models.RoleSystemAdmin), schoolHandler.Create)

	sessions := protected.Group("/academic-sessions")
	sessions.GET("", middleware.RequireRoles(staff...), sessionHandler.List)
	sessions.GET("/active", middleware.RequireRoles(staff...), sessionHandler.GetActive)
	sessions.GET("/:id", middleware.RequireRoles(staff...), sessionHandler.Get)
	sessions.POST("", middleware.RequireRoles(admins...), sessionHandler.Create)
	sessions.PATCH("/:id", middleware.RequireRoles(admins...), sessionHandler.Update)
	sessions.DELETE("/:id", middleware.RequireRoles(admins...), sessionHandler.Delete)
	sessions.POST("/:id/activate", middleware.RequireRoles(admins...), sessionHandler.Activate)
	sessions.POST("/:id/deactivate", middleware.RequireRoles(admins...), sessionHandler.Deactivate)
	sessions.GET("/:id/export", middleware.RequireRoles(staff...), sessionHandler.Export)
	sessions.GET("/:id/terms", middleware.RequireRoles(staff...), termHandler.ListBySession)
	sessions.POST("/:id/terms", middleware.RequireRoles(admins...), termHandler.Create)

	terms := protected.Group("/terms")
	terms.GET("/current", middleware.RequireRoles(staff...), termHandler.GetCurrent)
	terms.GET("/:id", middleware.RequireRoles(staff...), termHandler.Get)
	terms.PATCH("/:id", middleware.RequireRoles(admins...), termHandler.Update)
	terms.DELETE("/:id", middleware.RequireRoles(admins...), termHandler.Delete)
	terms.POST("/:id/set-current", middleware.RequireRoles(admins...), termHandler.SetCurrent)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
