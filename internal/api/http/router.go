package http

import (
	"github.com/EternisAI/silo-enroll/internal/api/http/handler"
	"github.com/EternisAI/silo-enroll/internal/api/http/middleware"
	"github.com/EternisAI/silo-enroll/internal/auth"
	"github.com/EternisAI/silo-enroll/internal/metrics"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Enrollment handler.Enroller
	Tokens     handler.TokenCatalog
	Users      handler.UserDirectory
	Pinger     handler.Pinger
	Metrics    *metrics.Metrics
	Auth       auth.Config
}

func SetupRoute(engine *gin.Engine, cfg Config, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler(srvs.Pinger)
	engine.GET("/health", healthHandler.Check)
	if srvs.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(srvs.Metrics.Handler()))
	}

	basePath := cfg.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	delimiter := cfg.UserDelimiter
	if delimiter == "" {
		delimiter = DefaultUserDelimiter
	}

	api := engine.Group(basePath)
	api.Use(middleware.Authenticate(srvs.Auth))
	api.GET("/ping", healthHandler.Ping)

	if srvs.Enrollment != nil {
		enrollmentHandler := handler.NewEnrollmentHandler(srvs.Enrollment, delimiter)
		api.POST("/token/enroll/:partner_id/:username",
			middleware.RateLimitByIP(cfg.RateLimit.Enrollment),
			enrollmentHandler.Enroll)
	}

	if srvs.Tokens != nil {
		tokenHandler := handler.NewTokenHandler(srvs.Tokens, delimiter)
		api.GET("/tokens/:realm_id/:username", tokenHandler.List)
		api.DELETE("/tokens/:realm_id/:username", tokenHandler.RevokeAll)
		api.GET("/token/:serial_number", tokenHandler.Describe)
		api.DELETE("/token/:serial_number", tokenHandler.Revoke)
	}

	if srvs.Users != nil {
		userHandler := handler.NewUserHandler(srvs.Users, delimiter)
		users := api.Group("/users/:partner_id/:username")
		users.GET("", userHandler.Get)
		users.POST("", userHandler.Create)
		users.DELETE("", userHandler.Remove)
	}
}
