package http

import (
	"github.com/gin-gonic/gin"
	"github.com/richardliu001/appointment-service/internal/config"
	"github.com/richardliu001/appointment-service/internal/service"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP layer calls into.
type Deps struct {
	Appointments *service.AppointmentService
	Auth         *service.AuthService
	Tokens       TokenParser
	Health       *HealthHandler
	Log          *zap.SugaredLogger
}

func NewRouter(deps Deps, rl config.RateLimitConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(deps.Log))

	if deps.Health != nil {
		r.GET("/health/live", deps.Health.Liveness)
		r.GET("/health/ready", deps.Health.Readiness)
	}

	api := r.Group("")
	api.Use(RateLimitMiddleware(rl))
	RegisterHandlers(api, deps)
	return r
}
