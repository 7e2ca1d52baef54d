package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	googleauth "studyai-backend/internal/auth"
	"studyai-backend/internal/documents"
	"studyai-backend/internal/generation"
	"studyai-backend/internal/services/health"
	"studyai-backend/internal/shared/auth"
	"studyai-backend/internal/shared/config"
	"studyai-backend/internal/shared/metrics"
	"studyai-backend/internal/shared/server/middleware"
	"studyai-backend/internal/shared/server/respond"
)

const (
	apiPrefix           = "/api/v1"
	rateGroupDefault    = "DEFAULT"
	rateGroupGeneration = "GENERATION"
)

// DefaultRateRules apply per user (or client IP before sign-in).
var DefaultRateRules = map[string]middleware.RateLimitRule{
	rateGroupDefault:    {Rate: 5, Burst: 60},
	rateGroupGeneration: {Rate: 0.1, Burst: 10},
}

var generationPaths = []string{
	apiPrefix + "/study-materials",
	apiPrefix + "/pyq/analysis",
	apiPrefix + "/chat",
}

// RouterDeps carries the handlers and cross-cutting services the router mounts.
type RouterDeps struct {
	Config          config.Config
	Verifier        auth.Verifier
	Limiter         middleware.Limiter
	RateRules       map[string]middleware.RateLimitRule
	Health          *health.Service
	DocumentHandler *documents.Handler
	GenHandler      *generation.Handler
	GoogleAuth      *googleauth.GoogleService
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	rules := deps.RateRules
	if rules == nil {
		rules = DefaultRateRules
	}
	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Verifier, apiPrefix+"/health", "/metrics", apiPrefix+"/auth/google/"),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group(apiPrefix)
	api.GET("/health", func(c *gin.Context) {
		report := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})

	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Rules:        rules,
		DefaultGroup: rateGroupDefault,
		GroupFor:     rateGroupFor,
		Limiter:      deps.Limiter,
	}))

	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	registerMeRoutes(api)
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api)
	}
	if deps.GenHandler != nil {
		deps.GenHandler.RegisterRoutes(api)
	}

	return r
}

func rateGroupFor(c *gin.Context) string {
	path := c.Request.URL.Path
	for _, p := range generationPaths {
		if strings.HasPrefix(path, p) {
			return rateGroupGeneration
		}
	}
	return rateGroupDefault
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
