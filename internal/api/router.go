package api

import (
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/a2a"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/logging"
)

// RouterConfig selects the optional middleware.
type RouterConfig struct {
	// FrontendURL restricts CORS to one origin; empty allows all.
	FrontendURL string
	Sentry      bool
	Development bool
}

// NewRouter wires the HTTP surface: health, the agent card, the A2A endpoint
// and the discovery API.
func NewRouter(cfg RouterConfig, h *Handler, agentHandler *a2a.A2AHandler, logger *zap.Logger) *gin.Engine {
	logger = logging.OrNop(logger)
	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Sentry {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true, Timeout: 2 * time.Second}))
	}
	router.Use(corsMiddleware(cfg.FrontendURL))
	router.Use(RequestLogging(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	if agentHandler != nil {
		router.GET("/.well-known/agent.json", agentHandler.ServeAgentCard)
		router.POST("/a2a/discovery", agentHandler.HandleDiscovery)
	}

	h.Register(router)
	return router
}

func corsMiddleware(frontendURL string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", UserHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if frontendURL == "" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = []string{frontendURL}
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
