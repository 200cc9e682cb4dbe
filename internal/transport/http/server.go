package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/boardsync/internal/auth"
	"github.com/vovakirdan/boardsync/internal/config"
	"github.com/vovakirdan/boardsync/internal/core"
	"github.com/vovakirdan/boardsync/internal/rtc"
)

// NewServer builds the HTTP server for the board API and realtime streams.
// engine may be nil when no media backend is configured.
func NewServer(hub *core.Hub, authService *auth.Service, engine rtc.Engine, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(hub, authService, engine, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter builds the gin engine with all routes.
func NewRouter(hub *core.Hub, authService *auth.Service, engine rtc.Engine, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	handlers := newBoardHandlers(hub, authService, engine, cfg, logger)
	identified := router.Group("/", IdentityMiddleware(authService, logger))
	identified.GET("/ws", NewWSHandler(hub, authService, cfg, logger).Handle)

	api := identified.Group("/api/whiteboard")
	api.GET("/stream", handlers.Stream)
	api.POST("/events", handlers.Publish)
	api.GET("/state", handlers.State)
	api.POST("/page", handlers.Page)
	api.GET("/rtc", handlers.RTC)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
