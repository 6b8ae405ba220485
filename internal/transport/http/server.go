package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// NewServer builds the HTTP server: REST API under /api, live streams on /ws.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	apiHandlers := NewAPIHandlers(authService, logger)
	roomHandlers := NewRoomHandlers(st, hub, cfg.MaxMessageBytes, cfg.MaxHistoryLimit, logger)
	userHandlers := NewUserHandlers(st, logger)

	messageLimit := newUserLimiter(cfg.MessagesPerMinute)
	typingLimit := newUserLimiter(cfg.TypingPerMinute)

	router.GET("/health", healthHandler)

	router.POST("/api/register", apiHandlers.Register)
	router.POST("/api/login", apiHandlers.Login)

	api := router.Group("/api", AuthMiddleware(authService, logger))
	api.GET("/rooms", roomHandlers.ListRooms)
	api.GET("/rooms/:id/messages", roomHandlers.ListMessages)
	api.POST("/rooms/:id/messages", RateLimit(messageLimit), roomHandlers.SendMessage)
	api.POST("/rooms/:id/typing", RateLimit(typingLimit), roomHandlers.Typing)
	api.GET("/users/:id", userHandlers.GetUser)

	// The websocket upgrade hijacks the connection, which gin's response
	// writer refuses once the status is written, so /ws bypasses the router.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, authService, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
