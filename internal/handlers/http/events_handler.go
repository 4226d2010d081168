package http

import (
	"livetranslate/internal/core/domain"
	"livetranslate/internal/core/ports"
	"livetranslate/internal/core/services"
	"livetranslate/internal/infrastructure/events"
	"livetranslate/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventsHandler upgrades authorized watchers to a websocket fed by the hub.
type EventsHandler struct {
	authService    services.AuthService
	sessionService ports.SessionService
	hub            *events.Hub
	upgrader       *websocket.Upgrader
	logger         *zap.SugaredLogger
}

func NewEventsHandler(
	authService services.AuthService,
	sessionService ports.SessionService,
	hub *events.Hub,
	allowedOrigins []string,
	logger *zap.SugaredLogger,
) *EventsHandler {
	return &EventsHandler{
		authService:    authService,
		sessionService: sessionService,
		hub:            hub,
		upgrader:       events.NewUpgrader(allowedOrigins),
		logger:         logger,
	}
}

func (h *EventsHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/ws/sessions/:id", h.Watch)
}

// Watch authenticates before upgrading; browsers cannot set headers on websocket
// requests, so the token may also come from the query string.
func (h *EventsHandler) Watch(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		var err error
		if token, err = middleware.BearerToken(c.GetHeader("Authorization")); err != nil {
			respondError(c, domain.ErrUnauthenticated)
			return
		}
	}

	user, err := h.authService.Authenticate(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}
	middleware.SetCurrentUser(c, user)

	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	if err := h.sessionService.CanWatch(c.Request.Context(), user.ID, sessionID); err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the handshake error
		h.logger.Debugw("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}
	h.hub.Serve(conn, sessionID, user.ID)
}
