package http

import (
	"net/http"

	"livetranslate/internal/core/domain"
	"livetranslate/internal/core/ports"
	"livetranslate/internal/core/services"
	"livetranslate/internal/infrastructure/middleware"
	"livetranslate/pkg/errors"
	"livetranslate/pkg/validation"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessionService ports.SessionService
	authService    services.AuthService
}

func NewSessionHandler(sessionService ports.SessionService, authService services.AuthService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		authService:    authService,
	}
}

func (h *SessionHandler) SetupRoutes(router *gin.Engine) {
	requireHost := middleware.RequireHost(h.authService)

	api := router.Group("/api/sessions", middleware.AuthMiddleware(h.authService))
	{
		api.POST("", requireHost, h.CreateSession)
		api.GET("/active", h.ListActive)
		api.POST("/join", h.JoinSession)
		api.POST("/:id/end", requireHost, h.EndSession)
		api.POST("/:id/leave", h.LeaveSession)
	}
}

type CreateSessionRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description *string         `json:"description"`
	DefaultLang domain.Language `json:"defaultLang" binding:"required"`
	IsPublic    bool            `json:"isPublic"`
}

type JoinSessionRequest struct {
	SessionID domain.SessionID `json:"sessionId" binding:"required"`
	Language  domain.Language  `json:"language" binding:"required"`
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	session, err := h.sessionService.CreateSession(c.Request.Context(), user.ID, domain.NewSession{
		Title:       req.Title,
		Description: req.Description,
		DefaultLang: req.DefaultLang,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (h *SessionHandler) ListActive(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	sessions, err := h.sessionService.ListActiveSessions(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessions)
}

func (h *SessionHandler) JoinSession(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req JoinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	// ids are UUIDs; anything else cannot name a stored session
	if validation.ValidateSessionID(string(req.SessionID)) != nil {
		respondError(c, domain.ErrSessionNotFound)
		return
	}

	participant, err := h.sessionService.JoinSession(c.Request.Context(), user.ID, req.SessionID, req.Language)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, participant)
}

func (h *SessionHandler) EndSession(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.sessionService.EndSession(c.Request.Context(), user.ID, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) LeaveSession(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	if err := h.sessionService.LeaveSession(c.Request.Context(), user.ID, sessionID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully left the session"})
}

func sessionIDParam(c *gin.Context) (domain.SessionID, bool) {
	id := c.Param("id")
	if validation.ValidateSessionID(id) != nil {
		respondError(c, domain.ErrSessionNotFound)
		return "", false
	}
	return domain.SessionID(id), true
}
