package sessions

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mtrack/backend/internal/middleware"
	"github.com/mtrack/backend/internal/models"
	"github.com/mtrack/backend/pkg/response"
)

// Handler handles session HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// StartRequest is the body for POST /sessions/start.
type StartRequest struct {
	SongID *uuid.UUID `json:"song_id"`
}

// Start handles POST /sessions/start. Session tracking is disabled for
// admin accounts.
func (h *Handler) Start(c *gin.Context) {
	if middleware.RoleFrom(c) == string(models.RoleAdmin) {
		response.Forbidden(c, "session tracking is disabled for admin users")
		return
	}
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}

	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, "invalid request body")
		return
	}

	sess, err := h.svc.Start(c.Request.Context(), userID, req.SongID)
	if err != nil {
		if errors.Is(err, ErrSongNotFound) {
			response.NotFound(c, "song not found")
			return
		}
		h.logger.Error("start session", zap.Error(err))
		response.Internal(c, "failed to start session")
		return
	}

	response.Created(c, gin.H{"session_id": sess.ID, "started_at": sess.StartedAt})
}

// Heartbeat handles POST /sessions/heartbeat?session_id=...
func (h *Handler) Heartbeat(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	sessionID, err := uuid.Parse(c.Query("session_id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}

	if err := h.svc.Heartbeat(c.Request.Context(), sessionID, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "active session not found")
			return
		}
		h.logger.Error("heartbeat", zap.Error(err))
		response.Internal(c, "failed to update heartbeat")
		return
	}
	response.OK(c, gin.H{"message": "heartbeat updated"})
}

// EndRequest is the body for POST /sessions/end.
type EndRequest struct {
	SessionID      uuid.UUID             `json:"session_id" binding:"required"`
	Events         []models.SessionEvent `json:"events"`
	AggregatedData models.AggregatedData `json:"aggregated_data"`
}

// End handles POST /sessions/end. A prediction failure is reported to the
// caller and leaves the session active for retry.
func (h *Handler) End(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req EndRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	sess, err := h.svc.End(c.Request.Context(), req.SessionID, userID, req.Events, req.AggregatedData)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "session not found")
		case errors.Is(err, ErrForbidden):
			response.Forbidden(c, "access denied")
		case errors.Is(err, ErrSessionEnded):
			response.Conflict(c, "session already ended")
		case errors.Is(err, ErrPredictionUnavailable):
			h.logger.Error("prediction failed", zap.String("session_id", req.SessionID.String()), zap.Error(err))
			response.Internal(c, "prediction failed")
		default:
			h.logger.Error("end session", zap.Error(err))
			response.Internal(c, "failed to end session")
		}
		return
	}

	response.OK(c, gin.H{"session_id": sess.ID, "prediction": sess.Prediction})
}

// Active handles GET /sessions/active.
func (h *Handler) Active(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	sess, err := h.svc.Active(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("get active session", zap.Error(err))
		response.Internal(c, "failed to load active session")
		return
	}
	if sess == nil {
		response.OK(c, nil)
		return
	}
	response.OK(c, gin.H{"session_id": sess.ID, "started_at": sess.StartedAt})
}

// Latest handles GET /sessions/latest.
func (h *Handler) Latest(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	sess, err := h.svc.Latest(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("get latest session", zap.Error(err))
		response.Internal(c, "failed to load latest session")
		return
	}
	response.OK(c, sess)
}

// List handles GET /sessions.
func (h *Handler) List(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	list, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list sessions", zap.Error(err))
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, gin.H{"sessions": list})
}

// Get handles GET /sessions/:id.
func (h *Handler) Get(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}

	sess, err := h.svc.Get(c.Request.Context(), sessionID, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "session not found")
		case errors.Is(err, ErrForbidden):
			response.Forbidden(c, "access denied")
		default:
			h.logger.Error("get session", zap.Error(err))
			response.Internal(c, "failed to load session")
		}
		return
	}
	response.OK(c, sess)
}
