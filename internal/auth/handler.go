package auth

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mtrack/backend/internal/alerts"
	"github.com/mtrack/backend/internal/middleware"
	"github.com/mtrack/backend/internal/models"
	"github.com/mtrack/backend/pkg/queue"
	"github.com/mtrack/backend/pkg/response"
	"github.com/mtrack/backend/pkg/utils"
)

// SessionSummaries is the slice of session storage the logout flow needs:
// the latest analyzed session and the at-most-once summary-email claim.
type SessionSummaries interface {
	GetLatestEnded(ctx context.Context, userID uuid.UUID) (*models.Session, error)
	ClaimLogoutEmail(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

// Enqueuer hands email jobs to the background worker.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo     *Repository
	jwt      *JWTService
	sessions SessionSummaries
	queue    Enqueuer
	logger   *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, sessions SessionSummaries, q Enqueuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, sessions: sessions, queue: q, logger: logger}
}

// Register handles POST /auth/register. Public registration always creates a
// regular user; admin accounts are seeded out of band.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if existing, err := h.repo.GetByEmail(c.Request.Context(), req.Email); err == nil && existing != nil {
		response.BadRequest(c, "email already registered")
		return
	}
	if existing, err := h.repo.GetByUsername(c.Request.Context(), req.Username); err == nil && existing != nil {
		response.BadRequest(c, "username already taken")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.repo.Create(c.Request.Context(), req.Username, req.Email, hash, models.RoleUser)
	if err != nil {
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	h.sendWelcome(c.Request.Context(), user)

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil || user == nil {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		response.NotFound(c, "user not found")
		return
	}
	response.OK(c, user.ToPublic())
}

// Logout handles POST /auth/logout. If the user's most recent analyzed
// session has not yet produced a summary email, one is queued; the
// logout_email_sent claim makes repeated logouts send at most one email per
// session. Email failures never fail the logout.
func (h *Handler) Logout(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}

	if middleware.RoleFrom(c) != string(models.RoleAdmin) {
		h.sendSessionSummary(c.Request.Context(), userID)
	}

	response.OK(c, gin.H{"message": "logged out"})
}

// List handles GET /admin/users (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, gin.H{"users": list})
}

func (h *Handler) sendWelcome(ctx context.Context, user *models.User) {
	if h.queue == nil {
		return
	}
	subject, html, text := alerts.BuildWelcomeEmail(user.Email)
	err := h.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      models.EmailTypeWelcome,
		UserID:         user.ID,
		RecipientEmail: user.Email,
		Subject:        subject,
		BodyHTML:       html,
		BodyText:       text,
	})
	if err != nil {
		h.logger.Warn("welcome email enqueue failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
}

func (h *Handler) sendSessionSummary(ctx context.Context, userID uuid.UUID) {
	if h.sessions == nil || h.queue == nil {
		return
	}
	sess, err := h.sessions.GetLatestEnded(ctx, userID)
	if err != nil {
		h.logger.Warn("logout summary lookup failed", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	if sess == nil || sess.Prediction == nil {
		return
	}

	claimed, err := h.sessions.ClaimLogoutEmail(ctx, sess.ID)
	if err != nil {
		h.logger.Warn("logout summary claim failed", zap.String("session_id", sess.ID.String()), zap.Error(err))
		return
	}
	if !claimed {
		return
	}

	user, err := h.repo.GetByID(ctx, userID)
	if err != nil || user == nil {
		h.logger.Warn("logout summary recipient lookup failed", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}

	subject, html, text := alerts.BuildSummaryEmail(sess.Prediction)
	sid := sess.ID
	err = h.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      models.EmailTypeSessionSummary,
		UserID:         userID,
		SessionID:      &sid,
		RecipientEmail: user.Email,
		Subject:        subject,
		BodyHTML:       html,
		BodyText:       text,
	})
	if err != nil {
		h.logger.Warn("summary email enqueue failed", zap.String("session_id", sess.ID.String()), zap.Error(err))
		return
	}
	h.logger.Info("session summary queued", zap.String("session_id", sess.ID.String()))
}
