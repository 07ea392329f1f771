// Package admin exposes the operator surface: platform analytics, SMTP
// configuration and the email delivery audit log. All routes are mounted
// behind RequireRole(admin).
package admin

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mtrack/backend/internal/auth"
	"github.com/mtrack/backend/internal/emailconfig"
	"github.com/mtrack/backend/internal/emaillogs"
	"github.com/mtrack/backend/internal/models"
	"github.com/mtrack/backend/internal/sessions"
	"github.com/mtrack/backend/internal/songs"
	"github.com/mtrack/backend/pkg/response"
)

// Handler handles admin HTTP endpoints.
type Handler struct {
	users       *auth.Repository
	sessions    *sessions.Repository
	songs       *songs.Repository
	emailLogs   *emaillogs.Repository
	emailConfig *emailconfig.Repository
	logger      *zap.Logger
}

// NewHandler creates an admin handler.
func NewHandler(users *auth.Repository, sess *sessions.Repository, songRepo *songs.Repository,
	logs *emaillogs.Repository, cfg *emailconfig.Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, sessions: sess, songs: songRepo, emailLogs: logs, emailConfig: cfg, logger: logger}
}

// AnalyticsResponse is the JSON shape for GET /admin/analytics.
type AnalyticsResponse struct {
	TotalUsers     int64            `json:"total_users"`
	TotalSessions  int64            `json:"total_sessions"`
	ActiveSessions int64            `json:"active_sessions"`
	ActiveSongs    int64            `json:"active_songs"`
	EmailsByStatus map[string]int64 `json:"emails_by_status"`
}

// Analytics handles GET /admin/analytics.
func (h *Handler) Analytics(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := h.users.Count(ctx)
	if err != nil {
		h.logger.Error("count users", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	total, active, err := h.sessions.CountSummary(ctx)
	if err != nil {
		h.logger.Error("count sessions", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	songCount, err := h.songs.CountActive(ctx)
	if err != nil {
		h.logger.Error("count songs", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	emails, err := h.emailLogs.CountByStatus(ctx)
	if err != nil {
		h.logger.Error("count emails", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}

	response.OK(c, AnalyticsResponse{
		TotalUsers:     users,
		TotalSessions:  total,
		ActiveSessions: active,
		ActiveSongs:    songCount,
		EmailsByStatus: emails,
	})
}

// EmailLogs handles GET /admin/emails?type=&status=&limit=.
func (h *Handler) EmailLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := h.emailLogs.List(c.Request.Context(), c.Query("type"), c.Query("status"), limit)
	if err != nil {
		h.logger.Error("list email logs", zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, gin.H{"logs": logs})
}

// GetEmailConfig handles GET /admin/email-config. The stored password is
// never returned.
func (h *Handler) GetEmailConfig(c *gin.Context) {
	cfg, err := h.emailConfig.Get(c.Request.Context())
	if err != nil {
		h.logger.Error("get email config", zap.Error(err))
		response.Internal(c, "failed to load email config")
		return
	}
	response.OK(c, cfg)
}

// EmailConfigRequest is the body for PUT /admin/email-config.
type EmailConfigRequest struct {
	SMTPHost     string `json:"smtp_host" binding:"required"`
	SMTPPort     int    `json:"smtp_port" binding:"required"`
	SMTPUser     string `json:"smtp_user"`
	SMTPPassword string `json:"smtp_password"`
	SMTPFrom     string `json:"smtp_from" binding:"required,email"`
	Enabled      bool   `json:"enabled"`
}

// UpdateEmailConfig handles PUT /admin/email-config. An empty password keeps
// the stored one.
func (h *Handler) UpdateEmailConfig(c *gin.Context) {
	var req EmailConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	password := req.SMTPPassword
	if password == "" {
		if current, err := h.emailConfig.Get(c.Request.Context()); err == nil && current != nil {
			password = current.SMTPPassword
		}
	}

	err := h.emailConfig.Upsert(c.Request.Context(), models.EmailConfig{
		SMTPHost:     req.SMTPHost,
		SMTPPort:     req.SMTPPort,
		SMTPUser:     req.SMTPUser,
		SMTPPassword: password,
		SMTPFrom:     req.SMTPFrom,
		Enabled:      req.Enabled,
	})
	if err != nil {
		h.logger.Error("update email config", zap.Error(err))
		response.Internal(c, "failed to update email config")
		return
	}
	response.OK(c, gin.H{"message": "email config updated"})
}
