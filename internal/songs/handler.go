package songs

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mtrack/backend/internal/middleware"
	"github.com/mtrack/backend/internal/models"
	"github.com/mtrack/backend/pkg/response"
	"github.com/mtrack/backend/pkg/storage"
)

// Handler handles song catalog HTTP endpoints.
type Handler struct {
	repo   *Repository
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a songs handler.
func NewHandler(repo *Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, s3: s3, logger: logger}
}

// List handles GET /songs?category=... Playback URLs are presigned per
// request so the media bucket can stay private.
func (h *Handler) List(c *gin.Context) {
	includeHidden := middleware.RoleFrom(c) == string(models.RoleAdmin) && c.Query("include_hidden") == "true"
	list, err := h.repo.List(c.Request.Context(), c.Query("category"), includeHidden)
	if err != nil {
		h.logger.Error("list songs", zap.Error(err))
		response.Internal(c, "failed to list songs")
		return
	}
	for _, s := range list {
		h.fillMediaURLs(c.Request.Context(), s)
	}
	response.OK(c, gin.H{"songs": list})
}

// Get handles GET /songs/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid song id")
		return
	}
	song, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get song", zap.Error(err))
		response.Internal(c, "failed to load song")
		return
	}
	if song == nil || (!song.IsActive && middleware.RoleFrom(c) != string(models.RoleAdmin)) {
		response.NotFound(c, "song not found")
		return
	}
	h.fillMediaURLs(c.Request.Context(), song)
	response.OK(c, song)
}

// Categories handles GET /songs/categories.
func (h *Handler) Categories(c *gin.Context) {
	cats, err := h.repo.Categories(c.Request.Context())
	if err != nil {
		h.logger.Error("list categories", zap.Error(err))
		response.Internal(c, "failed to list categories")
		return
	}
	response.OK(c, gin.H{"categories": cats})
}

// Upload handles POST /admin/songs (admin only, multipart). The audio file is
// streamed to S3; an optional thumbnail rides along in the same form.
func (h *Handler) Upload(c *gin.Context) {
	if h.s3 == nil {
		response.Internal(c, "S3 not configured")
		return
	}

	title := c.PostForm("title")
	artist := c.PostForm("artist")
	category := c.PostForm("category")
	if title == "" || artist == "" || category == "" {
		response.BadRequest(c, "title, artist and category are required")
		return
	}

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		response.BadRequest(c, "audio file is required")
		return
	}
	defer file.Close()

	if header.Size > storage.MaxAudioFileSize {
		response.BadRequest(c, "audio file exceeds 25MB limit")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !storage.ValidateAudioFileType(contentType, header.Filename) {
		response.BadRequest(c, "invalid audio type: only mp3, wav, ogg, flac and m4a allowed")
		return
	}
	if _, ok := storage.AllowedAudioTypes[contentType]; !ok {
		contentType = storage.ContentTypeForFilename(header.Filename)
	}

	songID := uuid.New()
	audioKey := storage.SongKey(songID.String(), header.Filename)
	if _, err := h.s3.Upload(c.Request.Context(), audioKey, contentType, file, header.Size); err != nil {
		h.logger.Error("audio upload failed", zap.String("key", audioKey), zap.Error(err))
		response.Internal(c, "failed to upload audio")
		return
	}

	thumbKey := ""
	if thumb, thumbHeader, err := c.Request.FormFile("thumbnail"); err == nil {
		defer thumb.Close()
		switch {
		case thumbHeader.Size > storage.MaxThumbnailFileSize:
			h.logger.Warn("thumbnail skipped: exceeds 5MB limit", zap.String("song_id", songID.String()))
		case !storage.ValidateThumbnailFileType(thumbHeader.Filename):
			h.logger.Warn("thumbnail skipped: invalid type", zap.String("filename", thumbHeader.Filename))
		default:
			key := storage.ThumbnailKey(songID.String(), thumbHeader.Filename)
			ct := storage.ContentTypeForFilename(thumbHeader.Filename)
			if _, err := h.s3.Upload(c.Request.Context(), key, ct, thumb, thumbHeader.Size); err != nil {
				h.logger.Warn("thumbnail upload failed", zap.String("key", key), zap.Error(err))
			} else {
				thumbKey = key
			}
		}
	}

	song, err := h.repo.Create(c.Request.Context(), CreateParams{
		Title:        title,
		Artist:       artist,
		Category:     category,
		AudioKey:     audioKey,
		ThumbnailKey: thumbKey,
		Description:  c.PostForm("description"),
	})
	if err != nil {
		h.logger.Error("create song", zap.Error(err))
		response.Internal(c, "failed to create song")
		return
	}

	h.fillMediaURLs(c.Request.Context(), song)
	response.Created(c, song)
}

// UpdateRequest is the body for PUT /admin/songs/:id.
type UpdateRequest struct {
	Title       string `json:"title" binding:"required"`
	Artist      string `json:"artist" binding:"required"`
	Category    string `json:"category" binding:"required"`
	Description string `json:"description"`
}

// Update handles PUT /admin/songs/:id (admin only).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid song id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	song, err := h.repo.Update(c.Request.Context(), id, UpdateParams{
		Title:       req.Title,
		Artist:      req.Artist,
		Category:    req.Category,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "song not found")
			return
		}
		h.logger.Error("update song", zap.Error(err))
		response.Internal(c, "failed to update song")
		return
	}
	h.fillMediaURLs(c.Request.Context(), song)
	response.OK(c, song)
}

// ToggleVisibility handles PATCH /admin/songs/:id/visibility (admin only).
func (h *Handler) ToggleVisibility(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid song id")
		return
	}
	active, err := h.repo.ToggleVisibility(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "song not found")
			return
		}
		h.logger.Error("toggle song visibility", zap.Error(err))
		response.Internal(c, "failed to update song")
		return
	}
	response.OK(c, gin.H{"id": id, "is_active": active})
}

// Delete handles DELETE /admin/songs/:id (admin only). Media objects are
// removed best-effort after the row.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid song id")
		return
	}
	song, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load song")
		return
	}
	if song == nil {
		response.NotFound(c, "song not found")
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "song not found")
			return
		}
		h.logger.Error("delete song", zap.Error(err))
		response.Internal(c, "failed to delete song")
		return
	}

	if h.s3 != nil {
		if err := h.s3.DeleteObject(c.Request.Context(), song.AudioKey); err != nil {
			h.logger.Warn("delete audio object failed", zap.String("key", song.AudioKey), zap.Error(err))
		}
		if song.ThumbnailKey != "" {
			if err := h.s3.DeleteObject(c.Request.Context(), song.ThumbnailKey); err != nil {
				h.logger.Warn("delete thumbnail object failed", zap.String("key", song.ThumbnailKey), zap.Error(err))
			}
		}
	}

	response.OK(c, gin.H{"message": "song deleted"})
}

// AddFavorite handles POST /songs/:id/favorite.
func (h *Handler) AddFavorite(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	songID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid song id")
		return
	}
	exists, err := h.repo.Exists(c.Request.Context(), songID)
	if err != nil {
		response.Internal(c, "failed to check song")
		return
	}
	if !exists {
		response.NotFound(c, "song not found")
		return
	}
	if err := h.repo.AddFavorite(c.Request.Context(), userID, songID); err != nil {
		h.logger.Error("add favorite", zap.Error(err))
		response.Internal(c, "failed to add favorite")
		return
	}
	response.OK(c, gin.H{"message": "favorite added"})
}

// RemoveFavorite handles DELETE /songs/:id/favorite.
func (h *Handler) RemoveFavorite(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	songID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid song id")
		return
	}
	if err := h.repo.RemoveFavorite(c.Request.Context(), userID, songID); err != nil {
		h.logger.Error("remove favorite", zap.Error(err))
		response.Internal(c, "failed to remove favorite")
		return
	}
	response.OK(c, gin.H{"message": "favorite removed"})
}

// ListFavorites handles GET /songs/favorites.
func (h *Handler) ListFavorites(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	list, err := h.repo.ListFavorites(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list favorites", zap.Error(err))
		response.Internal(c, "failed to list favorites")
		return
	}
	for _, s := range list {
		h.fillMediaURLs(c.Request.Context(), s)
	}
	response.OK(c, gin.H{"songs": list})
}

func (h *Handler) fillMediaURLs(ctx context.Context, s *models.Song) {
	if h.s3 == nil {
		return
	}
	expire := h.s3.PresignExpire()
	if s.AudioKey != "" {
		if url, err := h.s3.GeneratePresignedDownloadURL(ctx, s.AudioKey, expire); err == nil {
			s.AudioURL = url
		}
	}
	if s.ThumbnailKey != "" {
		if url, err := h.s3.GeneratePresignedDownloadURL(ctx, s.ThumbnailKey, expire); err == nil {
			s.ThumbnailURL = url
		}
	}
}
