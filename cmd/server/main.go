// Package main runs the M_Track HTTP server: session lifecycle API, song
// catalog, auth and the inactivity sweeper, with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mtrack/backend/config"
	"github.com/mtrack/backend/internal/admin"
	"github.com/mtrack/backend/internal/alerts"
	"github.com/mtrack/backend/internal/auth"
	"github.com/mtrack/backend/internal/emailconfig"
	"github.com/mtrack/backend/internal/emaillogs"
	"github.com/mtrack/backend/internal/middleware"
	"github.com/mtrack/backend/internal/predictor"
	"github.com/mtrack/backend/internal/sessions"
	"github.com/mtrack/backend/internal/songs"
	"github.com/mtrack/backend/pkg/database"
	"github.com/mtrack/backend/pkg/queue"
	"github.com/mtrack/backend/pkg/redis"
	"github.com/mtrack/backend/pkg/response"
	"github.com/mtrack/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MediaBucket:          cfg.AWS.MediaBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)

	// Songs
	songRepo := songs.NewRepository(pool)
	songHandler := songs.NewHandler(songRepo, s3Client, logger)

	// Prediction gateway: remote classifier when configured, rule fallback
	// otherwise.
	gateway := predictor.New(cfg.Predictor.URL, cfg.Predictor.TimeoutSec, logger)

	// Alerts ride the email queue; dispatch failures never surface.
	dispatcher := alerts.NewDispatcher(jobQueue, authRepo, logger)

	// Sessions
	sessionRepo := sessions.NewRepository(pool)
	sessionSvc := sessions.NewService(sessionRepo, songRepo, gateway, dispatcher, logger)
	sessionHandler := sessions.NewHandler(sessionSvc, logger)
	sweeper := sessions.NewSweeper(sessionSvc, sessionRepo,
		time.Duration(cfg.Session.SweepIntervalMin)*time.Minute, logger)

	authHandler := auth.NewHandler(authRepo, jwtService, sessionRepo, jobQueue, logger)

	// Admin
	emailLogRepo := emaillogs.NewRepository(pool)
	emailConfigRepo := emailconfig.NewRepository(pool)
	adminHandler := admin.NewHandler(authRepo, sessionRepo, songRepo, emailLogRepo, emailConfigRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	v1 := router.Group("/api/v1")

	// Auth (public)
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	jwtValidate := func(token string) (middleware.Identity, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return middleware.Identity{}, err
		}
		return middleware.Identity{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
	}

	// Protected API (JWT required)
	api := v1.Group("")
	api.Use(middleware.JWT(jwtValidate))
	{
		api.GET("/auth/me", authHandler.Me)
		api.POST("/auth/logout", authHandler.Logout)

		// Sessions
		api.POST("/sessions/start", sessionHandler.Start)
		api.POST("/sessions/heartbeat", sessionHandler.Heartbeat)
		api.POST("/sessions/end", sessionHandler.End)
		api.GET("/sessions/active", sessionHandler.Active)
		api.GET("/sessions/latest", sessionHandler.Latest)
		api.GET("/sessions", sessionHandler.List)
		api.GET("/sessions/:id", sessionHandler.Get)

		// Song catalog
		api.GET("/songs", songHandler.List)
		api.GET("/songs/categories", songHandler.Categories)
		api.GET("/songs/favorites", songHandler.ListFavorites)
		api.GET("/songs/:id", songHandler.Get)
		api.POST("/songs/:id/favorite", songHandler.AddFavorite)
		api.DELETE("/songs/:id/favorite", songHandler.RemoveFavorite)

		// Admin
		adminGroup := api.Group("/admin", middleware.RequireRole("admin"))
		{
			adminGroup.GET("/users", authHandler.List)
			adminGroup.GET("/analytics", adminHandler.Analytics)
			adminGroup.GET("/emails", adminHandler.EmailLogs)
			adminGroup.GET("/email-config", adminHandler.GetEmailConfig)
			adminGroup.PUT("/email-config", adminHandler.UpdateEmailConfig)
			adminGroup.POST("/songs", songHandler.Upload)
			adminGroup.PUT("/songs/:id", songHandler.Update)
			adminGroup.PATCH("/songs/:id/visibility", songHandler.ToggleVisibility)
			adminGroup.DELETE("/songs/:id", songHandler.Delete)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Inactivity sweeper (force-ends idle sessions)
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go sweeper.Run(sweepCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sweepCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
