// Package main runs the meetup ops HTTP API with WebSocket updates and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meetup-ops/backend/config"
	"github.com/meetup-ops/backend/internal/access"
	"github.com/meetup-ops/backend/internal/audit"
	"github.com/meetup-ops/backend/internal/auth"
	"github.com/meetup-ops/backend/internal/digest"
	"github.com/meetup-ops/backend/internal/events"
	"github.com/meetup-ops/backend/internal/media"
	"github.com/meetup-ops/backend/internal/metrics"
	"github.com/meetup-ops/backend/internal/middleware"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/internal/notify"
	"github.com/meetup-ops/backend/internal/realtime"
	"github.com/meetup-ops/backend/internal/sop"
	"github.com/meetup-ops/backend/internal/speakers"
	"github.com/meetup-ops/backend/internal/venues"
	"github.com/meetup-ops/backend/internal/volunteers"
	"github.com/meetup-ops/backend/internal/worker"
	"github.com/meetup-ops/backend/pkg/database"
	"github.com/meetup-ops/backend/pkg/queue"
	"github.com/meetup-ops/backend/pkg/redis"
	"github.com/meetup-ops/backend/pkg/response"
	"github.com/meetup-ops/backend/pkg/storage"
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

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Photo storage is optional; without a bucket the photo endpoints answer 503.
	var objects media.ObjectStore
	if cfg.AWS.MediaBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MediaBucket:          cfg.AWS.MediaBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			objects = s3Client
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	jobQueue := queue.NewQueue(rdb.Client, cfg.Queue.MaxRetries, logger)
	notifier := notify.NewQueueDispatcher(jobQueue, logger, m)

	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Audit
	auditRepo := audit.NewRepository(pool)
	recorder := audit.NewRecorder(auditRepo, logger, m)
	auditHandler := audit.NewHandler(auditRepo, audit.NewPostgresNameRegistry(pool), logger)

	// Access
	resolver := access.NewResolver(access.NewRepository(pool), logger)

	// Auth and users
	authRepo := auth.NewRepository(pool)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessExpireMins)*time.Minute)
	authService := auth.NewService(authRepo, jwtService, time.Duration(cfg.JWT.RefreshExpireDays)*24*time.Hour, recorder, logger)
	authHandler := auth.NewHandler(authService, logger)

	// Events
	eventRepo := events.NewRepository(pool)
	eventService := events.NewService(eventRepo, recorder, notifier, cfg.Email.AppBaseURL, logger)
	eventHandler := events.NewHandler(eventService)

	// SOP templates and checklists
	sopService := sop.NewService(sop.NewRepository(pool), eventService, recorder, notifier, hub, m, logger)
	sopHandler := sop.NewHandler(sopService)

	// Speakers
	speakerRepo := speakers.NewRepository(pool)
	speakerHandler := speakers.NewHandler(speakers.NewService(speakerRepo, recorder))
	speakerPhotos := media.NewHandler(media.NewPhotos(objects, speakerRepo, storage.FolderSpeakers, models.EntitySpeaker, recorder, logger))

	// Venues
	venueRepo := venues.NewRepository(pool)
	venueHandler := venues.NewHandler(venues.NewService(venueRepo, eventService, sopService, recorder, notifier, logger))
	venuePhotos := media.NewHandler(media.NewPhotos(objects, venueRepo, storage.FolderVenues, models.EntityVenue, recorder, logger))

	// Volunteers and members
	volunteerService := volunteers.NewService(volunteers.NewRepository(pool), eventService, recorder, notifier, cfg.Volunteers.PromotionThreshold, logger)
	volunteerHandler := volunteers.NewHandler(volunteerService)

	// Notification logs and weekly digest
	notificationRepo := notify.NewRepository(pool)
	notificationHandler := notify.NewHandler(notificationRepo, logger)
	digestService := digest.NewService(eventRepo, authRepo, notifier, cfg.Digest.BatchSize, time.Duration(cfg.Digest.LookaheadDays)*24*time.Hour, logger)
	digestHandler := digest.NewHandler(digestService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(m.Middleware())

	// Health and metrics
	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil || !rdb.Healthy(c.Request.Context()) {
			response.ServiceUnavailable(c, "dependencies unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// Scheduled jobs (shared secret)
	cron := router.Group("/cron")
	cron.Use(middleware.RequireCronSecret(cfg.Cron.Secret))
	{
		cron.POST("/weekly-digest", digestHandler.WeeklyDigest)
	}

	read := middleware.RequireEventAccess(resolver, access.ModeRead)
	update := middleware.RequireEventAccess(resolver, access.ModeUpdate)
	volunteer := middleware.RequireMinimumRole(models.RoleVolunteer)
	lead := middleware.RequireMinimumRole(models.RoleEventLead)
	admin := middleware.RequireMinimumRole(models.RoleAdmin)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(authService))
	{
		api.GET("/me", authHandler.Me)

		// Users
		api.GET("/users", admin, authHandler.List)
		api.PATCH("/users/:id/role", admin, authHandler.ChangeRole)
		api.DELETE("/users/:id", admin, authHandler.Delete)

		// Events
		api.GET("/events", eventHandler.List)
		api.POST("/events", lead, eventHandler.Create)
		api.GET("/events/:id", read, eventHandler.Get)
		api.PATCH("/events/:id", update, eventHandler.Update)
		api.DELETE("/events/:id", admin, eventHandler.Delete)
		api.GET("/events/:id/members", read, eventHandler.ListMembers)
		api.POST("/events/:id/members", lead, eventHandler.AddMember)
		api.DELETE("/events/:id/members/:memberId", lead, eventHandler.RemoveMember)

		// Event speakers
		api.GET("/events/:id/speakers", read, speakerHandler.ListByEvent)
		api.POST("/events/:id/speakers", update, speakerHandler.Link)
		api.DELETE("/events/:id/speakers/:speakerId", update, speakerHandler.Unlink)

		// Event venue partners
		api.GET("/events/:id/venues", read, venueHandler.ListPartners)
		api.POST("/events/:id/venues", update, venueHandler.LinkPartner)
		api.PATCH("/events/:id/venues/:venueId", update, venueHandler.UpdatePartnerStatus)
		api.DELETE("/events/:id/venues/:venueId", update, venueHandler.UnlinkPartner)

		// Event volunteers
		api.GET("/events/:id/volunteers", read, volunteerHandler.ListByEvent)
		api.POST("/events/:id/volunteers", update, volunteerHandler.Assign)
		api.DELETE("/events/:id/volunteers/:volunteerId", update, volunteerHandler.Unassign)

		// Checklists
		api.POST("/events/:id/apply-template", update, sopHandler.ApplyTemplate)
		api.GET("/events/:id/checklists", read, sopHandler.ListChecklists)
		api.POST("/events/:id/checklists/:checklistId/tasks", update, sopHandler.AddTask)
		api.PATCH("/events/:id/tasks/:taskId", update, sopHandler.UpdateTask)

		// Notification delivery log
		api.GET("/events/:id/notifications", update, notificationHandler.ListByEvent)

		// Speaker directory
		api.GET("/speakers", volunteer, speakerHandler.List)
		api.GET("/speakers/:id", volunteer, speakerHandler.Get)
		api.POST("/speakers", lead, speakerHandler.Create)
		api.PUT("/speakers/:id", lead, speakerHandler.Update)
		api.DELETE("/speakers/:id", lead, speakerHandler.Delete)
		api.POST("/speakers/:id/photo/upload-url", lead, speakerPhotos.UploadURL)
		api.POST("/speakers/:id/photo", lead, speakerPhotos.Upload)
		api.PUT("/speakers/:id/photo", lead, speakerPhotos.Attach)
		api.GET("/speakers/:id/photo", volunteer, speakerPhotos.Download)

		// Venue directory
		api.GET("/venues", volunteer, venueHandler.List)
		api.GET("/venues/:id", volunteer, venueHandler.Get)
		api.POST("/venues", lead, venueHandler.Create)
		api.PUT("/venues/:id", lead, venueHandler.Update)
		api.DELETE("/venues/:id", lead, venueHandler.Delete)
		api.POST("/venues/:id/photo/upload-url", lead, venuePhotos.UploadURL)
		api.POST("/venues/:id/photo", lead, venuePhotos.Upload)
		api.PUT("/venues/:id/photo", lead, venuePhotos.Attach)
		api.GET("/venues/:id/photo", volunteer, venuePhotos.Download)

		// Volunteer directory and member promotion
		api.GET("/volunteers", lead, volunteerHandler.List)
		api.GET("/volunteers/:id", lead, volunteerHandler.Get)
		api.POST("/volunteers", lead, volunteerHandler.Create)
		api.PUT("/volunteers/:id", lead, volunteerHandler.Update)
		api.DELETE("/volunteers/:id", lead, volunteerHandler.Delete)
		api.POST("/volunteers/:id/promote", admin, volunteerHandler.Promote)
		api.GET("/members", lead, volunteerHandler.ListMembers)
		api.POST("/members", admin, volunteerHandler.CreateMember)

		// SOP templates
		api.GET("/sop-templates", volunteer, sopHandler.ListTemplates)
		api.GET("/sop-templates/:id", volunteer, sopHandler.GetTemplate)
		api.POST("/sop-templates", lead, sopHandler.CreateTemplate)
		api.PUT("/sop-templates/:id", lead, sopHandler.UpdateTemplate)
		api.DELETE("/sop-templates/:id", lead, sopHandler.DeleteTemplate)

		// Audit trail
		api.GET("/audit-logs", admin, auditHandler.List)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, realtime.NewUpgrader(config.SplitTrim(cfg.Server.CORSAllowedOrigins, ",")), authService, resolver, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.Queue.InlineWorker {
		processor := worker.NewNotificationProcessor(
			jobQueue,
			notify.NewSMTPSender(cfg.Email),
			notify.NewDiscordSender(cfg.Discord, &http.Client{Timeout: 10 * time.Second}),
			notificationRepo,
			m,
			logger,
		)
		go processor.Run(workerCtx)
		logger.Info("inline notification worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
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
