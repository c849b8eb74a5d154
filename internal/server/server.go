// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fableweaver/internal/ai"
	"fableweaver/internal/bootstrap"
	"fableweaver/internal/cache"
	"fableweaver/internal/config"
	"fableweaver/internal/featureflags"
	"fableweaver/internal/middleware"
	"fableweaver/internal/models"
	"fableweaver/internal/notifications"
	"fableweaver/internal/repository"
	"fableweaver/internal/service"
	"fableweaver/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const mediaRoute = "/media"

// wireableHub is implemented by every WebSocket hub that can be wired to
// Redis pub/sub and gracefully shut down.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo     repository.UserRepository
	bucket       *storage.LocalBucket
	generator    ai.Generator
	transcriber  ai.Transcriber
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	hubs         []wireableHub
	featureFlags *featureflags.Manager

	users           *service.UserService
	friends         *service.FriendService
	directMessages  *service.DirectMessageService
	notifications   *service.NotificationService
	novels          *service.NovelService
	chapters        *service.ChapterService
	characters      *service.CharacterService
	comments        *service.CommentService
	groupChats      *service.GroupChatService
	recommendations *service.RecommendationService
	threads         *service.ThreadService
	moderation      *service.ModerationService
	analytics       *service.AnalyticsService
	images          *service.ImageService
	imageSearch     *service.ImageSearchService
	transcription   *service.TranscriptionService
}

// Option overrides a collaborator that NewServerWithDeps would otherwise
// build from config.
type Option func(*Server)

// WithGenerator replaces the configured language model provider.
func WithGenerator(g ai.Generator) Option {
	return func(s *Server) { s.generator = g }
}

// WithTranscriber replaces the configured speech-to-text provider.
func WithTranscriber(t ai.Transcriber) Option {
	return func(s *Server) { s.transcriber = t }
}

// WithBucket replaces the configured media bucket.
func WithBucket(b *storage.LocalBucket) Option {
	return func(s *Server) { s.bucket = b }
}

// NewServer connects the database and Redis and builds the server. A nil
// Redis client leaves the app running without cache, locks or realtime.
func NewServer(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{
		SeedDemo: cfg.DevSeedDemo && !cfg.IsProduction(),
	})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb, opts...)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...Option) (*Server, error) {
	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("fableweaver-api"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		notifier:       notifications.NewNotifier(redisClient),
	}
	for _, opt := range opts {
		opt(s)
	}

	prompts, err := ai.DefaultPrompts()
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	if s.generator == nil {
		if s.generator, err = ai.NewGenerator(context.Background(), cfg); err != nil {
			return nil, err
		}
	}
	if s.transcriber == nil {
		s.transcriber = ai.NewTranscriber(cfg)
	}
	if s.bucket == nil {
		if s.bucket, err = storage.NewLocalBucket(cfg.StorageDir, cfg.StoragePublicURL); err != nil {
			return nil, fmt.Errorf("open media bucket: %w", err)
		}
	}

	if redisClient != nil {
		s.hub = notifications.NewHub(redisClient)
		s.hubs = []wireableHub{s.hub}
	}

	s.userRepo = repository.NewUserRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	novelRepo := repository.NewNovelRepository(db)
	chapterRepo := repository.NewChapterRepository(db)
	characterRepo := repository.NewCharacterRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	readingRepo := repository.NewReadingHistoryRepository(db)

	s.images = service.NewImageService(s.bucket, cfg)
	s.imageSearch = service.NewImageSearchService(cfg)
	s.transcription = service.NewTranscriptionService(s.transcriber, cfg)
	s.users = service.NewUserService(s.userRepo, s.images)
	s.notifications = service.NewNotificationService(repository.NewNotificationRepository(db), s.notifier)
	s.friends = service.NewFriendService(friendRepo, s.userRepo, s.notifications)
	s.directMessages = service.NewDirectMessageService(
		repository.NewDirectMessageRepository(db), friendRepo, s.userRepo, s.notifications, s.notifier)
	s.novels = service.NewNovelService(novelRepo, chapterRepo, commentRepo, s.images)
	s.chapters = service.NewChapterService(
		novelRepo, chapterRepo, characterRepo, readingRepo, s.generator, prompts, s.notifier, cfg)
	s.characters = service.NewCharacterService(characterRepo, novelRepo, s.generator, prompts, s.images, cfg)
	s.comments = service.NewCommentService(commentRepo, chapterRepo, novelRepo, s.notifications, s.isAdminByUserID)
	s.groupChats = service.NewGroupChatService(
		repository.NewGroupChatRepository(db), characterRepo, s.generator, prompts,
		s.featureFlags, s.notifier, service.GroupChatConfigFrom(cfg))
	s.recommendations = service.NewRecommendationService(novelRepo, readingRepo, s.generator, prompts, s.featureFlags)
	s.threads = service.NewThreadService(repository.NewThreadRepository(db), s.userRepo)
	s.moderation = service.NewModerationService(s.userRepo, novelRepo, characterRepo, s.notifications, s.notifier)
	s.analytics = service.NewAnalyticsService(repository.NewAnalyticsRepository(db))

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Context Middleware to propagate Request ID and trace ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before middlewares that can short-circuit (e.g. limiter) so
	// browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(middleware.GlobalRateLimit(100, time.Minute))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	api.Get("/", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	if s.bucket != nil {
		app.Static(mediaRoute, s.bucket.Root(), fiber.Static{MaxAge: 86400})
	}

	// Realtime: tickets are issued over HTTP and redeemed on upgrade.
	app.Get("/ws", s.AuthRequired(), s.WebsocketHandler())
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.Limit(s.redis, "signup"), s.Signup)
	auth.Post("/login", middleware.Limit(s.redis, "login"), s.Login)
	auth.Post("/refresh", s.AuthRequired(), s.Refresh)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Static segments that would otherwise match the public /:id reads below.
	api.Get("/novels/mine", s.AuthRequired(), s.GetMyNovels)
	api.Get("/characters/mine", s.AuthRequired(), s.GetMyCharacters)
	api.Get("/threads/saved", s.AuthRequired(), s.GetSavedThreads)

	// Public reads. A bearer token, when present, personalizes visibility.
	api.Get("/novels", s.GetLibrary)
	api.Get("/novels/:id", s.GetNovel)
	api.Get("/novels/:id/chapters", s.GetChapters)
	api.Get("/novels/:id/chapters/:number", s.ReadChapter)
	api.Get("/novels/:id/comments", s.GetNovelComments)
	api.Get("/novels/:id/characters", s.GetNovelCharacters)
	api.Get("/chapters/:id/comments", s.GetChapterComments)
	api.Get("/characters", s.GetPublicCharacters)
	api.Get("/threads", s.GetThreads)
	api.Get("/threads/:id", s.GetThread)
	api.Get("/threads/:id/comments", s.GetThreadComments)
	api.Get("/reactions/:targetType/:targetId", s.GetReactions)

	protected := api.Group("", s.AuthRequired())

	protected.Get("/feature-flags", s.GetMyFeatureFlags)

	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Patch("/me", s.UpdateMyProfile)
	users.Post("/me/avatar", middleware.Limit(s.redis, "avatar_upload"), s.UploadMyAvatar)
	users.Get("/search", middleware.Limit(s.redis, "user_search"), s.SearchUsers)
	users.Get("/:id", s.GetUserProfile)

	friends := protected.Group("/friends")
	friends.Get("/", s.GetFriends)
	friends.Post("/requests/:userId", middleware.Limit(s.redis, "friend_request"), s.SendFriendRequest)
	friends.Get("/requests", s.GetPendingRequests)
	friends.Get("/requests/sent", s.GetSentRequests)
	friends.Post("/requests/:requestId/accept", s.AcceptFriendRequest)
	friends.Post("/requests/:requestId/reject", s.RejectFriendRequest)
	friends.Delete("/requests/:requestId", s.CancelFriendRequest)
	friends.Get("/status/:userId", s.GetFriendshipStatus)
	friends.Delete("/:userId", s.RemoveFriend)

	messages := protected.Group("/messages")
	messages.Get("/", s.GetConversations)
	messages.Get("/:userId", s.GetConversation)
	messages.Post("/:userId", middleware.Limit(s.redis, "direct_message"), s.SendDirectMessage)
	messages.Post("/:userId/read", s.MarkConversationRead)

	notes := protected.Group("/notifications")
	notes.Get("/", s.GetNotifications)
	notes.Get("/unread-count", s.GetUnreadNotificationCount)
	notes.Post("/read-all", s.MarkAllNotificationsRead)
	notes.Post("/:id/read", s.MarkNotificationRead)

	protected.Get("/recommendations", s.GetRecommendations)

	novels := protected.Group("/novels")
	novels.Post("/", middleware.Limit(s.redis, "create_novel"), s.CreateNovel)
	novels.Patch("/:id", s.UpdateNovel)
	novels.Delete("/:id", s.DeleteNovel)
	novels.Post("/:id/cover", middleware.Limit(s.redis, "cover_upload"), s.UploadNovelCover)
	novels.Post("/:id/comments", middleware.Limit(s.redis, "create_comment"), s.CreateNovelComment)
	novels.Post("/:id/chapters", s.CreateChapter)
	novels.Post("/:id/chapters/generate", middleware.Limit(s.redis, "generate_chapter"), s.GenerateChapter)
	novels.Put("/:id/chapters/:number", s.UpdateChapter)
	novels.Get("/:id/chapters/:number/revisions", s.GetChapterRevisions)
	novels.Get("/:id/chapters/:number/diff", s.DiffChapter)

	protected.Post("/chapters/:id/comments", middleware.Limit(s.redis, "create_comment"), s.CreateChapterComment)
	protected.Delete("/comments/:kind/:id", s.DeleteComment)

	characters := protected.Group("/characters")
	characters.Post("/", s.CreateCharacter)
	characters.Post("/generate", middleware.Limit(s.redis, "generate_character"), s.GenerateCharacter)
	characters.Get("/:id", s.GetCharacter)
	characters.Patch("/:id", s.UpdateCharacter)
	characters.Delete("/:id", s.DeleteCharacter)
	characters.Post("/:id/avatar", middleware.Limit(s.redis, "avatar_upload"), s.UploadCharacterAvatar)

	chats := protected.Group("/group-chats")
	chats.Get("/", s.GetGroupChats)
	chats.Post("/", s.CreateGroupChat)
	chats.Get("/:id", s.GetGroupChat)
	chats.Patch("/:id", s.UpdateGroupChat)
	chats.Delete("/:id", s.DeactivateGroupChat)
	chats.Post("/:id/messages", middleware.Limit(s.redis, "group_chat_turn"), s.SendGroupChatMessage)
	chats.Delete("/:id/messages", s.ClearGroupChat)

	threads := protected.Group("/threads")
	threads.Post("/", middleware.Limit(s.redis, "create_thread"), s.CreateThread)
	threads.Put("/:id", s.UpdateThread)
	threads.Delete("/:id", s.DeleteThread)
	threads.Post("/:id/comments", middleware.Limit(s.redis, "thread_comment"), s.CreateThreadComment)
	threads.Delete("/comments/:commentId", s.DeleteThreadComment)
	threads.Post("/:id/save", s.SaveThread)
	threads.Delete("/:id/save", s.UnsaveThread)
	protected.Post("/reactions", middleware.Limit(s.redis, "reaction"), s.ToggleReaction)

	protected.Get("/images/search", middleware.Limit(s.redis, "image_search"), s.SearchImages)
	protected.Post("/transcribe", middleware.Limit(s.redis, "transcribe"), s.Transcribe)

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/dashboard", s.GetAdminDashboard)
	admin.Get("/analytics/users", s.GetUserAnalytics)
	admin.Get("/analytics/groups", s.GetGroupAnalytics)
	admin.Get("/analytics/content", s.GetContentAnalytics)
	admin.Get("/metrics", monitor.New(monitor.Config{Title: "FableWeaver API Metrics"}))
	admin.Get("/feature-flags", s.GetFeatureFlags)

	admin.Get("/novels", s.GetModerationQueue)
	admin.Post("/novels/:id/approve", s.ApproveNovel)
	admin.Post("/novels/:id/reject", s.RejectNovel)
	admin.Post("/novels/:id/hide", s.HideNovel)
	admin.Post("/novels/:id/restore", s.RestoreNovel)

	admin.Get("/users", s.GetAdminUsers)
	admin.Get("/users/:id", s.GetAdminUserDetail)
	admin.Post("/users/:id/ban", s.BanUser)
	admin.Post("/users/:id/unban", s.UnbanUser)
	admin.Post("/users/:id/promote", s.PromoteUser)
	admin.Post("/users/:id/demote", s.DemoteUser)

	admin.Get("/comments", s.GetAdminComments)
	admin.Post("/comments/:kind/:id/:action", s.ModerateComment)
}

// LivenessCheck reports whether the process is up
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether the database and Redis are reachable
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unhealthy"
	} else if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	aiStatus := "unavailable"
	if s.generator != nil {
		aiStatus = s.generator.Name()
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"service": "fableweaver-api",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"ai":       aiStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that the user is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := c.Locals(localUser).(*models.User)
		if !ok || user == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		if !user.IsAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// AuthRequired authenticates the request with a single-use WebSocket ticket
// on the realtime route, or a bearer token everywhere else. Revoked tokens
// and banned accounts are rejected.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/ws" {
			return s.authenticateTicket(c)
		}

		raw := middleware.BearerToken(c)
		if raw == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := middleware.ParseToken(s.config.JWTSecret, raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}
		if cache.IsTokenRevoked(c.UserContext(), claims.JTI) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token has been revoked"))
		}

		c.Locals(localClaims, claims)
		return s.attachUser(c, claims.UserID)
	}
}

func (s *Server) authenticateTicket(c *fiber.Ctx) error {
	ticket := c.Query("ticket")
	if ticket == "" {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("WebSocket ticket required"))
	}
	userID, ok, err := cache.RedeemWSTicket(c.UserContext(), ticket)
	if err != nil && !errors.Is(err, cache.ErrNoRedis) {
		slog.ErrorContext(c.UserContext(), "redeem ws ticket failed", slog.String("error", err.Error()))
	}
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
	}
	return s.attachUser(c, userID)
}

// attachUser loads the account behind an authenticated request, stores it in
// locals and the user context, and records activity.
func (s *Server) attachUser(c *fiber.Ctx, userID uint) error {
	ctx := c.UserContext()
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if appErr, ok := models.AsAppError(err); ok && appErr.Code == models.CodeNotFound {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Account no longer exists"))
		}
		return respondError(c, err)
	}
	if user.IsBanned {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Account is banned"))
	}

	c.Locals(localUserID, user.ID)
	c.Locals(localUser, user)
	c.SetUserContext(context.WithValue(ctx, middleware.UserIDKey, user.ID))

	if err := s.users.TouchActivity(c.UserContext(), user); err != nil {
		slog.WarnContext(c.UserContext(), "failed to record activity", slog.String("error", err.Error()))
	}
	return c.Next()
}

// optionalUserID extracts the user from a bearer token without enforcing it.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	raw := middleware.BearerToken(c)
	if raw == "" {
		return 0
	}
	claims, err := middleware.ParseToken(s.config.JWTSecret, raw)
	if err != nil || cache.IsTokenRevoked(c.UserContext(), claims.JTI) {
		return 0
	}
	return claims.UserID
}

func (s *Server) isAdminByUserID(ctx context.Context, userID uint) (bool, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("is_admin").First(&user, userID).Error; err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

// NewApp builds the Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	bodyLimit := max(s.config.ImageMaxUploadSizeMB, s.config.AudioMaxUploadSizeMB, 4) + 1
	app := fiber.New(fiber.Config{
		AppName:     "FableWeaver API",
		BodyLimit:   bodyLimit << 20,
		JSONEncoder: sonic.Marshal,
		JSONDecoder: sonic.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			slog.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.notifier != nil {
		for _, h := range s.hubs {
			go func() {
				if err := h.StartWiring(s.shutdownCtx, s.notifier); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("hub wiring stopped", slog.String("hub", h.Name()), slog.String("error", err.Error()))
				}
			}()
		}
	}

	slog.Info("server starting", slog.String("port", s.config.Port), slog.String("ai_provider", s.generator.Name()))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			slog.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			slog.Error("error shutting down hub", slog.String("hub", h.Name()), slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			slog.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			slog.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	slog.Info("server shutdown complete")
	return nil
}
