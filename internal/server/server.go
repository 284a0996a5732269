// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "zanhu/docs" // swagger docs
	"zanhu/internal/cache"
	"zanhu/internal/config"
	"zanhu/internal/database"
	"zanhu/internal/featureflags"
	"zanhu/internal/markdown"
	"zanhu/internal/middleware"
	"zanhu/internal/models"
	"zanhu/internal/notifications"
	"zanhu/internal/repository"
	"zanhu/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

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

	userRepo         repository.UserRepository
	articleRepo      repository.ArticleRepository
	newsRepo         repository.NewsRepository
	messageRepo      repository.MessageRepository
	notificationRepo repository.NotificationRepository
	qaRepo           repository.QARepository

	notifier     *notifications.Notifier
	hub          *notifications.Hub
	hubs         []wireableHub // all hubs for wiring/shutdown iteration
	featureFlags *featureflags.Manager
	renderer     *markdown.Renderer

	userService         *service.UserService
	articleService      *service.ArticleService
	newsService         *service.NewsService
	messageService      *service.MessageService
	notificationService *service.NotificationService
	qaService           *service.QAService
}

var (
	promOnce sync.Once
	promMW   *fiberprometheus.FiberPrometheus
)

// initMetrics registers the Prometheus collectors once per process; several
// Server instances share them.
func initMetrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promMW = middleware.InitMetrics("zanhu-api")
	})
	return promMW
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	flags := featureflags.NewManager(cfg.FeatureFlags)

	server := &Server{
		config:           cfg,
		db:               db,
		redis:            redisClient,
		promMiddleware:   initMetrics(),
		userRepo:         repository.NewUserRepository(db),
		articleRepo:      repository.NewArticleRepository(db),
		newsRepo:         repository.NewNewsRepository(db),
		messageRepo:      repository.NewMessageRepository(db),
		notificationRepo: repository.NewNotificationRepository(db),
		qaRepo:           repository.NewQARepository(db),
		featureFlags:     flags,
		renderer:         markdown.NewRenderer(flags.Enabled(featureflags.MarkdownCache, 0)),
	}

	// A nil notifier publishes nothing; the services still persist.
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub(redisClient)
		server.hub.Presence().SetCallbacks(server.publishPresence(true), server.publishPresence(false))
		server.hubs = []wireableHub{server.hub}
	}

	server.userService = service.NewUserService(server.userRepo)
	server.notificationService = service.NewNotificationService(
		server.notificationRepo, server.userRepo, server.notifier)
	server.articleService = service.NewArticleService(
		server.articleRepo, server.notificationService, server.renderer)
	server.newsService = service.NewNewsService(
		server.newsRepo, server.notificationService, server.notifier, flags)
	server.messageService = service.NewMessageService(
		server.messageRepo, server.userRepo, server.notifier)
	server.qaService = service.NewQAService(
		server.qaRepo, server.notificationService, server.renderer)

	return server, nil
}

const defaultGlobalRateLimit = 100

// Per-action quotas. Credential endpoints fail closed when redis is down.
var (
	signupLimit      = middleware.Limit{Name: "signup", Max: 3, Window: 10 * time.Minute, Policy: middleware.FailClosed}
	loginLimit       = middleware.Limit{Name: "login", Max: 10, Window: 5 * time.Minute, Policy: middleware.FailClosed}
	postNewsLimit    = middleware.Limit{Name: "post_news", Max: 10, Window: time.Minute}
	replyNewsLimit   = middleware.Limit{Name: "reply_news", Max: 20, Window: time.Minute}
	sendMessageLimit = middleware.Limit{Name: "send_message", Max: 15, Window: time.Minute}
	voteLimit        = middleware.Limit{Name: "vote", Max: 30, Window: time.Minute}
)

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Security headers
	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())

	// CORS sits in front of the limiter so 429s still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	perMinute := s.config.GlobalRateLimit
	if perMinute <= 0 {
		perMinute = defaultGlobalRateLimit
	}
	app.Use(limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: time.Minute,
		// Preflights are answered by CORS above and never count.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.HealthCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Zanhu Metrics Dashboard",
	}))

	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, signupLimit), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, loginLimit), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Public reads
	api.Get("/articles", s.GetArticles)
	api.Get("/questions", s.GetQuestions)
	api.Get("/questions/answered", s.GetAnsweredQuestions)
	api.Get("/questions/unanswered", s.GetUnansweredQuestions)

	// WebSocket ticket issuance
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)

	// Registered ahead of the protected group so ticket upgrades authenticate once.
	ws := api.Group("/ws", s.AuthRequired())
	ws.Get("/", s.WebsocketHandler())

	// Protected routes
	protected := api.Group("", s.AuthRequired())

	users := protected.Group("/users")
	users.Get("/", s.GetUsers)
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Get("/:username", s.GetUserProfile)

	// Specific article routes before the generic /:slug route
	articles := protected.Group("/articles")
	articles.Get("/drafts", s.GetDrafts)
	articles.Post("/", s.CreateArticle)
	articles.Put("/:id<int>", s.UpdateArticle)
	articles.Get("/:slug/comments", s.GetArticleComments)
	articles.Post("/:slug/comments", s.CommentArticle)
	articles.Get("/:slug", s.GetArticle)

	news := protected.Group("/news")
	news.Get("/", s.GetNews)
	news.Post("/", middleware.RateLimit(s.redis, postNewsLimit), s.CreateNews)
	news.Post("/:id/like", s.LikeNews)
	news.Get("/:id/thread", s.GetNewsThread)
	news.Post("/:id/comments", middleware.RateLimit(s.redis, replyNewsLimit), s.ReplyNews)
	news.Post("/:id/interactions", s.GetNewsInteractions)
	news.Delete("/:id", s.DeleteNews)

	messages := protected.Group("/messages")
	messages.Get("/", s.GetInbox)
	messages.Post("/", middleware.RateLimit(s.redis, sendMessageLimit), s.SendMessage)
	messages.Post("/:id/read", s.MarkMessageRead)
	messages.Get("/:username", s.GetConversation)

	notifs := protected.Group("/notifications")
	notifs.Get("/", s.GetNotifications)
	notifs.Get("/latest", s.GetLatestNotifications)
	notifs.Post("/mark-all-read", s.MarkAllNotificationsRead)
	notifs.Post("/mark-all-unread", s.MarkAllNotificationsUnread)
	notifs.Post("/:slug/read", s.MarkNotificationRead)
	notifs.Post("/:slug/unread", s.MarkNotificationUnread)

	vote := middleware.RateLimit(s.redis, voteLimit)

	questions := protected.Group("/questions")
	questions.Post("/", s.CreateQuestion)
	questions.Post("/:id/answers", s.CreateAnswer)
	questions.Post("/:id/vote", vote, s.VoteQuestion)
	questions.Get("/:id", s.GetQuestion)

	answers := protected.Group("/answers")
	answers.Post("/:id/vote", vote, s.VoteAnswer)
	answers.Post("/:id/accept", s.AcceptAnswer)

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Post("/users/:id/promote", s.PromoteToAdmin)
	admin.Post("/users/:id/demote", s.DemoteFromAdmin)
}

// HealthCheck is a legacy/simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck reports that the process is up
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether dependencies are reachable
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Redis carries the realtime group, so it is required for readiness.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "zanhu",
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("userID").(uint)

		user, err := s.userRepo.GetByID(c.UserContext(), userID)
		if err != nil {
			return respondAppError(c, err)
		}
		if !user.IsAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws")

		// 1. Try WebSocket ticket first (short-lived, single-use)
		if ticket := c.Query("ticket"); ticket != "" && s.redis != nil {
			key := wsTicketKey(ticket)
			userIDStr, err := s.redis.GetDel(c.UserContext(), key).Result()
			if err == nil {
				if userID, parseErr := strconv.ParseUint(userIDStr, 10, 32); parseErr == nil {
					setAuthenticatedUser(c, uint(userID))
					return c.Next()
				}
			}
			if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		// 2. Fall back to JWT. Query tokens are refused on WS routes (must use ticket).
		claims, err := middleware.ParseAccessToken(
			middleware.BearerToken(c, !isWSPath), s.config.JWTSecret)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(tokenErrorMessage(err)))
		}

		if claims.JTI != "" && s.redis != nil {
			revoked, err := s.redis.Exists(c.UserContext(), revokedTokenKey(claims.JTI)).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals("claims", claims)
		setAuthenticatedUser(c, claims.UserID)
		return c.Next()
	}
}

func setAuthenticatedUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, middleware.ErrMissingToken):
		return "Authorization required"
	case errors.Is(err, middleware.ErrInvalidIssuer):
		return "Invalid token issuer"
	case errors.Is(err, middleware.ErrInvalidAud):
		return "Invalid token audience"
	case errors.Is(err, middleware.ErrInvalidSub):
		return "Invalid user ID in token"
	default:
		return "Invalid or expired token"
	}
}

// newApp builds the Fiber app with middleware and routes attached.
func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "zanhu API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
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

	s.app = s.newApp()

	// Wire all hubs to Redis subscriber if available
	if s.notifier != nil {
		for _, h := range s.hubs {
			h := h
			go func() {
				if err := h.StartWiring(s.shutdownCtx, s.notifier); err != nil {
					middleware.Logger.Error("hub wiring failed",
						slog.String("hub", h.Name()), slog.String("error", err.Error()))
				}
			}()
		}
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop all wiring goroutines
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	// Close WebSocket connections gracefully
	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub",
				slog.String("hub", h.Name()), slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
