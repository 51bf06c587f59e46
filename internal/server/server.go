// Package server contains the HTTP handlers and route wiring for Warbler.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"warbler/internal/cache"
	"warbler/internal/config"
	"warbler/internal/database"
	"warbler/internal/middleware"
	"warbler/internal/models"
	"warbler/internal/repository"
	"warbler/internal/service"
	"warbler/internal/session"
	"warbler/internal/views"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/gofiber/template/html/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	views          *html.Engine
	sessions       *session.Manager
	promMiddleware *fiberprometheus.FiberPrometheus
	userRepo       repository.UserRepository
	messageRepo    repository.MessageRepository
	authService    *service.AuthService
	userService    *service.UserService
	messageService *service.MessageService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Sessions live in Redis, so it is required.
	if err := cache.InitRedis(cfg.RedisURL); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use it with an in-memory database and miniredis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, errors.New("server: database is required")
	}
	if redisClient == nil {
		return nil, errors.New("server: redis client is required")
	}

	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	authService := service.NewAuthService(userRepo)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		views:          views.New(),
		sessions:       session.NewManager(redisClient, cfg.SessionSecret, cfg.SessionTTL()),
		promMiddleware: middleware.InitMetrics("warbler"),
		userRepo:       userRepo,
		messageRepo:    messageRepo,
		authService:    authService,
		userService:    service.NewUserService(userRepo, messageRepo, authService),
		messageService: service.NewMessageService(messageRepo, userRepo),
	}
	s.app = s.newApp()
	return s, nil
}

// App returns the configured Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Warbler",
		Views:        s.views,
		ViewsLayout:  views.DefaultLayout,
		ErrorHandler: s.ErrorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers. Profile images may be hosted anywhere.
	app.Use(helmet.New(helmet.Config{
		CrossOriginEmbedderPolicy: "unsafe-none",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// Global rate limiting (300 requests per minute per IP) outside dev and test.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return !s.config.RateLimitEnabled() || strings.HasPrefix(c.Path(), "/static")
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later.")
		},
	}))

	app.Use("/static", filesystem.New(filesystem.Config{
		Root:   views.Static(),
		MaxAge: 3600,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Probes and scrapes are registered ahead of the session gate.
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Use(middleware.SessionGate(s.sessions, s.userRepo, middleware.SessionOptions{
		Secure: s.config.IsProduction(),
	}))

	app.Get("/", s.Home)

	throttle := middleware.RateLimiter{Redis: s.redis, Enabled: s.config.RateLimitEnabled()}

	// Auth routes
	app.Get("/signup", s.SignupForm)
	app.Post("/signup", middleware.RateLimit(
		throttle, 5, 10*time.Minute, "signup"), s.Signup)
	app.Get("/login", s.LoginForm)
	app.Post("/login", middleware.RateLimit(
		throttle, 10, 5*time.Minute, "login"), s.Login)
	app.Get("/logout", s.Logout)

	// User routes. Fixed paths come before /:id.
	users := app.Group("/users")
	users.Get("/", s.ListUsers)
	users.Get("/profile", middleware.LoginRequired, s.EditProfileForm)
	users.Post("/profile", middleware.LoginRequired, s.UpdateProfile)
	users.Post("/delete", middleware.LoginRequired, s.DeleteUser)
	users.Post("/follow/:follow_id", middleware.LoginRequired, s.Follow)
	users.Post("/stop-following/:follow_id", middleware.LoginRequired, s.StopFollowing)
	users.Post("/add_like/:message_id", middleware.LoginRequired, s.AddLike)
	users.Post("/remove_like/:message_id", middleware.LoginRequired, s.RemoveLike)
	users.Get("/:id/following", middleware.LoginRequired, s.ShowFollowing)
	users.Get("/:id/followers", middleware.LoginRequired, s.ShowFollowers)
	users.Get("/:id/likes", middleware.LoginRequired, s.ShowLikes)
	users.Get("/:id", s.ShowUser)

	// Message routes
	messages := app.Group("/messages")
	messages.Get("/new", middleware.LoginRequired, s.NewMessageForm)
	messages.Post("/new", middleware.LoginRequired, middleware.RateLimit(
		throttle, 30, time.Minute, "create_message"), s.CreateMessage)
	messages.Post("/:id/delete", middleware.LoginRequired, s.DeleteMessage)
	messages.Get("/:id", s.ShowMessage)
}

// ErrorHandler renders the error page for errors returned by handlers.
// Unknown routes and NOT_FOUND errors become a 404 page; anything else
// without a status is a 500.
func (s *Server) ErrorHandler(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}

	ctx := c.UserContext()
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(ctx, "request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}

	message := utils.StatusMessage(status)
	if fe != nil && status < fiber.StatusInternalServerError {
		message = fe.Message
	}

	if wantsJSON(c) {
		if status >= fiber.StatusInternalServerError {
			err = models.NewInternalError(err)
		}
		return models.RespondWithError(c, status, err)
	}

	if rerr := s.render(c, status, "error", fiber.Map{
		"Title":   strconv.Itoa(status),
		"Status":  status,
		"Message": message,
	}); rerr != nil {
		middleware.Logger.ErrorContext(ctx, "failed to render error page", slog.String("error", rerr.Error()))
		return c.Status(status).SendString(message)
	}
	return nil
}

// wantsJSON reports whether the client prefers JSON over HTML. Probe paths
// always answer in JSON.
func wantsJSON(c *fiber.Ctx) bool {
	if strings.HasPrefix(c.Path(), "/health") {
		return true
	}
	return c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON
}

// Start starts the server
func (s *Server) Start() error {
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
