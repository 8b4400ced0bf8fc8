// Package http provides the HTTP adapter over the lifecycle engine. It is a
// thin layer: request decoding, actor resolution and error-to-status mapping
// live here; every rule lives in the engine.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"workledger/internal/application/dispatcher"
	"workledger/internal/application/lifecycle"
	"workledger/internal/application/port"
	"workledger/internal/application/reconciler"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config      ServerConfig
	httpServer  *http.Server
	router      *gin.Engine
	engine      lifecycle.Engine
	coordinator *lifecycle.Coordinator
	registry    *reconciler.Registry
	feed        dispatcher.Dispatcher
	users       port.UserRepository
	settings    port.SettingsRepository
	logger      *zap.Logger
}

// NewServer creates a new HTTP server wired to the given application layer.
func NewServer(
	config ServerConfig,
	engine lifecycle.Engine,
	coordinator *lifecycle.Coordinator,
	registry *reconciler.Registry,
	feed dispatcher.Dispatcher,
	users port.UserRepository,
	settings port.SettingsRepository,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:      config,
		router:      gin.New(),
		engine:      engine,
		coordinator: coordinator,
		registry:    registry,
		feed:        feed,
		users:       users,
		settings:    settings,
		logger:      logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.engine, s.coordinator, s.registry, s.settings, s.logger)
	feed := NewFeedHandler(s.feed, s.logger)

	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api")
	api.Use(s.identityMiddleware())
	{
		entries := api.Group("/entries")
		{
			entries.POST("", handlers.CreateDraft)
			entries.GET("", handlers.ListEntries)
			entries.GET("/:id", handlers.GetEntry)
			entries.PUT("/:id", handlers.UpdateDraft)
			entries.DELETE("/:id", handlers.DeleteEntry)
			entries.POST("/:id/submit", handlers.SubmitEntry)
			entries.POST("/:id/approve", handlers.ApproveEntry)
			entries.POST("/:id/second-approve", handlers.SecondApproveEntry)
			entries.POST("/:id/reject", handlers.RejectEntry)
			entries.POST("/:id/request-info", handlers.RequestInfo)
			entries.POST("/:id/pay", handlers.MarkEntryPaid)
			entries.POST("/:id/trash", handlers.TrashEntry)
			entries.POST("/:id/restore", handlers.RestoreEntry)
			entries.POST("/:id/comments", handlers.AddComment)
			entries.POST("/bulk-approve", handlers.BulkApprove)
		}

		purchases := api.Group("/purchases")
		{
			purchases.POST("", handlers.CreatePurchaseDraft)
			purchases.GET("", handlers.ListPurchases)
			purchases.GET("/:id", handlers.GetPurchase)
			purchases.DELETE("/:id", handlers.DeletePurchase)
			purchases.POST("/:id/submit", handlers.SubmitPurchase)
			purchases.POST("/:id/approve", handlers.ApprovePurchase)
			purchases.POST("/:id/reject", handlers.RejectPurchase)
			purchases.POST("/:id/pay", handlers.MarkPurchasePaid)
		}

		session := api.Group("/session")
		{
			session.GET("/entries", handlers.SessionEntries)
			session.GET("/purchases", handlers.SessionPurchases)
			session.DELETE("", handlers.DropSession)
		}

		api.GET("/settings", handlers.GetSettings)
		api.PUT("/settings", handlers.UpdateSettings)

		api.GET("/feed", feed.Serve)
	}
}

// identityMiddleware resolves the acting user from the X-User-ID header and
// stores it in the request context for handlers.
func (s *Server) identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "X-User-ID header is required",
			})
			return
		}

		user, err := s.users.GetByID(c.Request.Context(), userID)
		if err != nil {
			s.logger.Warn("Unknown user", zap.String("user_id", userID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "unknown user",
			})
			return
		}

		c.Set(actorKey, user)
		c.Next()
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
