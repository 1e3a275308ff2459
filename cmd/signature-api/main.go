package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "docseal/signature-backend/api/v1"
	"docseal/signature-backend/internal/auth"
	"docseal/signature-backend/internal/config"
	"docseal/signature-backend/internal/logging"
)

const (
	serviceName    = "docseal-signature-api"
	serviceVersion = "1.0.0"
)

func main() {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg, err := config.LoadConfig(configPath, ".env")
	if err != nil {
		// logging is configured from cfg, so fall back to a bare logger here
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		zap.NewExample().Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := v1.SetupDocumentsAPI(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to set up signing API", zap.Error(err))
	}

	created, err := api.Keys.EnsureKeyPair()
	if err != nil {
		logger.Fatal("Failed to load signing keys", zap.Error(err))
	}
	if created {
		logger.Info("Generated new signing key pair", zap.String("private_key", cfg.Keys.PrivateKeyPath))
	}

	if api.Janitor != nil {
		if err := api.Janitor.Start(ctx, cfg.Cleanup.Schedule); err != nil {
			logger.Fatal("Failed to start cleanup janitor", zap.Error(err))
		}
		defer api.Janitor.Stop()
	}

	authn := auth.NewAuthenticator(cfg.Security.JWTSecret, logger.Named("auth"))
	if !authn.Enabled() {
		logger.Warn("JWT_SECRET not set, key generation endpoint disabled")
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	router.MaxMultipartMemory = cfg.Limits.MaxUploadBytes

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Transaction-ID, X-Document-Hash")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	apiGroup := router.Group("/api/v1", v1.RequestTimeout(cfg.Limits.RequestTimeout))
	{
		v1.RegisterDocumentsRoutes(apiGroup, api, authn)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
			"version": serviceVersion,
		})
	})

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("addr", srv.Addr),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("ledger_persistent", cfg.Database.DSN != ""),
	)

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
