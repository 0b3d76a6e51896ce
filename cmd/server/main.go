package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/omtlabs/marketing-bridge/internal/bridge"
	"github.com/omtlabs/marketing-bridge/internal/config"
	"github.com/omtlabs/marketing-bridge/internal/logger"
	"github.com/omtlabs/marketing-bridge/internal/marketing"
	"github.com/omtlabs/marketing-bridge/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))

	appLogger.Info("Setting Gin mode", slog.String("mode", cfg.GinMode))
	gin.SetMode(cfg.GinMode)

	invoker, err := marketing.NewInvoker(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize backend invoker", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handler := bridge.NewHandler(cfg, invoker, appLogger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.RequestLoggingMiddleware(appLogger))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", handler.Health)
	router.GET("/metrics", metrics.Handler())

	router.POST("/agent/run", handler.RunAgent)

	mkt := router.Group("/marketing")
	{
		mkt.GET("/filters", handler.Filters)
		mkt.GET("/summary", handler.Summary)
	}

	port := ":" + cfg.Port

	appLogger.Info("marketing bridge listening",
		slog.String("port", port),
		slog.String("mode", string(cfg.BridgeMode)))

	if cfg.BridgeMode == config.BridgeModeHTTP {
		appLogger.Info("remote marketing service configured",
			slog.String("url", cfg.MarketingAPIURL),
			slog.Duration("request_timeout", cfg.RequestTimeout))
	}

	srv := &http.Server{
		Addr:    port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Failed to start server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if closer, ok := invoker.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			appLogger.Warn("Failed to close backend invoker", slog.String("error", err.Error()))
		}
	}

	appLogger.Info("Server exited")
}
