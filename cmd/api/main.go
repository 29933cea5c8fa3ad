package main

import (
	"fmt"
	"os"

	"coin-tracker/internal/api/handlers"
	"coin-tracker/internal/api/middleware"
	"coin-tracker/internal/config"
	"coin-tracker/internal/logging"
	"coin-tracker/internal/pipeline"
	"coin-tracker/internal/trigger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Getenv("COIN_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	p, err := pipeline.FromConfig(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build pipeline", zap.Error(err))
	}
	if cfg.Sheet.ID == "" {
		logger.Warn("COIN_SHEET_ID is not set; requests must name a sheet and events will fail")
	}

	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.CORS())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.ErrorHandler(logger))

	th := trigger.NewHandler(p, cfg.Sheet.ID, cfg.Run.ToModelParams(), logger)
	updateHandler := handlers.NewUpdateHandler(th, p)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/preview", updateHandler.Preview)

		limited := api.Group("", middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.Burst))
		limited.POST("/update", updateHandler.Update)
		limited.POST("/events", updateHandler.PushEvent)
	}

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("starting API server", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
