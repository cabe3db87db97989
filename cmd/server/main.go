package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paripool/internal/config"
	cronrunner "paripool/internal/cron"
	"paripool/internal/db"
	"paripool/internal/engine"
	"paripool/internal/handler"
	"paripool/internal/logger"
	gormrepository "paripool/internal/repository/gorm"
	"paripool/internal/service"
	"paripool/internal/stream"
)

func main() {
	cfgPath := os.Getenv("PP_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PP_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	registry := engine.NewRegistry(engine.RegistryOptions{
		Owner:                  cfg.Market.Owner,
		DefaultCollateralAsset: cfg.Market.DefaultCollateralAsset,
	})
	hub := stream.NewHub(logger, cfg.Stream.SendBuffer)

	marketSvc := &service.MarketService{
		Registry: registry,
		Repo:     store,
		Hub:      hub,
		Logger:   logger,
	}
	if err := marketSvc.Rehydrate(context.Background()); err != nil {
		logger.Fatal("rehydrate failed", zap.Error(err))
	}

	wagerSvc := &service.WagerService{
		Executor: &engine.BatchExecutor{Registry: registry},
		Markets:  marketSvc,
		Repo:     store,
		Hub:      hub,
		Logger:   logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())
	ginEngine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(ginEngine)
	marketHandler := &handler.MarketHandler{Svc: marketSvc, Logger: logger}
	marketHandler.Register(ginEngine)
	wagerHandler := &handler.WagerHandler{Svc: wagerSvc, Logger: logger}
	wagerHandler.Register(ginEngine)
	adminHandler := &handler.AdminHandler{Registry: registry}
	adminHandler.Register(ginEngine)
	ginEngine.GET("/ws", hub.Handle)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: ginEngine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add(cfg.Cron.ExpirySweep, func(ctx context.Context) {
			marketSvc.SweepExpired(ctx)
		})
		if err != nil {
			logger.Warn("cron register expiry sweep failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
