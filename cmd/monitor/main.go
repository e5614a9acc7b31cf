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

	"leadwatch/internal/client/exchange"
	"leadwatch/internal/config"
	cronrunner "leadwatch/internal/cron"
	"leadwatch/internal/db"
	"leadwatch/internal/handler"
	"leadwatch/internal/ingest"
	"leadwatch/internal/logger"
	gormrepository "leadwatch/internal/repository/gorm"
	"leadwatch/internal/service"
)

func main() {
	cfgPath := os.Getenv("LW_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("LW_ENV_ONLY"); envOnlyRaw != "" {
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

	exchangeHTTP := &http.Client{Timeout: cfg.Exchange.Timeout}
	exchangeClient := exchange.NewClient(exchangeHTTP, cfg.Exchange.BaseURL)
	store := gormrepository.New(dbConn.Gorm)

	feedService := &service.FeedService{
		Repo:    store,
		Logger:  logger,
		LeadIDs: cfg.Ingest.LeadIDs,
	}
	scoreService := &service.ScoreService{
		Repo:    store,
		Logger:  logger,
		LeadIDs: cfg.Ingest.LeadIDs,
	}
	retentionService := &service.RetentionService{
		Repo:   store,
		Logger: logger,
		MaxAge: cfg.Retention.RawMaxAge,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	feedHandler := &handler.FeedHandler{Feed: feedService}
	feedHandler.Register(engine)
	traderHandler := &handler.TraderHandler{Feed: feedService, Repo: store}
	traderHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Retention.Enabled {
		_, err := cronRunner.Add(cfg.Retention.Schedule, func(ctx context.Context) {
			if err := retentionService.PruneRawIngests(ctx); err != nil {
				logger.Warn("raw snapshot prune failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register retention failed", zap.Error(err))
		}
	}
	if cfg.Scoring.Enabled {
		_, err := cronRunner.Add(cfg.Scoring.Schedule, func(ctx context.Context) {
			if err := scoreService.Recompute(ctx); err != nil {
				logger.Warn("trader score recompute failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register scoring failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	scheduler := &ingest.Scheduler{
		Client: exchangeClient,
		Repo:   store,
		Logger: logger,
		Config: ingest.Config{
			Enabled:       cfg.Ingest.Enabled,
			Interval:      cfg.Ingest.Interval,
			LeadIDs:       cfg.Ingest.LeadIDs,
			Concurrency:   cfg.Ingest.Concurrency,
			OrderPageSize: cfg.Ingest.OrderPageSize,
			Timeout:       cfg.Ingest.Timeout,
		},
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	errCh := make(chan error, 2)

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
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
