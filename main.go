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
	"github.com/yeremiapane/table-points/config"
	"github.com/yeremiapane/table-points/controllers"
	"github.com/yeremiapane/table-points/database"
	"github.com/yeremiapane/table-points/events"
	"github.com/yeremiapane/table-points/live"
	"github.com/yeremiapane/table-points/metrics"
	"github.com/yeremiapane/table-points/middlewares"
	"github.com/yeremiapane/table-points/qr"
	"github.com/yeremiapane/table-points/router"
	"github.com/yeremiapane/table-points/services"
	"github.com/yeremiapane/table-points/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	utils.InitLogger(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		utils.ErrorLogger.Fatalf("Invalid configuration: %v", err)
	}

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize DB
	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")

	deps := controllers.NewDeps(db, cfg.MaxPointsPerTransaction, cfg.ReconcileRepair)
	deps.Tokens = utils.NewTokenService(cfg.JWTSecret, cfg.JWTExpire)
	deps.Blacklist = utils.NewTokenBlacklist()
	deps.QR = qr.NewRenderer(cfg.QROutputDir, cfg.FrontendURL)
	deps.Hub = live.NewHub()
	deps.BcryptCost = cfg.BcryptCost
	deps.RestaurantName = cfg.RestaurantName
	deps.AllowedOrigin = cfg.CORSOrigin

	if cfg.SeedData {
		seeder := &database.Seeder{DB: db, Registry: deps.Registry, Points: deps.Points, BcryptCost: cfg.BcryptCost}
		if _, err := seeder.Run(context.Background()); err != nil {
			utils.ErrorLogger.Fatalf("Seed failed: %v", err)
		}
	}

	// Change listeners
	m := metrics.New()
	m.TrackLiveClients(deps.Hub.ClientCount)
	cache := middlewares.NewResponseCache(config.NewRedisClient(cfg), cfg.CacheTTL)
	deps.Notifier.Subscribe(deps.Hub)
	deps.Notifier.Subscribe(cache)
	deps.Notifier.Subscribe(m)

	var publisher *events.Publisher
	if cfg.RabbitMQURL != "" {
		publisher, err = events.Dial(cfg.RabbitMQURL, cfg.PointsEventsQueue)
		if err != nil {
			utils.ErrorLogger.Warnf("RabbitMQ unavailable, points events disabled: %v", err)
		} else {
			deps.Notifier.Subscribe(publisher)
		}
	}

	deps.Reconciler.OnReport(m.ObserveReconcile)

	// Background jobs
	apiLimiter := middlewares.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	loginLimiter := middlewares.NewStrictRateLimiter()
	monitor := services.NewLeaderboardMonitor(deps.Ranking, deps.Hub)

	scheduler := services.NewScheduler()
	jobs := []struct {
		name, schedule string
		fn         func(ctx context.Context) error
	}{
		{"reconcile", cfg.ReconcileSchedule, func(ctx context.Context) error {
			_, err := deps.Reconciler.Run(ctx)
			return err
		}},
		{"live-push", cfg.LivePushSchedule, monitor.Push},
		{"token-blacklist-cleanup", "@every 10m", func(context.Context) error {
			deps.Blacklist.Cleanup()
			return nil
		}},
		{"rate-limiter-cleanup", "@every 5m", func(context.Context) error {
			apiLimiter.Cleanup(10 * time.Minute)
			loginLimiter.Cleanup(10 * time.Minute)
			return nil
		}},
	}
	for _, job := range jobs {
		if err := scheduler.AddJob(job.name, job.schedule, job.fn); err != nil {
			utils.ErrorLogger.Fatalf("Failed to schedule %s: %v", job.name, err)
		}
	}
	scheduler.Start()

	// Setup router
	r := router.SetupRouter(deps, router.Options{
		Production:   cfg.IsProduction(),
		CORSOrigin:   cfg.CORSOrigin,
		Metrics:      m,
		Cache:        cache,
		RateLimiter:  apiLimiter,
		LoginLimiter: loginLimiter,
	})
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		utils.ErrorLogger.Warnf("SetTrustedProxies: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.InfoLogger.Println("Shutting down...")

	scheduler.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.ErrorLogger.Errorf("Server shutdown: %v", err)
	}
	deps.Hub.Close()
	if publisher != nil {
		_ = publisher.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
