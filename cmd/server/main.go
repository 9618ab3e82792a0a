package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace_ops_backend/internal/config"
	"marketplace_ops_backend/internal/database"
	"marketplace_ops_backend/internal/jobs"
	"marketplace_ops_backend/internal/locks"
	"marketplace_ops_backend/internal/metrics"
	"marketplace_ops_backend/internal/middleware"
	"marketplace_ops_backend/internal/router"
	"marketplace_ops_backend/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	// Initialize Logger
	utils.InitLogger(cfg.LogLevel, !cfg.IsProduction())

	if err := cfg.Validate(); err != nil {
		utils.LogError(err, "Invalid configuration")
		log.Fatalf("Invalid configuration: %v", err)
	}
	utils.InitJWT(cfg.JWTSecret, cfg.JWTTTL)
	metrics.InitMetrics()

	// Initialize Database
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		utils.LogError(err, "Failed to initialize database")
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	utils.LogInfo("Database initialized", map[string]interface{}{"host": cfg.Database.Host, "name": cfg.Database.Name})

	locker := newLocker(cfg)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(utils.GinLogger())
	engine.Use(middleware.PrometheusMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	engine.Use(cors.New(corsConfig))

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup all application routes
	background := router.Setup(engine, router.Dependencies{
		DB:             db,
		Locker:         locker,
		PickSessionTTL: cfg.PickSessionTTL,
	})

	scheduler, err := jobs.Start(background.Picking, background.Integrity, cfg.IntegrityCheckInterval)
	if err != nil {
		utils.LogError(err, "Failed to start background jobs")
		log.Fatalf("Failed to start background jobs: %v", err)
	}
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.LogInfo("Server starting", map[string]interface{}{"port": cfg.Port, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.LogError(err, "Failed to start server")
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.LogInfo("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.LogError(err, "Error during shutdown")
	}
	utils.LogInfo("Server stopped")
}

// newLocker uses redis when REDIS_ADDRESS is set and falls back to an in-process locker.
func newLocker(cfg config.Config) locks.Locker {
	if cfg.RedisAddress == "" {
		utils.LogWarn("REDIS_ADDRESS not set; wave locks are local to this process")
		return locks.NewLocalLocker(cfg.WaveLockWait)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		PoolSize: 20,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		utils.LogError(err, "Redis unreachable; wave locks are local to this process", map[string]interface{}{"addr": cfg.RedisAddress})
		_ = rdb.Close()
		return locks.NewLocalLocker(cfg.WaveLockWait)
	}
	utils.LogInfo("Connected to redis", map[string]interface{}{"addr": cfg.RedisAddress})
	return locks.NewRedisLocker(rdb, cfg.WaveLockTTL, cfg.WaveLockWait)
}
