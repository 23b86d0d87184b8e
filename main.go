package main

import (
	"fmt"
	"os"

	"github.com/damymess/keroxio-image/config"
	"github.com/damymess/keroxio-image/handler"
	"github.com/damymess/keroxio-image/middleware"
	"github.com/damymess/keroxio-image/service"
	"github.com/damymess/keroxio-image/utils"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// .env is optional; real deployments set environment variables directly.
	_ = godotenv.Load()

	cfg := config.New()

	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting keroxio image server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	if cfg.Auth.JWTSecret == "" {
		utils.Logger.Warn("auth.jwt_secret is empty, all authenticated routes will reject tokens")
	}

	store := service.NewStore(&cfg.Redis)
	storage := service.NewStorage(&cfg.Storage)
	fetcher := service.NewFetcher()
	selector := service.NewSelector(&cfg.Backend, fetcher)
	compositor := service.NewCompositor(fetcher)
	enhancer := service.NewEnhancer()

	process := service.NewProcessService(fetcher, selector, compositor, enhancer,
		storage, store, service.DefaultEnhanceOptions(&cfg.Enhance))
	batch := service.NewBatchRunner(process, store)

	imageHandler := handler.NewImageHandler(cfg, storage)
	processHandler := handler.NewProcessHandler(cfg, process, batch, store, selector)

	// Hourly sweep of aged processed files, local storage only; S3 buckets
	// carry their own lifecycle rules.
	if local, ok := storage.(*service.LocalStorage); ok {
		c := cron.New()
		if _, err := c.AddFunc(cfg.Cleanup.Spec, func() {
			local.CleanupAged(cfg.Cleanup.MaxAge)
		}); err != nil {
			utils.Logger.Warn("cleanup schedule invalid, cleanup disabled",
				zap.String("spec", cfg.Cleanup.Spec), zap.Error(err))
		} else {
			c.Start()
			defer c.Stop()
		}
	}

	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.Server.CORSOriginsList()))
	r.MaxMultipartMemory = cfg.Upload.MaxSize

	if local, ok := storage.(*service.LocalStorage); ok {
		r.Static(cfg.Storage.PublicURL, local.BasePath())
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"version": Version,
		})
	})

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "keroxio-image",
			"version": Version,
			"docs":    "/process/info",
		})
	})

	auth := middleware.JWTAuth(cfg.Auth.JWTSecret)

	images := r.Group("/images", auth)
	{
		images.POST("/upload", imageHandler.Upload)
		images.POST("/upload-multiple", imageHandler.UploadMultiple)
		images.GET("", imageHandler.List)
		images.GET("/:id", imageHandler.Get)
		images.DELETE("/:id", imageHandler.Delete)
	}

	proc := r.Group("/process", auth)
	{
		proc.POST("/enhance", processHandler.Enhance)
		proc.POST("/remove-background", processHandler.RemoveBackground)
		proc.POST("/virtual-showroom", processHandler.Showroom)
		proc.POST("/batch", processHandler.Batch)
		proc.GET("/status/:id", processHandler.Status)
		proc.GET("/info", processHandler.Info)
	}

	utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := r.Run(cfg.Server.Port); err != nil {
		utils.Logger.Fatal("failed to start server", zap.Error(err))
	}
}
