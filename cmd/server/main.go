package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bmtt-school/times-tables-service/internal/auth"
	"github.com/bmtt-school/times-tables-service/internal/cache"
	"github.com/bmtt-school/times-tables-service/internal/config"
	"github.com/bmtt-school/times-tables-service/internal/handlers"
	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/bmtt-school/times-tables-service/internal/repositories/postgres"
	"github.com/bmtt-school/times-tables-service/internal/services"
	"github.com/bmtt-school/times-tables-service/internal/utils"
	"github.com/bmtt-school/times-tables-service/internal/validator"
	"github.com/bmtt-school/times-tables-service/pkg"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Exit(1)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
		gin.SetMode(gin.ReleaseMode)
	} else {
		logger = utils.NewDevelopmentLogger()
	}
	slogger := utils.ToSlogLogger(logger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(
		&models.Teacher{},
		&models.TeacherClass{},
		&models.TeacherInvite{},
		&models.Class{},
		&models.Student{},
		&models.Attempt{},
		&models.QuestionRecord{},
	); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	var cacheSvc cache.CacheService = cache.NoopCache{}
	if redisClient, err := pkg.NewRedisClient(cfg); err != nil {
		logger.Warn("Redis unavailable, aggregation caching disabled", "error", err)
	} else {
		cacheSvc = cache.NewRedisCache(redisClient, logger)
		defer redisClient.Close()
	}

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	repo := postgres.NewManager(db)
	codec := auth.NewSessionCodec(cfg.SessionSecret, cfg.Environment == "production")
	v := validator.New()

	serviceManager := services.NewServiceManager(repo, cacheSvc, publisher, codec, v, slogger)
	handlerManager := handlers.NewHandlerManager(serviceManager, codec, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}
}
