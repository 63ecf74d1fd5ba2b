package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/auth"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/config"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/delivery"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/handler"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/hub"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/kafka"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/persist"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/presence"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/repository"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/router"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/service"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/database"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/jwt"
	pkglog "github.com/MahiaRaniNatarajan/smartlearn/pkg/log"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/middleware"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "chat-server",
	})
	logger := pkglog.L()

	// Connect to database using GORM
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db, &domain.UserModel{}, &domain.TeamMemberModel{}, &domain.MessageModel{}); err != nil {
			logger.Fatal().Err(err).Msg("failed to auto-migrate")
		}
		logger.Info().Msg("database migration completed")
	}

	messageRepo := repository.NewGormMessageRepository(db)
	membershipRepo := repository.NewGormMembershipRepository(db)

	// Presence directory
	var directory presence.Directory
	if cfg.Redis.Enabled {
		directory, err = presence.NewRedisDirectory(cfg.Redis, cfg.Server.AdvertiseAddress)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis presence directory connected")
	} else {
		directory = presence.NewLocalDirectory(cfg.Server.AdvertiseAddress)
	}

	// Committed-message events
	var producer kafka.MessageProducer = kafka.NopProducer{}
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize kafka producer")
		}
		logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka producer connected")
	}

	// Attachment storage
	files, err := storage.New(context.Background(), cfg.Storage.Config)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}

	jwtManager, err := jwt.NewManager(cfg.JWT.Secret, 0, cfg.JWT.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize jwt manager")
	}

	// Initialize Hub
	wsHub := hub.NewHub()

	// Initialize Chat Service
	chatSvc := service.NewChatService(service.Deps{
		Hub:      wsHub,
		Verifier: auth.NewJWTVerifier(jwtManager),
		Router: router.New(membershipRepo, router.Config{
			EchoToSender:     cfg.Chat.EchoToSender,
			MaxContentLength: cfg.Chat.MaxContentLength,
		}),
		Gateway:   persist.NewGateway(messageRepo, cfg.Chat.CommitTimeout),
		Fanout:    delivery.NewFanout(wsHub),
		Store:     messageRepo,
		Members:   membershipRepo,
		Directory: directory,
		Producer:  producer,
	}, service.Config{
		AuthResultFrames: cfg.Chat.AuthResultFrames,
		HistoryLimit:     cfg.Chat.HistoryLimit,
		HistoryMaxLimit:  cfg.Chat.HistoryMaxLimit,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := chatSvc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start chat service")
	}
	defer chatSvc.Stop()

	// HTTP API
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	httpHandler := handler.NewHTTPHandler(chatSvc, files, middleware.NewAuthMiddleware(jwtManager), handler.UploadConfig{
		MaxBytes:  cfg.Storage.MaxUploadBytes,
		URLExpiry: cfg.Storage.URLExpiry,
	})
	httpHandler.RegisterRoutes(r)

	// WebSocket endpoints share the listener with the API
	wsRouter := mux.NewRouter()
	handler.NewWSHandler(chatSvc, cfg.WebSocket).RegisterRoutes(wsRouter)
	wsLogged := pkglog.HTTPMiddleware(logger)(wsRouter)

	rootRouter := mux.NewRouter()
	rootRouter.Handle("/ws", wsLogged)
	rootRouter.Handle("/chat/ws", wsLogged)
	rootRouter.Handle("/", wsLogged).MatcherFunc(handler.UpgradeRequest)
	rootRouter.PathPrefix("/").Handler(r)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      rootRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("driver", cfg.Database.Driver).
			Bool("redis", cfg.Redis.Enabled).
			Bool("kafka", cfg.Kafka.Enabled).
			Str("storage", cfg.Storage.Driver).
			Msg("chat-server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down chat-server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("chat-server stopped")
}

