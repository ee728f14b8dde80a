package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"story-engine/internal/config"
	ws "story-engine/internal/delivery/websocket"
	"story-engine/internal/engine"
	"story-engine/internal/handler"
	"story-engine/internal/logger"
	"story-engine/internal/messaging"
	"story-engine/internal/save"
	"story-engine/internal/story"
	"story-engine/pkg/database"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Encoding:   cfg.Log.Encoding,
		OutputPath: cfg.Log.OutputPath,
		Service:    "story-engine",
	})
	if err != nil {
		log.Fatalf("failed to initialise logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Starting story engine",
		zap.String("saveBackend", cfg.Save.Backend),
		zap.String("port", cfg.Server.Port),
	)

	ctx := context.Background()

	bundle, err := loadStories(cfg.Engine.StoriesDir, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to load stories", zap.Error(err))
	}
	zapLogger.Info("Stories loaded",
		zap.Int("stories", len(bundle.Stories)),
		zap.Int("miniGames", len(bundle.MiniGames)),
	)

	backend, err := openBackend(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to open save backend", zap.Error(err))
	}
	store, err := save.NewStore(ctx, backend, save.Options{MaxSlots: cfg.Save.MaxSlots, Logger: zapLogger})
	if err != nil {
		zapLogger.Fatal("Failed to open save store", zap.Error(err))
	}
	defer store.Close()

	hub := ws.NewHub(zapLogger)
	defer hub.Close()
	publishers := messaging.FanOut{hub}

	if cfg.RabbitMQ.URL != "" {
		conn, err := connectRabbitMQ(cfg.RabbitMQ.URL, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer conn.Close()
		rabbit, err := messaging.NewRabbitMQPublisher(conn, cfg.RabbitMQ.Queue, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to create event publisher", zap.Error(err))
		}
		defer rabbit.Close()
		publishers = append(publishers, rabbit)
	}

	eng, err := engine.New(engine.Options{
		Stories:      bundle.Stories,
		MiniGames:    bundle.MiniGames,
		Store:        store,
		Publisher:    publishers,
		PlayTimeTick: cfg.Engine.PlayTimeTick,
		Logger:       zapLogger,
	})
	if err != nil {
		zapLogger.Fatal("Failed to create engine", zap.Error(err))
	}
	defer eng.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(handler.EchoZapLogger(zapLogger))
	e.Use(handler.RequestMetrics())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	handler.NewGameHandler(eng, http.HandlerFunc(hub.ServeWS), zapLogger).RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	zapLogger.Info("Story engine stopped")
}

func loadStories(dir string, logger *zap.Logger) (story.Bundle, error) {
	if dir == "" {
		return story.Samples()
	}
	return story.LoadDir(dir, logger)
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (save.Backend, error) {
	kind, err := save.ParseKind(cfg.Save.Backend)
	if err != nil {
		return nil, err
	}
	switch kind {
	case save.KindMemory:
		return save.NewMemoryBackend(), nil
	case save.KindFile:
		return save.NewFileBackend(cfg.Save.Dir, logger)
	case save.KindRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return save.NewRedisBackend(client, logger), nil
	case save.KindPostgres:
		db, err := database.New(ctx, cfg.Database.Database())
		if err != nil {
			return nil, err
		}
		backend, err := save.NewPostgresBackend(ctx, db, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unsupported save backend %q", kind)
	}
}

func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	const maxRetries = 5
	retryDelay := 5 * time.Second
	var conn *amqp.Connection
	var err error
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, err
}
