package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/example/ricestore/internal/config"
	"github.com/example/ricestore/internal/database"
	"github.com/example/ricestore/internal/handlers"
	"github.com/example/ricestore/internal/middleware"
	"github.com/example/ricestore/internal/routes"
	"github.com/example/ricestore/internal/services"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg.LogLevel)

	db := database.Connect(cfg.DatabaseURL, cfg.DBLogLevel)

	sessions, closeSessions := newSessionStore(cfg, db)
	defer closeSessions()

	publisher, closePublisher := newPublisher(cfg)
	defer closePublisher()

	images, err := services.NewLocalImageStore(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare upload directory")
	}

	app := fiber.New(fiber.Config{
		AppName:      "Rice Store",
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    8 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger(log.Logger))
	app.Static("/uploads", cfg.UploadDir)

	routes.Register(app, routes.Dependencies{
		DB:        db,
		Config:    cfg,
		Sessions:  sessions,
		Images:    images,
		Publisher: publisher,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	shutdownDone := make(chan struct{})
	go func() {
		<-quit
		log.Info().Msg("received shutdown signal")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
		close(shutdownDone)
	}()

	log.Info().Str("port", cfg.AppPort).Msg("starting server")
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatal().Err(err).Msg("fiber.Listen error")
	}
	<-shutdownDone
	log.Info().Msg("server stopped")
}

func setupLogger(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", "ricestore").Logger()
}

// newSessionStore prefers Redis when REDIS_URL is set.
func newSessionStore(cfg *config.Config, db *gorm.DB) (services.SessionStore, func()) {
	if cfg.RedisURL == "" {
		log.Info().Msg("admin sessions stored in database")
		return services.NewDBSessionStore(db, cfg.AdminSessionTTL), func() {}
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	log.Info().Str("addr", opts.Addr).Msg("admin sessions stored in redis")
	return services.NewRedisSessionStore(client, cfg.AdminSessionTTL), func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
}

// newPublisher fans order events out to every configured sink.
func newPublisher(cfg *config.Config) (services.EventPublisher, func()) {
	var sinks services.MultiPublisher
	closers := []func(){}

	if len(cfg.KafkaBrokers) > 0 {
		kafka := services.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		sinks = append(sinks, kafka)
		closers = append(closers, func() {
			if err := kafka.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close kafka writer")
			}
		})
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing order events to kafka")
	}

	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	if telegram.Enabled() {
		sinks = append(sinks, telegram)
		log.Info().Msg("sending order notifications to telegram")
	}

	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}
	if len(sinks) == 0 {
		return services.NopPublisher{}, closeAll
	}
	return sinks, closeAll
}
