package main

import (
	"flag"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/irfan-ai/irfan-backend/internal/api"
	"github.com/irfan-ai/irfan-backend/internal/config"
	"github.com/irfan-ai/irfan-backend/internal/database"
	"github.com/irfan-ai/irfan-backend/internal/repository/localcache"
	"github.com/irfan-ai/irfan-backend/internal/repository/postgres"
	"github.com/irfan-ai/irfan-backend/internal/services"
	"github.com/irfan-ai/irfan-backend/internal/store"
	"github.com/irfan-ai/irfan-backend/internal/transport"
)

func main() {
	migrateDown := flag.Bool("migrate-down", false, "roll back the most recent database migration and exit")
	flag.Parse()

	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	if *migrateDown {
		if err := database.RollbackMigration(cfg.Database); err != nil {
			log.WithError(err).Fatal("failed to roll back migration")
		}
		log.Info("rolled back the most recent migration")
		return
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	cache, err := localcache.Open(cfg.Cache.Path, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open local cache")
	}
	defer cache.Close()

	sessionRepo := postgres.NewSessionRepository(db.DB)
	messageRepo := postgres.NewMessageRepository(db.DB)
	conversations := store.New(sessionRepo, messageRepo, cache, log)

	client := transport.NewClient(cfg.Chat, log)
	chatService := services.NewChatService(client, conversations, log)

	app := fiber.New(fiber.Config{
		AppName:      "Irfan Backend",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	api.SetupRoutes(app, chatService, conversations, cfg.Auth.JWTSecret, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.WithField("addr", addr).Info("irfan backend starting")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
