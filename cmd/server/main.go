package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/givance/webserver-sub009/internal/app"
	"github.com/givance/webserver-sub009/internal/queue"
	"github.com/givance/webserver-sub009/internal/server"
	mid "github.com/givance/webserver-sub009/internal/server/middleware"
	"github.com/givance/webserver-sub009/internal/util"
	"github.com/givance/webserver-sub009/pkg/logger"
)

func main() {
	util.LoadEnv()
	app.InitLogger("")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := app.LoadConfig()
	if util.GetEnvBool("MIGRATE_ON_START", true) {
		if err := app.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			logger.Fatal("Failed to migrate database", "err", err)
		}
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize", "err", err)
	}
	defer a.Close()
	app.WarmUp(ctx, a.AI)

	appCtx := &mid.App{
		Analyzer:  a.Orchestrator,
		Generator: a.Generator,
		Journeys:  a.Store,
	}

	// Async routes are only offered when a broker is configured.
	if util.GetEnv("RABBITMQ_HOST") != "" {
		conn, err := queue.Init(ctx)
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", "err", err)
		}
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()

		if err := queue.SetupQueues(ch, queue.Queues); err != nil {
			logger.Fatal("Failed to set up queues", "err", err)
		}
		appCtx.Queue = queue.NewPublisher(ch)
	}

	e := server.New(appCtx)
	if err := server.Run(ctx, e, util.GetEnvString("PORT", "8080")); err != nil {
		logger.Fatal("Server failed", "err", err)
	}
}
