package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"xui-fleet/internal/config"
	"xui-fleet/internal/handlers"
	"xui-fleet/internal/metrics"
	"xui-fleet/internal/permissions"
	"xui-fleet/internal/services"
	"xui-fleet/internal/validation"
	"xui-fleet/pkg/statusapi"
	"xui-fleet/pkg/telegrambot"
)

func main() {
	// Setup logger
	logger := setupLogger(os.Getenv("LOG_LEVEL"))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: ", err)
	}
	logger.SetLevel(parseLevel(cfg.LogLevel))

	for _, sid := range cfg.ServerOrder {
		server := cfg.Servers[sid]
		if err := validation.ValidateInboundCount(sid, len(server.Inbounds), cfg.Panel.MaxInbounds); err != nil {
			logger.WithField("server", sid).Warn(err)
		}
	}

	// Initialize services
	m := metrics.New("xui_fleet")
	manager := services.NewServerManager(cfg, m, logger)
	deps := handlers.Deps{
		Manager:  manager,
		Profiles: services.NewProfileService(manager, logger),
		States:   services.NewUserStateService(logger),
		QR:       services.NewQRService(logger),
		Config:   cfg,
		Logger:   logger,
	}

	// Setup permission controller
	permController := permissions.NewController(cfg.Telegram.AdminIDs, logger)

	// Initialize bot
	bot, err := telegrambot.NewBot(cfg.Telegram.Token, deps, permController)
	if err != nil {
		logger.Fatal("Failed to create bot: ", err)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)

	// The first sweep logs in to every server before the bot starts answering
	if alive := manager.Sessions().RefreshAll(ctx); alive == 0 {
		logger.Warn("No panel server is reachable at startup")
	} else {
		logger.Infof("%d of %d panel servers reachable", alive, len(cfg.ServerOrder))
	}

	g.Go(func() error {
		manager.StartSessionRefresh(ctx)
		return nil
	})

	if cfg.StatusAddr != "" {
		router := statusapi.NewRouter(statusapi.Deps{
			Fleet:    manager,
			Registry: m.Registry(),
			Logger:   logger,
		})
		g.Go(func() error {
			return statusapi.Serve(ctx, cfg.StatusAddr, router, logger)
		})
	}

	g.Go(func() error {
		logger.Info("Starting X-UI fleet Telegram bot")
		return bot.Start(ctx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Bot failed: ", err)
	}
	logger.Info("Stopped")
}

// setupLogger sets up the logger
func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(parseLevel(logLevel))

	// Set formatter
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return logger
}

func parseLevel(logLevel string) logrus.Level {
	if logLevel == "" {
		return logrus.InfoLevel
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		log.Printf("Invalid log level %s, defaulting to info", logLevel)
		return logrus.InfoLevel
	}
	return level
}
