package telegrambot

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"

	"xui-fleet/internal/commands"
	"xui-fleet/internal/handlers"
	"xui-fleet/internal/permissions"
)

const requestTimeout = 60 * time.Second

// Bot represents a Telegram bot
type Bot struct {
	bot      *telebot.Bot
	handlers map[permissions.AccessType]handlers.MessageHandler
	permCtrl *permissions.PermissionController
	logger   *logrus.Logger
}

// NewBot creates a new Telegram bot
func NewBot(token string, deps handlers.Deps, permCtrl *permissions.PermissionController) (*Bot, error) {
	logger := deps.Logger

	settings := telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			logger.Errorf("Telegram bot error: %v", err)
			if c != nil {
				_ = c.Send("An error occurred. Please try again later.")
			}
		},
	}

	b, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	factory := handlers.NewHandlerFactory(deps)

	bot := &Bot{
		bot:      b,
		handlers: make(map[permissions.AccessType]handlers.MessageHandler),
		permCtrl: permCtrl,
		logger:   logger,
	}

	bot.handlers[permissions.Admin] = factory.CreateHandler(permissions.Admin)
	bot.handlers[permissions.User] = factory.CreateHandler(permissions.User)

	bot.setupMiddleware()

	return bot, nil
}

// Start polls for updates until ctx is done
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting Telegram bot")

	go func() {
		<-ctx.Done()
		b.logger.Info("Stopping Telegram bot")
		b.bot.Stop()
	}()

	b.bot.Start()
	return nil
}

// setupMiddleware sets up the bot middleware
func (b *Bot) setupMiddleware() {
	b.bot.Use(func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if c.Sender() == nil {
				return nil
			}
			b.logger.Debugf("Received message from %d", c.Sender().ID)
			return next(c)
		}
	})

	for _, command := range []string{
		commands.Start, commands.Link, commands.Traffic,
		commands.Delete, commands.Servers, commands.Online,
	} {
		b.bot.Handle(command, b.handleUpdate)
	}
	b.bot.Handle(telebot.OnText, b.handleUpdate)
}

// handleUpdate routes an update to the handler of the sender's access type
func (b *Bot) handleUpdate(c telebot.Context) error {
	accessType := b.permCtrl.GetAccessType(c.Sender().ID)

	handler, ok := b.handlers[accessType]
	if !ok {
		b.logger.Warnf("No handler for access type %d", accessType)
		return c.Send("You don't have permission to use this bot.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return handler.Handle(ctx, c)
}
