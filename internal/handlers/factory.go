package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"

	"xui-fleet/internal/permissions"
)

// MessageHandler defines the interface for handling Telegram messages
type MessageHandler interface {
	Handle(ctx context.Context, c telebot.Context) error
	CanHandle(accessType permissions.AccessType) bool
}

// HandlerFactory creates message handlers
type HandlerFactory struct {
	deps Deps
}

// NewHandlerFactory creates a new handler factory
func NewHandlerFactory(deps Deps) *HandlerFactory {
	return &HandlerFactory{deps: deps}
}

// CreateHandler creates a message handler for the given access type
func (f *HandlerFactory) CreateHandler(accessType permissions.AccessType) MessageHandler {
	switch accessType {
	case permissions.Admin:
		return NewAdminHandler(f.deps)
	case permissions.User:
		return NewUserHandler(f.deps)
	default:
		f.deps.Logger.Warnf("Unknown access type: %d", accessType)
		return NewUserHandler(f.deps)
	}
}
