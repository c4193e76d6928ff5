package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"xui-fleet/internal/commands"
	apperrors "xui-fleet/internal/errors"
	"xui-fleet/internal/helpers"
	"xui-fleet/internal/permissions"
)

// AdminHandler handles admin commands on top of the user flow
type AdminHandler struct {
	UserHandler
	commandHandlers map[string]func(context.Context, telebot.Context) error
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(deps Deps) *AdminHandler {
	handler := &AdminHandler{
		UserHandler: UserHandler{
			BaseHandler: NewBaseHandler(deps),
			accessType:  permissions.Admin,
		},
	}

	handler.initializeCommands()
	return handler
}

func (h *AdminHandler) initializeCommands() {
	h.commandHandlers = map[string]func(context.Context, telebot.Context) error{
		commands.Servers:       h.handleServers,
		commands.ServerLoad:    h.handleServers,
		commands.Online:        h.handleOnline,
		commands.OnlineClients: h.handleOnline,
	}
}

// CanHandle checks if the handler can handle the given access type
func (h *AdminHandler) CanHandle(accessType permissions.AccessType) bool {
	return accessType == permissions.Admin
}

// Handle handles a message from Telegram
func (h *AdminHandler) Handle(ctx context.Context, c telebot.Context) error {
	if handler, ok := h.commandHandlers[strings.TrimSpace(c.Text())]; ok {
		h.stateService.ClearState(c.Sender().ID)
		return handler(ctx, c)
	}
	return h.UserHandler.Handle(ctx, c)
}

// handleServers sends the occupancy of every server
func (h *AdminHandler) handleServers(ctx context.Context, c telebot.Context) error {
	var sb strings.Builder
	sb.WriteString("<b>Servers:</b>\n")

	for _, load := range h.manager.LoadReport(ctx) {
		switch {
		case !load.Alive:
			sb.WriteString(fmt.Sprintf("🔴 %s: unavailable\n", load.ServerID))
		case load.Full:
			sb.WriteString(fmt.Sprintf("🟠 %s: %d/%d (full)\n", load.ServerID, load.Clients, load.Max))
		default:
			sb.WriteString(fmt.Sprintf("🟢 %s: %d/%d\n", load.ServerID, load.Clients, load.Max))
		}
	}

	return h.sendTextMessage(c, sb.String(), h.createMainKeyboard(h.accessType))
}

// handleOnline sends the clients of every server with their online status
func (h *AdminHandler) handleOnline(ctx context.Context, c telebot.Context) error {
	reports := make([]string, 0, len(h.manager.ServerIDs()))

	for _, sid := range h.manager.ServerIDs() {
		clients, err := h.manager.ListClients(ctx, sid)
		if err != nil {
			h.logger.WithField("server", sid).Warnf("Failed to list clients: %v", err)
			reports = append(reports, fmt.Sprintf("<b>%s</b>: unavailable", sid))
			continue
		}

		onlines, err := h.manager.GetOnlineClients(ctx, sid)
		var unsupported *apperrors.UnsupportedFeatureError
		switch {
		case errors.As(err, &unsupported):
			reports = append(reports, helpers.FormatClientsReport(sid, clients, nil)+"\n<i>online status not supported by this panel</i>")
			continue
		case err != nil:
			h.logger.WithField("server", sid).Warnf("Failed to get online clients: %v", err)
		}

		reports = append(reports, helpers.FormatClientsReport(sid, clients, onlines))
	}

	return h.sendTextMessage(c, strings.Join(reports, "\n\n"), h.createMainKeyboard(h.accessType))
}
