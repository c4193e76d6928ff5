package handlers

import (
	"bytes"
	"errors"
	"html"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"

	"xui-fleet/internal/commands"
	"xui-fleet/internal/config"
	apperrors "xui-fleet/internal/errors"
	"xui-fleet/internal/helpers"
	"xui-fleet/internal/permissions"
	"xui-fleet/internal/services"
)

// Deps are the services every handler works with
type Deps struct {
	Manager  *services.ServerManager
	Profiles *services.ProfileService
	States   *services.UserStateService
	QR       *services.QRService
	Config   *config.Config
	Logger   *logrus.Logger
}

// BaseHandler provides common functionality for all handlers
type BaseHandler struct {
	manager      *services.ServerManager
	profiles     *services.ProfileService
	stateService *services.UserStateService
	qrService    *services.QRService
	config       *config.Config
	logger       *logrus.Logger
}

// NewBaseHandler creates a new base handler
func NewBaseHandler(deps Deps) BaseHandler {
	return BaseHandler{
		manager:      deps.Manager,
		profiles:     deps.Profiles,
		stateService: deps.States,
		qrService:    deps.QR,
		config:       deps.Config,
		logger:       deps.Logger,
	}
}

// sendTextMessage sends a text message with optional markup
func (h *BaseHandler) sendTextMessage(c telebot.Context, text string, markup *telebot.ReplyMarkup) error {
	opts := &telebot.SendOptions{
		ParseMode:             telebot.ModeHTML,
		DisableWebPagePreview: true,
	}

	if markup != nil {
		opts.ReplyMarkup = markup
	}

	err := c.Send(text, opts)
	if err != nil {
		h.logger.Errorf("Failed to send message: %v", err)
	}
	return err
}

// sendLink sends the connection link of a profile followed by its QR code
func (h *BaseHandler) sendLink(c telebot.Context, profile *services.Profile, markup *telebot.ReplyMarkup) error {
	link := helpers.BuildVLESSLink(profile.Server, profile.Client.Email, h.config.LinkRemark)

	if err := h.sendTextMessage(c, "<code>"+html.EscapeString(link)+"</code>", markup); err != nil {
		return err
	}
	return h.sendQRCode(c, link)
}

// sendQRCode sends a QR code for the given link
func (h *BaseHandler) sendQRCode(c telebot.Context, link string) error {
	qrBytes, err := h.qrService.LinkPNG(link)
	if err != nil {
		return err
	}

	photo := &telebot.Photo{File: telebot.FromReader(bytes.NewReader(qrBytes))}
	err = c.Send(photo)
	if err != nil {
		h.logger.Errorf("Failed to send QR code: %v", err)
	}
	return err
}

// sendError reports a failed operation in terms a user can act on
func (h *BaseHandler) sendError(c telebot.Context, err error, accessType permissions.AccessType) error {
	var full *apperrors.CapacityExceededError
	var none *apperrors.NoServersAvailableError

	text := "⚠️ The VPN panel is unavailable, please try again later."
	switch {
	case errors.As(err, &full):
		text = "⛔ All servers are full."
	case errors.As(err, &none):
		text = "⚠️ No server is reachable right now, please try again later."
	default:
		h.logger.Errorf("Request failed: %v", err)
	}

	return h.sendTextMessage(c, text, h.createMainKeyboard(accessType))
}

// createMainKeyboard creates the main keyboard for the given access type
func (h *BaseHandler) createMainKeyboard(accessType permissions.AccessType) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard: true,
	}

	rows := []telebot.Row{
		{
			telebot.Btn{Text: commands.MyKey},
			telebot.Btn{Text: commands.MyTraffic},
		},
		{
			telebot.Btn{Text: commands.DeleteProfile},
		},
	}

	if accessType == permissions.Admin {
		rows = append(rows, telebot.Row{
			telebot.Btn{Text: commands.ServerLoad},
			telebot.Btn{Text: commands.OnlineClients},
		})
	}

	markup.Reply(rows...)
	return markup
}

// createConfirmKeyboard creates a keyboard with confirm/cancel buttons
func (h *BaseHandler) createConfirmKeyboard() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard: true,
	}

	markup.Reply(
		telebot.Row{
			telebot.Btn{Text: commands.Confirm},
			telebot.Btn{Text: commands.Cancel},
		},
	)

	return markup
}
