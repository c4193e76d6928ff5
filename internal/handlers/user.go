package handlers

import (
	"context"
	"fmt"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"xui-fleet/internal/commands"
	"xui-fleet/internal/constants"
	"xui-fleet/internal/helpers"
	"xui-fleet/internal/models"
	"xui-fleet/internal/permissions"
	"xui-fleet/internal/validation"
)

// UserHandler handles the self-service flow: get a key, check traffic, delete the profile
type UserHandler struct {
	BaseHandler
	accessType permissions.AccessType
}

// NewUserHandler creates a new user handler
func NewUserHandler(deps Deps) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(deps),
		accessType:  permissions.User,
	}
}

// CanHandle checks if the handler can handle the given access type
func (h *UserHandler) CanHandle(accessType permissions.AccessType) bool {
	return accessType == permissions.User
}

// Handle handles a message from Telegram
func (h *UserHandler) Handle(ctx context.Context, c telebot.Context) error {
	userID := c.Sender().ID
	text := strings.TrimSpace(c.Text())

	switch text {
	case commands.Start, commands.Link, commands.MyKey:
		h.stateService.ClearState(userID)
		return h.handleStart(ctx, c, userID)
	case commands.Traffic, commands.MyTraffic:
		h.stateService.ClearState(userID)
		return h.handleTraffic(ctx, c, userID)
	case commands.Delete, commands.DeleteProfile:
		return h.handleDeleteRequest(ctx, c, userID)
	case commands.Cancel:
		h.stateService.ClearState(userID)
		return h.sendTextMessage(c, "Cancelled.", h.createMainKeyboard(h.accessType))
	}

	switch h.stateService.GetState(userID) {
	case models.AwaitingName:
		return h.processName(ctx, c, userID, text)
	case models.AwaitConfirmDeletion:
		return h.processConfirmDeletion(ctx, c, userID, text)
	default:
		return h.sendTextMessage(c, "Use the keyboard below or /start to get your key.", h.createMainKeyboard(h.accessType))
	}
}

// handleStart sends the existing key or asks for a name to create one
func (h *UserHandler) handleStart(ctx context.Context, c telebot.Context, userID int64) error {
	profile, err := h.profiles.Find(ctx, userID)
	if err != nil {
		return h.sendError(c, err, h.accessType)
	}
	if profile != nil {
		return h.sendLink(c, profile, h.createMainKeyboard(h.accessType))
	}

	if !h.profiles.HasFreeServer(ctx) {
		return h.sendTextMessage(c, "⛔ All servers are full.", h.createMainKeyboard(h.accessType))
	}

	h.stateService.SetState(userID, models.AwaitingName)
	return h.sendTextMessage(c,
		fmt.Sprintf("🔑 Send a name in English (%d-%d letters).", constants.MinNameLength, constants.MaxNameLength),
		nil)
}

// processName creates the key once a valid name arrives
func (h *UserHandler) processName(ctx context.Context, c telebot.Context, userID int64, text string) error {
	name, lowered, err := validation.NormalizeName(text)
	if err != nil {
		return h.sendTextMessage(c,
			fmt.Sprintf("❗️ The name must be %d-%d English letters (a-z).", constants.MinNameLength, constants.MaxNameLength),
			nil)
	}
	if lowered {
		if err := h.sendTextMessage(c, fmt.Sprintf("ℹ️ Name: <code>%s</code>", name), nil); err != nil {
			return err
		}
	}

	h.stateService.ClearState(userID)

	profile, err := h.profiles.EnsureProfile(ctx, userID, name)
	if err != nil {
		return h.sendError(c, err, h.accessType)
	}

	if err := h.sendTextMessage(c, "✅ <b>Your key is ready.</b>", nil); err != nil {
		return err
	}
	return h.sendLink(c, profile, h.createMainKeyboard(h.accessType))
}

// handleTraffic reports the traffic of the user's key
func (h *UserHandler) handleTraffic(ctx context.Context, c telebot.Context, userID int64) error {
	sample, err := h.profiles.Traffic(ctx, userID)
	if err != nil {
		return h.sendError(c, err, h.accessType)
	}
	if sample == nil {
		return h.sendTextMessage(c, "Profile not found. Use /start to get a key.", h.createMainKeyboard(h.accessType))
	}
	return h.sendTextMessage(c, helpers.FormatTrafficSummary(*sample), h.createMainKeyboard(h.accessType))
}

// handleDeleteRequest asks the user to confirm deleting their profile
func (h *UserHandler) handleDeleteRequest(ctx context.Context, c telebot.Context, userID int64) error {
	profile, err := h.profiles.Find(ctx, userID)
	if err != nil {
		return h.sendError(c, err, h.accessType)
	}
	if profile == nil {
		return h.sendTextMessage(c, "Profile not found.", h.createMainKeyboard(h.accessType))
	}

	h.stateService.SetState(userID, models.AwaitConfirmDeletion)
	return h.sendTextMessage(c,
		fmt.Sprintf("Delete the key <code>%s</code>? It stops working immediately.", profile.Client.Email),
		h.createConfirmKeyboard())
}

// processConfirmDeletion deletes the profile once confirmed
func (h *UserHandler) processConfirmDeletion(ctx context.Context, c telebot.Context, userID int64, text string) error {
	if text != commands.Confirm {
		return h.sendTextMessage(c, "Press Confirm or Cancel.", h.createConfirmKeyboard())
	}

	h.stateService.ClearState(userID)

	deleted, err := h.profiles.DeleteProfile(ctx, userID)
	if err != nil {
		return h.sendError(c, err, h.accessType)
	}
	if deleted == 0 {
		return h.sendTextMessage(c, "Profile not found.", h.createMainKeyboard(h.accessType))
	}
	return h.sendTextMessage(c, "🗑 Profile deleted.", h.createMainKeyboard(h.accessType))
}
