package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"music-taste-agent/internal/infra/logging"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":    r.handleStartCommand,
		"help":     r.handleHelpCommand,
		"log":      r.handleLogCommand,
		"profile":  r.handleProfileCommand,
		"sessions": r.handleSessionsCommand,
		"recs":     r.handleRecsCommand,
		"delete":   r.handleDeleteCommand,
	}
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendMainMenu(ctx, message.Chat.ID, r.facade.HandleStart(ctx, message.Chat.ID))
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.SendMessage(ctx, message.Chat.ID, r.facade.HandleHelp(ctx, message.Chat.ID))
}

// handleLogCommand handles "/log song | artist | genre | mood [| rating]".
func (r *RealTelegramBotAdapter) handleLogCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleLog(ctx, message.Chat.ID, message.CommandArguments())
	if err != nil {
		return r.replyError(ctx, message.Chat.ID, err)
	}
	return r.SendMessage(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) handleProfileCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendProfile(ctx, message.Chat.ID)
}

func (r *RealTelegramBotAdapter) handleSessionsCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendSessions(ctx, message.Chat.ID)
}

func (r *RealTelegramBotAdapter) handleRecsCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendRecommendations(ctx, message.Chat.ID)
}

func (r *RealTelegramBotAdapter) handleDeleteCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleDelete(ctx, message.Chat.ID, message.CommandArguments())
	if err != nil {
		return r.replyError(ctx, message.Chat.ID, err)
	}
	return r.SendMessage(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) replyError(ctx context.Context, chatID int64, err error) error {
	logging.With(ctx, r.log).Error().Err(err).Msg("bot command failed")
	return r.SendMessage(ctx, chatID, r.translator.T("error_generic"))
}
