package telegram

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type cbHandler func(ctx context.Context, chatID int64, data string) error

type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

const deletePrefix = "del:"

func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		"cmd:menu":     r.menuCBRoute,
		"cmd:profile":  func(ctx context.Context, id int64, _ string) error { return r.sendProfile(ctx, id) },
		"cmd:sessions": func(ctx context.Context, id int64, _ string) error { return r.sendSessions(ctx, id) },
		"cmd:recs":     func(ctx context.Context, id int64, _ string) error { return r.sendRecommendations(ctx, id) },
	}
}

// Prefix-match callbacks
func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{Prefix: deletePrefix, Fn: r.deletePrefixCBRoute},
	}
}

func (r *RealTelegramBotAdapter) menuCBRoute(ctx context.Context, id int64, _ string) error {
	return r.sendMainMenu(ctx, id, r.translator.T("menu_prompt"))
}

func (r *RealTelegramBotAdapter) deletePrefixCBRoute(ctx context.Context, id int64, data string) error {
	text, err := r.facade.HandleDelete(ctx, id, strings.TrimPrefix(data, deletePrefix))
	if err != nil {
		return r.replyError(ctx, id, err)
	}
	if err := r.SendMessage(ctx, id, text); err != nil {
		return err
	}
	return r.sendSessions(ctx, id)
}

func (r *RealTelegramBotAdapter) sendProfile(ctx context.Context, id int64) error {
	text, err := r.facade.HandleProfile(ctx, id)
	if err != nil {
		return r.replyError(ctx, id, err)
	}
	return r.sendMainMenu(ctx, id, text)
}

// sendSessions lists the log with one delete button per listed session.
func (r *RealTelegramBotAdapter) sendSessions(ctx context.Context, id int64) error {
	text, sessions, err := r.facade.HandleSessions(ctx, id)
	if err != nil {
		return r.replyError(ctx, id, err)
	}
	rows := make([][]InlineButton, 0, len(sessions)+1)
	for i, s := range sessions {
		label := r.translator.T("button_delete") + " " + strconv.Itoa(i+1) + ") " + s.Song
		rows = append(rows, []InlineButton{{Text: label, Data: deletePrefix + s.ID}})
	}
	rows = append(rows, []InlineButton{{Text: r.translator.T("back_to_menu"), Data: "cmd:menu"}})
	return r.SendButtons(ctx, id, text, rows)
}

func (r *RealTelegramBotAdapter) sendRecommendations(ctx context.Context, id int64) error {
	_, _ = r.bot.Request(tgbotapi.NewChatAction(id, tgbotapi.ChatTyping))
	text, err := r.facade.HandleRecommendations(ctx, id)
	if err != nil {
		return r.replyError(ctx, id, err)
	}
	return r.sendMainMenu(ctx, id, text)
}
