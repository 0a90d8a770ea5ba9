package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"music-taste-agent/internal/application"
	"music-taste-agent/internal/config"
	"music-taste-agent/internal/infra/i18n"
	"music-taste-agent/internal/infra/logging"
	"music-taste-agent/internal/infra/metrics"
	red "music-taste-agent/internal/infra/redis"
	"music-taste-agent/internal/infra/worker"
)

// botAPI is the part of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// RateLimiter is satisfied by the Redis fixed-window limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type InlineButton struct {
	Text string
	Data string
}

// RealTelegramBotAdapter polls updates and dispatches them through the worker pool.
type RealTelegramBotAdapter struct {
	bot         botAPI
	cfg         config.BotConfig
	facade      *application.BotFacade
	rateLimiter RateLimiter
	translator  *i18n.Translator
	pool        *worker.Pool
	log         *zerolog.Logger
}

// NewRealTelegramBotAdapter connects to the Bot API. rateLimiter may be nil.
func NewRealTelegramBotAdapter(cfg config.BotConfig, facade *application.BotFacade, rateLimiter RateLimiter, translator *i18n.Translator, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("bot token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newAdapter(bot, cfg, facade, rateLimiter, translator, logger)
}

func newAdapter(bot botAPI, cfg config.BotConfig, facade *application.BotFacade, rateLimiter RateLimiter, translator *i18n.Translator, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	if translator == nil {
		return nil, errors.New("translator is nil")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	return &RealTelegramBotAdapter{
		bot:         bot,
		cfg:         cfg,
		facade:      facade,
		rateLimiter: rateLimiter,
		translator:  translator,
		pool:        worker.NewPool(cfg.Workers, logger),
		log:         logger,
	}, nil
}

// StartPolling blocks until ctx is cancelled or the update channel closes.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if err := r.SetMenuCommands(ctx); err != nil {
		r.log.Warn().Err(err).Msg("failed to set bot menu commands")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	r.pool.Start(ctx)
	defer r.pool.Stop()

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if err := r.pool.SubmitWait(ctx, func(ctx context.Context) error { return r.handleUpdate(ctx, up) }); err != nil {
				r.log.Warn().Err(err).Int("update_id", up.UpdateID).Msg("dropping update")
			}
		}
	}
}

func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context) error {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "log", Description: r.translator.T("cmd_log")},
		tgbotapi.BotCommand{Command: "profile", Description: r.translator.T("cmd_profile")},
		tgbotapi.BotCommand{Command: "sessions", Description: r.translator.T("cmd_sessions")},
		tgbotapi.BotCommand{Command: "recs", Description: r.translator.T("cmd_recs")},
		tgbotapi.BotCommand{Command: "delete", Description: r.translator.T("cmd_delete")},
		tgbotapi.BotCommand{Command: "help", Description: r.translator.T("cmd_help")},
	)
	_, err := r.bot.Request(cmds)
	return err
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]InlineButton) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		kr := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			data := btn.Data
			if data == "" {
				data = label
			}
			kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, data))
		}
		kbRows = append(kbRows, kr)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if len(kbRows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	}
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}
	chatID := msg.Chat.ID
	ctx = logging.WithChatID(ctx, chatID)

	command := "message"
	if msg.IsCommand() {
		command = msg.Command()
	}
	metrics.IncTelegramCommand(command)

	if !r.allow(ctx, chatID) {
		return r.SendMessage(ctx, chatID, r.translator.T("rate_limited"))
	}

	if msg.IsCommand() {
		h, ok := r.commandRoutes()[command]
		if !ok {
			return r.SendMessage(ctx, chatID, r.translator.T("unknown_command"))
		}
		return h(ctx, msg)
	}
	return r.handlePlainText(ctx, msg)
}

func (r *RealTelegramBotAdapter) handlePlainText(ctx context.Context, msg *tgbotapi.Message) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}
	chatID := msg.Chat.ID
	_, _ = r.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))

	reply, err := r.facade.HandleChatMessage(ctx, chatID, text)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("chat failed")
		return r.SendMessage(ctx, chatID, r.translator.T("error_generic"))
	}
	return r.SendMessage(ctx, chatID, reply)
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}
	defer func() { _, _ = r.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	var chatID int64
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	} else {
		chatID = query.From.ID
	}
	if chatID == 0 {
		return nil
	}
	ctx = logging.WithChatID(ctx, chatID)

	if !r.allow(ctx, chatID) {
		return r.SendMessage(ctx, chatID, r.translator.T("rate_limited"))
	}

	data := strings.TrimSpace(query.Data)
	if fn, ok := r.cbRoutes()[data]; ok {
		return fn(ctx, chatID, data)
	}
	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(data, pr.Prefix) {
			return pr.Fn(ctx, chatID, data)
		}
	}
	return errors.New("unknown callback data")
}

// allow fails open when the limiter errors.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, chatID int64) bool {
	if r.rateLimiter == nil || r.cfg.RateLimit <= 0 {
		return true
	}
	ok, err := r.rateLimiter.Allow(ctx, red.ChatKey(chatID), r.cfg.RateLimit, r.cfg.RateWindow)
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("rate limit check failed")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered()
	}
	return ok
}

func (r *RealTelegramBotAdapter) sendMainMenu(ctx context.Context, chatID int64, intro string) error {
	rows := [][]InlineButton{
		{{Text: r.translator.T("button_profile"), Data: "cmd:profile"}},
		{{Text: r.translator.T("button_sessions"), Data: "cmd:sessions"}},
		{{Text: r.translator.T("button_recs"), Data: "cmd:recs"}},
	}
	if strings.TrimSpace(intro) == "" {
		intro = r.translator.T("menu_prompt")
	}
	return r.SendButtons(ctx, chatID, intro, rows)
}
