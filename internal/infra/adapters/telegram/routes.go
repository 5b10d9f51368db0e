package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-payment-links/internal/application"
	"telegram-payment-links/internal/domain/ports/adapter"
	"telegram-payment-links/internal/infra/logging"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes maps slash commands to handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":  r.handlePlansCommand,
		"plans":  r.handlePlansCommand,
		"status": r.handleStatusCommand,
		"help":   r.handleHelpCommand,
	}
}

func (r *RealTelegramBotAdapter) handlePlansCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendPlansMenu(ctx, message.Chat.ID)
}

func (r *RealTelegramBotAdapter) handleStatusCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendStatus(ctx, message.From.ID, message.Chat.ID)
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.SendMessage(ctx, message.Chat.ID, "Commands:\n/plans - choose a plan to buy\n/status - your latest payment")
}

type cbHandler func(ctx context.Context, userID, chatID int64, data string) error

type prefixCB struct {
	Prefix string
	Fn     func(ctx context.Context, query *tgbotapi.CallbackQuery, chatID int64, data string) error
}

// Exact-match callbacks
func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		"cmd:plans": func(ctx context.Context, _, chatID int64, _ string) error {
			return r.sendPlansMenu(ctx, chatID)
		},
		"cmd:status": func(ctx context.Context, userID, chatID int64, _ string) error {
			return r.sendStatus(ctx, userID, chatID)
		},
	}
}

// Prefix-match callbacks
func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{Prefix: "buy:", Fn: r.buyPrefixCBRoute},
	}
}

// buyPrefixCBRoute issues a link for the tapping user. The link arrives as a
// separate message from the notifier; the callback gets a short toast.
func (r *RealTelegramBotAdapter) buyPrefixCBRoute(ctx context.Context, query *tgbotapi.CallbackQuery, chatID int64, data string) error {
	productID := strings.TrimPrefix(data, "buy:")
	if !r.allowBuy(ctx, query.From.ID) {
		r.answer(query.ID, "Too many requests. Please try again later.")
		return nil
	}

	text, err := r.facade.HandleBuy(ctx, query.From.ID, productID)
	r.answer(query.ID, text)
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Str("product_id", productID).Msg("buy failed")
		if text == "" {
			text = "❌ Could not create a payment link. Please try again later."
		}
		return r.SendMessage(ctx, chatID, text)
	}
	return nil
}

// sendPlansMenu lists the catalog as buttons; pressing one starts the buy flow.
func (r *RealTelegramBotAdapter) sendPlansMenu(ctx context.Context, chatID int64) error {
	plans, err := r.facade.Plans(ctx)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("load catalog")
		return r.SendMessage(ctx, chatID, "❌ Could not load plans. Please try again later.")
	}
	if len(plans) == 0 {
		return r.SendMessage(ctx, chatID, "No plans available.")
	}
	rows := make([][]adapter.InlineButton, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, []adapter.InlineButton{{Text: application.PlanLabel(p, r.currency), Data: "buy:" + p.ID}})
	}
	return r.SendButtons(ctx, chatID, "Choose a plan to buy:", rows)
}

func (r *RealTelegramBotAdapter) sendStatus(ctx context.Context, userID, chatID int64) error {
	text, err := r.facade.HandleStatus(ctx, userID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logging.With(ctx, r.log).Error().Err(err).Msg("status lookup")
		}
		text = "❌ Internal error. Please try again later."
	}
	rows := [][]adapter.InlineButton{{{Text: "🔄 Refresh", Data: "cmd:status"}, {Text: "🛒 Plans", Data: "cmd:plans"}}}
	return r.SendButtons(ctx, chatID, text, rows)
}
