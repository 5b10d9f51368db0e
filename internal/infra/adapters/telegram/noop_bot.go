package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-payment-links/internal/domain/ports/adapter"
)

var (
	_ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)
	_ adapter.Notifier           = (*NoopBotAdapter)(nil)
)

// NoopBotAdapter logs outbound messages instead of calling Telegram. Used in dev mode.
type NoopBotAdapter struct {
	log *zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	l := logger.With().Str("component", "NoopTelegram").Logger()
	return &NoopBotAdapter{log: &l}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("tg_id", tgID).Str("text", text).Msg("send message")
	return nil
}

func (b *NoopBotAdapter) SendButtons(ctx context.Context, tgID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("tg_id", tgID).Str("text", text).Interface("buttons", rows).Msg("send buttons")
	return nil
}

func (b *NoopBotAdapter) SendPaymentLink(ctx context.Context, recipientRef, paymentURL, productName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Str("recipient", recipientRef).Str("product", productName).Str("url", paymentURL).Msg("payment link DM")
	return nil
}

func (b *NoopBotAdapter) SendPaymentConfirmed(ctx context.Context, recipientRef, productName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Str("recipient", recipientRef).Str("product", productName).Msg("payment confirmed DM")
	return nil
}
