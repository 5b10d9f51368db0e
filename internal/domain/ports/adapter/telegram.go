// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, telegramID int64, text string) error
	SendButtons(ctx context.Context, telegramID int64, text string, rows [][]InlineButton) error
}

// Notifier delivers payment-link messages to a recipient. recipientRef is the
// link's user id. Delivery failures are the notifier's concern.
type Notifier interface {
	SendPaymentLink(ctx context.Context, recipientRef, paymentURL, productName string) error
	SendPaymentConfirmed(ctx context.Context, recipientRef, productName string) error
}
