package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-payment-links/internal/application"
	"telegram-payment-links/internal/config"
	"telegram-payment-links/internal/domain"
	"telegram-payment-links/internal/domain/ports/adapter"
	"telegram-payment-links/internal/infra/logging"
	"telegram-payment-links/internal/infra/metrics"
	red "telegram-payment-links/internal/infra/redis"
)

var (
	_ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)
	_ adapter.Notifier           = (*RealTelegramBotAdapter)(nil)
	_ http.Handler               = (*RealTelegramBotAdapter)(nil)
)

// botClient is the slice of *tgbotapi.BotAPI the adapter uses.
type botClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// RealTelegramBotAdapter receives updates (polling or webhook) and delegates to BotFacade.
// It also delivers payment-link DMs as the service's Notifier.
type RealTelegramBotAdapter struct {
	bot         botClient
	cfg         *config.BotConfig
	facade      *application.BotFacade
	rateLimiter *red.RateLimiter
	currency    string
	linkTTL     time.Duration
	log         *zerolog.Logger

	updates chan tgbotapi.Update
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, facade *application.BotFacade, rateLimiter *red.RateLimiter, payCfg config.PaymentConfig, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newAdapter(bot, cfg, facade, rateLimiter, payCfg, logger)
}

func newAdapter(bot botClient, cfg *config.BotConfig, facade *application.BotFacade, rateLimiter *red.RateLimiter, payCfg config.PaymentConfig, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	cfg.Workers = workers
	ttl := payCfg.LinkTTL
	if ttl <= 0 {
		ttl = 18 * time.Minute
	}
	l := logger.With().Str("component", "TelegramBot").Logger()
	return &RealTelegramBotAdapter{
		bot:         bot,
		cfg:         cfg,
		facade:      facade,
		rateLimiter: rateLimiter,
		currency:    payCfg.Currency,
		linkTTL:     ttl,
		log:         &l,
		updates:     make(chan tgbotapi.Update, 100),
	}, nil
}

// Start launches the update workers. In polling mode it also pulls updates
// from Telegram; in webhook mode it registers the webhook and updates arrive via ServeHTTP.
func (r *RealTelegramBotAdapter) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go func(id int) {
			defer r.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up := <-r.updates:
					r.dispatch(ctx, id, up)
				}
			}
		}(i)
	}

	if r.cfg.Mode == "webhook" {
		wh, err := tgbotapi.NewWebhook(r.cfg.WebhookURL)
		if err != nil {
			return fmt.Errorf("webhook url: %w", err)
		}
		if _, err := r.bot.Request(wh); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		r.log.Info().Str("url", r.cfg.WebhookURL).Msg("telegram webhook registered")
		return nil
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	incoming := r.bot.GetUpdatesChan(u)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case up, ok := <-incoming:
				if !ok {
					return
				}
				select {
				case r.updates <- up:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	r.log.Info().Int("workers", r.cfg.Workers).Msg("telegram polling started")
	return nil
}

// Stop ends polling and waits for in-flight updates.
func (r *RealTelegramBotAdapter) Stop() {
	if r.cfg.Mode != "webhook" {
		r.bot.StopReceivingUpdates()
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// ServeHTTP is the webhook intake. The update is queued and acknowledged immediately.
func (r *RealTelegramBotAdapter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var up tgbotapi.Update
	if err := json.NewDecoder(req.Body).Decode(&up); err != nil {
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}
	select {
	case r.updates <- up:
		w.WriteHeader(http.StatusOK)
	case <-req.Context().Done():
		w.WriteHeader(http.StatusServiceUnavailable)
	}
}

func (r *RealTelegramBotAdapter) dispatch(ctx context.Context, worker int, up tgbotapi.Update) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Int("worker", worker).Interface("panic", p).Msg("update handler panicked")
		}
	}()
	if err := r.handleUpdate(ctx, up); err != nil {
		r.log.Warn().Err(err).Int("worker", worker).Int("update_id", up.UpdateID).Msg("update handling failed")
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	ctx = logging.WithUserID(ctx, strconv.FormatInt(msg.From.ID, 10))

	if msg.IsCommand() {
		if fn, ok := r.commandRoutes()[msg.Command()]; ok {
			metrics.IncTelegramCommand("/" + msg.Command())
			return fn(ctx, msg)
		}
		return r.SendMessage(ctx, msg.Chat.ID, "Unknown command. Try /plans or /status.")
	}

	switch strings.ToLower(strings.TrimSpace(msg.Text)) {
	case "hello":
		metrics.IncTelegramCommand("hello")
		return r.sendPlansMenu(ctx, msg.Chat.ID)
	case "plans":
		metrics.IncTelegramCommand("plans")
		return r.sendPlansMenu(ctx, msg.Chat.ID)
	}
	return nil
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}
	ctx = logging.WithUserID(ctx, strconv.FormatInt(query.From.ID, 10))

	var chatID int64
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	} else {
		chatID = query.From.ID
	}

	data := strings.TrimSpace(query.Data)
	if fn, ok := r.cbRoutes()[data]; ok {
		r.answer(query.ID, "")
		return fn(ctx, query.From.ID, chatID, data)
	}
	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(data, pr.Prefix) {
			return pr.Fn(ctx, query, chatID, data)
		}
	}
	r.answer(query.ID, "")
	return fmt.Errorf("unknown callback data %q", data)
}

// answer stops the client-side spinner, optionally with a toast.
func (r *RealTelegramBotAdapter) answer(queryID, text string) {
	if queryID == "" {
		return
	}
	if _, err := r.bot.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		r.log.Debug().Err(err).Msg("answer callback failed")
	}
}

// allowBuy applies the per-user link creation limit. Limiter errors fail open.
func (r *RealTelegramBotAdapter) allowBuy(ctx context.Context, userID int64) bool {
	if r.rateLimiter == nil {
		return true
	}
	ok, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(userID, "buy"), r.cfg.BuyLimit, r.cfg.BuyWindow)
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered()
	}
	return ok
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, telegramID int64, text string) error {
	msg := tgbotapi.NewMessage(telegramID, text)
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, telegramID int64, text string, rows [][]adapter.InlineButton) error {
	msg := tgbotapi.NewMessage(telegramID, text)
	if kb := keyboard(rows); kb != nil {
		msg.ReplyMarkup = *kb
	}
	_, err := r.bot.Send(msg)
	return err
}

// SendPaymentLink delivers a freshly issued link with a pay button.
func (r *RealTelegramBotAdapter) SendPaymentLink(ctx context.Context, recipientRef, paymentURL, productName string) error {
	chatID, err := chatIDFromRef(recipientRef)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("✅ %s\nHere is your Razorpay payment link:\n%s\nThe link will expire in %s.",
		productName, paymentURL, humanTTL(r.linkTTL))
	rows := [][]adapter.InlineButton{{{Text: "Pay now", URL: paymentURL}}}
	return r.SendButtons(ctx, chatID, text, rows)
}

// SendPaymentConfirmed tells the user their payment settled.
func (r *RealTelegramBotAdapter) SendPaymentConfirmed(ctx context.Context, recipientRef, productName string) error {
	chatID, err := chatIDFromRef(recipientRef)
	if err != nil {
		return err
	}
	return r.SendMessage(ctx, chatID, fmt.Sprintf("✅ Payment received for %s. Thank you!", productName))
}

// chatIDFromRef maps a link's user id to a private chat id. Links created
// through the HTTP API may carry ids that are not Telegram users.
func chatIDFromRef(ref string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("recipient %q is not a telegram user: %w", ref, domain.ErrInvalidArgument)
	}
	return id, nil
}

func humanTTL(d time.Duration) string {
	if d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return strconv.Itoa(m) + " minutes"
	}
	return d.String()
}

func keyboard(rows [][]adapter.InlineButton) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, r)
	}
	if len(kbRows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	return &markup
}
