// Package notify delivers staff notifications to Telegram chats.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"bakehouse/internal/events"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram broadcasts to the configured staff chats.
type Telegram struct {
	tg      telegramClient
	chats   []int64
	limiter *rate.Limiter
	queue   chan string
	logger  *zerolog.Logger
}

// NewTelegram connects to the Bot API with token.
func NewTelegram(token string, debug bool, chats []int64, logger *zerolog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot api: %w", err)
	}
	api.Debug = debug
	logger.Info().Str("bot", api.Self.UserName).Int("chats", len(chats)).Msg("Telegram notifier ready")
	return newTelegram(api, chats, logger), nil
}

func newTelegram(tg telegramClient, chats []int64, logger *zerolog.Logger) *Telegram {
	return &Telegram{
		tg:    tg,
		chats: chats,

		// Telegram allows about 30 messages per second per bot.
		limiter: rate.NewLimiter(rate.Limit(25), 5),
		queue:   make(chan string, 256),
		logger:  logger,
	}
}

// SendMessage sends text to every staff chat. It keeps going after a failed
// chat and returns the joined errors.
func (t *Telegram) SendMessage(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range t.chats {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := t.tg.Send(msg); err != nil {
			t.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send staff notification")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// SendDocument sends a file to every staff chat.
func (t *Telegram) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	var errs []error
	for _, chatID := range t.chats {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: content})
		doc.Caption = caption
		if _, err := t.tg.Send(doc); err != nil {
			t.logger.Error().Err(err).Int64("chat_id", chatID).Str("file", filename).Msg("Failed to send document")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe forwards staff-relevant events from bus as messages. Delivery
// happens in Run so publishers never wait on the Bot API.
func (t *Telegram) Subscribe(bus *events.EventBus) {
	for _, eventType := range []string{
		events.TypeOrderCreated,
		events.TypeApplicationSubmitted,
		events.TypeApplicationReviewed,
	} {
		bus.Subscribe(eventType, t.handle)
	}
}

func (t *Telegram) handle(ctx context.Context, e events.Event) error {
	text, err := Format(e)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	select {
	case t.queue <- text:
		return nil
	default:
		return fmt.Errorf("notification queue full, dropping %s", e.Type)
	}
}

// Run delivers queued notifications until ctx is done.
func (t *Telegram) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-t.queue:
			sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			_ = t.SendMessage(sendCtx, text)
			cancel()
		}
	}
}
