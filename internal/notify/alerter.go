package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageLen stays under Telegram's 4096 character limit.
const maxMessageLen = 4000

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts operator alerts to a single chat.
type Telegram struct {
	api    sender
	chatID int64
	prefix string
}

func NewTelegram(token string, chatID int64, prefix string) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, prefix: prefix}, nil
}

func (t *Telegram) Alert(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := msg
	if t.prefix != "" {
		text = "[" + t.prefix + "] " + msg
	}
	if len(text) > maxMessageLen {
		text = strings.ToValidUTF8(text[:maxMessageLen], "") + "…"
	}
	message := tgbotapi.NewMessage(t.chatID, text)
	message.DisableWebPagePreview = true
	if _, err := t.api.Send(message); err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}
	return nil
}

// Log writes alerts to the structured log at error level.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Alert(ctx context.Context, msg string) error {
	l.log.ErrorContext(ctx, "operator alert", "alert", msg)
	return nil
}

type Alerter interface {
	Alert(ctx context.Context, msg string) error
}

// Fanout delivers every alert to all targets and joins their errors.
type Fanout []Alerter

func (f Fanout) Alert(ctx context.Context, msg string) error {
	var errs []error
	for _, a := range f {
		if a == nil {
			continue
		}
		if err := a.Alert(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
