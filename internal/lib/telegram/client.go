// Package telegram отправляет текстовые уведомления через Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// ErrInvalidRecipient получатель не является числовым chat id.
var ErrInvalidRecipient = errors.New("invalid telegram recipient")

// Client отправляет сообщения от имени бота с ограничением частоты.
type Client struct {
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

// Options параметры клиента.
type Options struct {
	Token    string
	Endpoint string // формат адреса Bot API с двумя %s: токен и метод
	Rate     float64
	Timeout  time.Duration
}

// New создаёт клиента и проверяет токен запросом getMe.
func New(opts Options) (*Client, error) {
	const op = "telegram.New"
	if opts.Endpoint == "" {
		opts.Endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, opts.Endpoint, &http.Client{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	burst := max(int(opts.Rate), 1)
	return &Client{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(opts.Rate), burst),
	}, nil
}

// BotName имя бота, полученное при подключении.
func (c *Client) BotName() string {
	return c.bot.Self.UserName
}

// Send отправляет text в чат recipient. Ожидание лимита и сам запрос
// прерываются по ctx.
func (c *Client) Send(ctx context.Context, recipient, text string) error {
	const op = "telegram.Send"
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w: %q", op, ErrInvalidRecipient, recipient)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// Bot API клиент не принимает контекст, поэтому запрос ждём в горутине.
	// Сам запрос ограничен таймаутом http-клиента.
	done := make(chan error, 1)
	go func() {
		_, err := c.bot.Send(tgbotapi.NewMessage(chatID, text))
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}
