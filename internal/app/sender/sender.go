// Package sender собирает сервис доставки уведомлений из очереди брокера.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/price-alert/internal/config"
	"github.com/magabrotheeeer/price-alert/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/price-alert/internal/lib/sl"
	"github.com/magabrotheeeer/price-alert/internal/lib/telegram"
	senderservice "github.com/magabrotheeeer/price-alert/internal/services/sender"
)

// App читает notification.price_alert и отправляет сообщения в Telegram.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New подключается к брокеру и Telegram.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "sender.New"

	bot, err := telegram.New(telegram.Options{
		Token:    cfg.TelegramToken,
		Endpoint: cfg.TelegramEndpoint,
		Rate:     cfg.TelegramRateLimit,
		Timeout:  cfg.TelegramTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("sender is ready", slog.String("bot", bot.BotName()))
	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.NewService(bot, cfg.SendTimeout, logger),
		logger:        logger,
	}, nil
}

// Run потребляет очередь до отмены ctx и дожидается начатых отправок.
// Если канал доставки закрылся раньше, возвращает rabbitmq.ErrConsumerStopped.
func (a *App) Run(ctx context.Context) error {
	wait, err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.PriceAlertQueue, a.senderService.HandlePriceAlert, a.logger)
	if err != nil {
		a.logger.Error("failed to start price alert consumer", sl.Err(err))
		return err
	}

	runErr := rabbitmq.AwaitConsumer(ctx, wait)
	if runErr != nil {
		a.logger.Error("price alert consumer stopped", sl.Err(runErr))
	} else {
		a.logger.Info("sender service shutting down gracefully")
	}

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return runErr
}
