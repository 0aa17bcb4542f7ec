// Package sender доставляет уведомления о цене, прочитанные из очереди.
package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/price-alert/internal/lib/sl"
	"github.com/magabrotheeeer/price-alert/internal/lib/telegram"
	"github.com/magabrotheeeer/price-alert/internal/models"
)

// Messenger отправляет текст получателю.
type Messenger interface {
	Send(ctx context.Context, recipient, text string) error
}

// Service обрабатывает сообщения очереди notification.price_alert.
type Service struct {
	messenger   Messenger
	sendTimeout time.Duration
	log         *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(messenger Messenger, sendTimeout time.Duration, log *slog.Logger) *Service {
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Service{
		messenger:   messenger,
		sendTimeout: sendTimeout,
		log:         log,
	}
}

// HandlePriceAlert декодирует AlertMessage и отправляет его получателю.
//
// Сообщения, которые нельзя доставить никогда (битый JSON, пустой получатель,
// некорректный chat id), подтверждаются и отбрасываются. Остальные ошибки
// возвращаются, и сообщение возвращается в очередь.
func (s *Service) HandlePriceAlert(ctx context.Context, body []byte) error {
	const op = "sender.HandlePriceAlert"
	log := s.log.With(sl.Op(op))

	var msg models.AlertMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Error("dropping undecodable message", sl.Err(err))
		return nil
	}
	log = log.With(
		slog.String("cycle_id", msg.CycleID),
		slog.Int64("subscription_id", msg.SubscriptionID),
		slog.String("symbol", msg.Symbol),
	)
	if msg.Recipient == "" || msg.Text == "" {
		log.Error("dropping message without recipient or text")
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if err := s.messenger.Send(sendCtx, msg.Recipient, msg.Text); err != nil {
		if errors.Is(err, telegram.ErrInvalidRecipient) {
			log.Error("dropping message with invalid recipient", sl.Err(err))
			return nil
		}
		log.Warn("failed to deliver alert", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("alert delivered")
	return nil
}
