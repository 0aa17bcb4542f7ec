package alert

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/price-alert/internal/lib/rabbitmq"
)

// QueueNotifier публикует уведомления в брокер вместо прямой отправки.
// Доставкой занимается сервис sender.
type QueueNotifier struct {
	mu sync.Mutex
	ch rabbitmq.Publisher
}

// NewQueueNotifier создаёт notifier поверх канала брокера.
func NewQueueNotifier(ch rabbitmq.Publisher) *QueueNotifier {
	return &QueueNotifier{ch: ch}
}

// Send публикует AlertMessage с ключом price_alert. Ack означает, что брокер
// принял сообщение.
func (n *QueueNotifier) Send(ctx context.Context, recipient, text string) error {
	const op = "alert.QueueNotifier.Send"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg, _ := AlertFromContext(ctx)
	msg.Recipient = recipient
	msg.Text = text

	n.mu.Lock()
	defer n.mu.Unlock()
	err := rabbitmq.PublishMessage(n.ch, rabbitmq.NotificationsExchange, rabbitmq.PriceAlertRoutingKey, uuid.NewString(), msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
