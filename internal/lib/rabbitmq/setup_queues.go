package rabbitmq

// Очередь, из которой sender забирает сработавшие алерты.
const (
	PriceAlertQueue      = "notification.price_alert"
	PriceAlertRoutingKey = "price_alert"
)

// QueueConfig описывает очередь и ключ, с которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди, которые объявляются при старте сервисов.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: PriceAlertQueue, RoutingKey: PriceAlertRoutingKey},
	}
}
