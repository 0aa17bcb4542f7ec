package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/price-alert/internal/lib/sl"
)

const prefetchCount = 10

// ErrConsumerStopped означает, что канал доставки закрылся до отмены контекста.
var ErrConsumerStopped = errors.New("consumer stopped unexpectedly")

// Handler обрабатывает тело сообщения. Ошибка приводит к nack с возвратом в очередь.
type Handler func(ctx context.Context, body []byte) error

// ConsumerMessage запускает чтение очереди. Одновременно обрабатывается не больше
// prefetchCount сообщений. Возвращённая функция ждёт завершения обработчиков
// после отмены ctx или закрытия канала доставки.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, handler Handler, log *slog.Logger) (wait func(), err error) {
	const op = "rabbitmq.ConsumerMessage"
	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.String("op", op), slog.String("queue", queueName))
	var wg sync.WaitGroup
	done := make(chan struct{})

	go func() {
		defer close(done)
		sem := make(chan struct{}, prefetchCount)
		for {
			select {
			case d, ok := <-deliveries:
				if !ok {
					log.Info("delivery channel closed")
					wg.Wait()
					return
				}
				sem <- struct{}{}
				wg.Add(1)
				go func(d amqp.Delivery) {
					defer func() {
						<-sem
						wg.Done()
					}()
					handle(ctx, d, handler, log)
				}(d)
			case <-ctx.Done():
				wg.Wait()
				return
			}
		}
	}()

	return func() { <-done }, nil
}

func handle(ctx context.Context, d amqp.Delivery, handler Handler, log *slog.Logger) {
	if err := handler(ctx, d.Body); err != nil {
		log.Error("handler failed, message requeued", slog.String("message_id", d.MessageId), sl.Err(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		log.Error("failed to ack message", sl.Err(ackErr))
	}
}

// AwaitConsumer блокируется до отмены ctx или остановки потребителя, смотря что
// наступит раньше. После отмены ctx дожидается обработчиков через wait.
func AwaitConsumer(ctx context.Context, wait func()) error {
	stopped := make(chan struct{})
	go func() {
		wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		if ctx.Err() != nil {
			return nil
		}
		return ErrConsumerStopped
	case <-ctx.Done():
		<-stopped
		return nil
	}
}
