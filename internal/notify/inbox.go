package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

// KafkaInbox публикует уведомления во входящие владельца через Kafka.
// Консьюмер на стороне приложения владельца читает топик и раскладывает
// события по его почтовому ящику.
type KafkaInbox struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

// NewKafkaInbox создает Kafka-продюсер входящих владельца.
func NewKafkaInbox(producer sarama.SyncProducer, topic string, log *logger.Logger) *KafkaInbox {
	return &KafkaInbox{
		producer: producer,
		topic:    topic,
		log:      log,
	}
}

// Deliver публикует событие в топик входящих.
// Ключ — получатель: все уведомления владельца попадают в одну партицию
// и сохраняют порядок.
func (k *KafkaInbox) Deliver(ctx context.Context, event domain.NotificationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	messageValue, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(event.To),
		Value: sarama.ByteEncoder(messageValue),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte("owner_notification"),
			},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := k.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish notification event: %w", err)
	}

	k.log.Debugw("Notification published",
		"topic", k.topic, "eventID", event.ID, "partition", partition, "offset", offset)

	return nil
}

// Close закрывает продюсер
func (k *KafkaInbox) Close() error {
	return k.producer.Close()
}

// InMemoryInbox входящие владельца в памяти. Используется в разработке
// и тестах, когда Kafka отключена.
type InMemoryInbox struct {
	events []domain.NotificationEvent
	mutex  sync.RWMutex
}

// NewInMemoryInbox создает пустые входящие.
func NewInMemoryInbox() *InMemoryInbox {
	return &InMemoryInbox{}
}

// Deliver добавляет событие во входящие
func (i *InMemoryInbox) Deliver(ctx context.Context, event domain.NotificationEvent) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	i.events = append(i.events, event)
	return nil
}

// Events возвращает копию всех доставленных событий
func (i *InMemoryInbox) Events() []domain.NotificationEvent {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	out := make([]domain.NotificationEvent, len(i.events))
	copy(out, i.events)
	return out
}
