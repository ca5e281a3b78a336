package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
	"github.com/athebyme/gomarket-platform/itemsync-service/pkg/interfaces"
)

// KafkaQueue реализация QueuePort с использованием Kafka
type KafkaQueue struct {
	producer *kafka.Producer
	logger   interfaces.LoggerPort
}

// NewKafkaQueue создает новый экземпляр KafkaQueue
func NewKafkaQueue(brokers []string, logger interfaces.LoggerPort) (*KafkaQueue, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": strings.Join(brokers, ","),
		"client.id":         "itemsync-service-producer",
		"acks":              "all", // максимальная надежность
		// Повторы на уровне пакета делает публикатор сервиса,
		// встроенные повторы продюсера отключены, чтобы не дублировать доставку
		"retries":                      0,
		"compression.type":             "snappy",
		"linger.ms":                    10,    // небольшая задержка для батчинга
		"batch.size":                   16384, // размер пакета в байтах
		"message.max.bytes":            1000000,
		"queue.buffering.max.messages": 100000, // размер внутреннего буфера
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka producer: %w", err)
	}

	return &KafkaQueue{producer: producer, logger: logger}, nil
}

// buildKafkaMessage преобразует QueueMessage в kafka.Message.
// Opaque хранит позицию сообщения в пакете, чтобы сопоставить отчет о доставке.
func buildKafkaMessage(topic string, msg interfaces.QueueMessage, index int) *kafka.Message {
	var kafkaHeaders []kafka.Header
	for k, v := range msg.Headers {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{
			Key:   k,
			Value: []byte(v),
		})
	}

	// Добавляем служебные заголовки
	kafkaHeaders = append(kafkaHeaders,
		kafka.Header{Key: "message_id", Value: []byte(uuid.New().String())},
		kafka.Header{Key: "timestamp", Value: []byte(fmt.Sprintf("%d", time.Now().UnixNano()))},
	)

	var keyBytes []byte
	if msg.Key != "" {
		keyBytes = []byte(msg.Key)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          msg.Value,
		Key:            keyBytes,
		Headers:        kafkaHeaders,
		Opaque:         index,
	}
}

// SendBatch отправляет пакет сообщений и собирает результат по каждой записи.
// Очередь может принять пакет частично: часть отчетов о доставке успешна, часть нет.
func (k *KafkaQueue) SendBatch(ctx context.Context, topic string, messages []interfaces.QueueMessage) ([]interfaces.SendResult, error) {
	if len(messages) == 0 {
		return []interfaces.SendResult{}, nil
	}

	deliveries := make(chan kafka.Event, len(messages))
	results := make([]interfaces.SendResult, len(messages))

	produced := 0
	for i, msg := range messages {
		kafkaMsg := buildKafkaMessage(topic, msg, i)
		if err := k.producer.Produce(kafkaMsg, deliveries); err != nil {
			// Очередь продюсера переполнена или клиент закрыт:
			// запись не уходила в сеть, пометим и продолжим пакет
			results[i] = interfaces.SendResult{
				Index:     i,
				Err:       fmt.Errorf("%w: produce failed: %v", utils.ErrTransient, err),
				Retryable: isRetryableKafkaError(err),
			}
			continue
		}
		produced++
	}

	// Ждем отчет о доставке на каждое принятое продюсером сообщение
	for received := 0; received < produced; received++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: delivery wait interrupted: %v", utils.ErrTransient, ctx.Err())
		case ev := <-deliveries:
			m, ok := ev.(*kafka.Message)
			if !ok {
				received--
				continue
			}
			index, ok := m.Opaque.(int)
			if !ok || index < 0 || index >= len(results) {
				continue
			}
			if m.TopicPartition.Error != nil {
				results[index] = interfaces.SendResult{
					Index:     index,
					Err:       fmt.Errorf("%w: delivery failed: %v", utils.ErrTransient, m.TopicPartition.Error),
					Retryable: isRetryableKafkaError(m.TopicPartition.Error),
				}
			} else {
				results[index] = interfaces.SendResult{Index: index}
			}
		}
	}

	return results, nil
}

// isRetryableKafkaError относит ошибку Kafka к временным
func isRetryableKafkaError(err error) bool {
	var kafkaErr kafka.Error
	if !errors.As(err, &kafkaErr) {
		return false
	}

	switch kafkaErr.Code() {
	case kafka.ErrQueueFull,
		kafka.ErrMsgTimedOut,
		kafka.ErrTimedOut,
		kafka.ErrTransport,
		kafka.ErrAllBrokersDown,
		kafka.ErrLeaderNotAvailable,
		kafka.ErrNotEnoughReplicas,
		kafka.ErrRequestTimedOut:
		return true
	}
	return kafkaErr.IsRetriable()
}

// Close закрывает соединение с очередью
func (k *KafkaQueue) Close() error {
	k.producer.Flush(15 * 1000) // Ждем до 15 секунд для отправки всех сообщений
	k.producer.Close()
	return nil
}
