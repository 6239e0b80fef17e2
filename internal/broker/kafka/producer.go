package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"hireme/internal/storage"
)

// Producer publishes records through a synchronous, idempotent Kafka producer.
type Producer struct {
	sync sarama.SyncProducer
}

func NewProducer(brokers []string, cfg *sarama.Config) (*Producer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Net.MaxOpenRequests = 1
	sync, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Producer{sync: sync}, nil
}

func (p *Producer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	var hs []sarama.RecordHeader
	for k, v := range headers {
		hs = append(hs, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(payload),
		Headers: hs,
	}
	_, _, err := p.sync.SendMessage(msg)
	return err
}

func (p *Producer) Close() error {
	if p.sync == nil {
		return nil
	}
	return p.sync.Close()
}

// MessageRelay publishes stored messages to the event topic. Keying by
// conversation keeps each thread ordered on a single partition.
type MessageRelay struct {
	producer *Producer
	topic    string
	nodeID   string
}

func NewMessageRelay(producer *Producer, topic, nodeID string) *MessageRelay {
	if topic == "" {
		topic = DefaultTopic
	}
	return &MessageRelay{producer: producer, topic: topic, nodeID: nodeID}
}

func (r *MessageRelay) PublishMessage(ctx context.Context, msg storage.Message) error {
	payload, err := json.Marshal(eventFromMessage(msg, r.nodeID))
	if err != nil {
		return fmt.Errorf("encode message event: %w", err)
	}
	return r.producer.Publish(ctx, r.topic, msg.ConversationID, payload, map[string]string{
		"content-type": "application/json",
	})
}

func (r *MessageRelay) Close() error {
	return r.producer.Close()
}
