package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"

	"hireme/internal/storage"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// Consumer runs a consumer-group session over the event topic.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler) (*Consumer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Version = sarama.V2_5_0_0
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{group: g, handler: handler}, nil
}

func (c *Consumer) Run(ctx context.Context, topics []string) error {
	for {
		if err := c.group.Consume(ctx, topics, consumerGroupHandler{handler: c.handler}); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type consumerGroupHandler struct {
	handler MessageHandler
}

func (h consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := h.handler.Handle(sess.Context(), message); err != nil {
			// retry/handling delegated to handler
			continue
		}
		sess.MarkMessage(message, "")
	}
	return nil
}

// Publisher delivers a message to every open session of a user on this node.
type Publisher interface {
	Publish(userID string, msg storage.Message)
}

// PushFeeder forwards bus events into the local push hub so sessions attached
// to other nodes still see messages stored here. Events this node produced
// are skipped; the hub already delivered them directly.
type PushFeeder struct {
	hub    Publisher
	nodeID string
	logger *slog.Logger
}

func NewPushFeeder(hub Publisher, nodeID string, logger *slog.Logger) *PushFeeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushFeeder{hub: hub, nodeID: nodeID, logger: logger.With("component", "push_feeder")}
}

func (f *PushFeeder) Handle(_ context.Context, raw *sarama.ConsumerMessage) error {
	var event messageEvent
	if err := json.Unmarshal(raw.Value, &event); err != nil {
		f.logger.Error("skipping undecodable event", "error", err,
			"topic", raw.Topic, "offset", raw.Offset)
		return nil
	}
	if event.Origin == f.nodeID {
		return nil
	}

	msg := event.message()
	f.hub.Publish(msg.SenderID, msg)
	f.hub.Publish(msg.ReceiverID, msg)
	return nil
}

var _ MessageHandler = (*PushFeeder)(nil)
