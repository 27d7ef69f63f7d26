package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"newsdesk/logger"

	"github.com/IBM/sarama"
)

// MessageHandler processes one consumed message.
type MessageHandler interface {
	// HandleMessage reports whether the message should be marked as processed. An
	// unmarked message is delivered again after a rebalance or restart.
	HandleMessage(ctx context.Context, message []byte) (shouldMark bool, err error)
}

// Consumer handles Kafka message consumption with pluggable message handling
type Consumer struct {
	consumer sarama.ConsumerGroup
	handler  MessageHandler
	topic    string
	groupID  string
	ready    chan bool
	log      *logger.Logger
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler MessageHandler
}

// rejoinDelay spaces out Consume calls after a session error.
const rejoinDelay = 2 * time.Second

func NewConsumer(cfg ConsumerConfig, log *logger.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	client, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		consumer: client,
		handler:  cfg.Handler,
		topic:    cfg.Topic,
		groupID:  cfg.GroupID,
		ready:    make(chan bool),
		log:      log.With("component", "kafka_consumer", "topic", cfg.Topic, "group", cfg.GroupID),
	}, nil
}

// Start joins the group and returns once the first session is set up, or when ctx ends.
// Consumption continues in the background until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	handler := &consumerGroupHandler{
		messageHandler: c.handler,
		ready:          c.ready,
		log:            c.log,
	}

	go func() {
		for {
			if err := c.consumer.Consume(ctx, []string{c.topic}, handler); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.log.Error("kafka consume failed", "error", err)
				select {
				case <-time.After(rejoinDelay):
				case <-ctx.Done():
				}
			}
			if ctx.Err() != nil {
				return
			}
			handler.ready = make(chan bool)
		}
	}()

	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.log.Info("kafka consumer started")

	go func() {
		for err := range c.consumer.Errors() {
			c.log.Error("kafka consumer error", "error", err)
		}
	}()
	return nil
}

// Close gracefully shuts down the consumer
func (c *Consumer) Close() error {
	c.log.Info("closing kafka consumer")
	return c.consumer.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	messageHandler MessageHandler
	ready          chan bool
	log            *logger.Logger
}

// Setup is run at the beginning of a new session, before ConsumeClaim
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}
			h.log.Debug("kafka message received", "partition", message.Partition, "offset", message.Offset, "key", string(message.Key))

			shouldMark, err := h.messageHandler.HandleMessage(session.Context(), message.Value)
			if err != nil {
				h.log.Warn("kafka message failed", "offset", message.Offset, "marked", shouldMark, "error", err)
			}
			if shouldMark {
				session.MarkMessage(message, "")
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

// TypedMessageHandler decodes JSON messages into T before processing them.
type TypedMessageHandler[T any] struct {
	// Validate checks if the message should be processed
	Validate func(msg *T) bool
	// Process handles the actual message processing
	Process func(ctx context.Context, msg *T) error
	// Retryable reports whether a Process error should leave the message unmarked.
	// When nil every error is retried.
	Retryable func(err error) bool
	// AlwaysMark marks undecodable and invalid messages so they are not redelivered.
	AlwaysMark bool
}

func (h *TypedMessageHandler[T]) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var msg T
	if err := json.Unmarshal(message, &msg); err != nil {
		return h.AlwaysMark, err
	}
	if h.Validate != nil && !h.Validate(&msg) {
		return h.AlwaysMark, nil
	}
	if err := h.Process(ctx, &msg); err != nil {
		retry := h.Retryable == nil || h.Retryable(err)
		return !retry, err
	}
	return true, nil
}
