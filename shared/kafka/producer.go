// Package kafka carries newsdesk events out to the events topic and editorial
// commands in from the command topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"newsdesk/logger"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Event types written to the events topic
const (
	EventArticlePublished = "article.published"
	EventCorrectionIssued = "correction.issued"
)

// Event is the envelope for every message on the events topic.
type Event struct {
	Type       string    `json:"type"`
	ArticleID  uuid.UUID `json:"article_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

// Producer publishes events keyed by article id, so one article's events stay ordered
// within a partition.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewProducerFrom(sp, topic, log), nil
}

// NewProducerFrom wraps an existing sync producer.
func NewProducerFrom(sp sarama.SyncProducer, topic string, log *logger.Logger) *Producer {
	return &Producer{producer: sp, topic: topic, log: log.With("component", "kafka_producer", "topic", topic)}
}

func (p *Producer) Emit(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.ArticleID.String()),
		Value: sarama.ByteEncoder(b),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(ev.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("send %s event: %w", ev.Type, err)
	}
	p.log.Debug("event sent", "type", ev.Type, "article_id", ev.ArticleID, "partition", partition, "offset", offset)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
