package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Topics for the events this service exposes to the rest of the platform.
const (
	TopicStreakChanged          = "engagement.streak-changed"
	TopicBadgeAwarded           = "engagement.badge-awarded"
	TopicWalletChanged          = "engagement.wallet-changed"
	TopicChallengeCompleted     = "engagement.challenge-completed"
	TopicAffiliateStatusChanged = "engagement.affiliate-status-changed"
)

// Publisher is what the services emit through. Messages are keyed by account
// (or affiliate) ID so per-entity ordering survives partitioning.
type Publisher interface {
	Publish(topic string, key string, payload interface{}) error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *KafkaPublisher) Publish(topic string, key string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher is the fallback when KAFKA_BROKERS is not configured — events
// still show up in the service log so local setups stay debuggable.
type LogPublisher struct{}

func (LogPublisher) Publish(topic string, key string, payload interface{}) error {
	value, _ := json.Marshal(payload)
	log.Printf("📣 [EVENT] %s key=%s %s", topic, key, value)
	return nil
}
