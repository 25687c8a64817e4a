package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaNotifier publishes step-transition events to a Kafka topic. Records
// are keyed by transaction ID so one transaction's events stay ordered
// within a partition.
type KafkaNotifier struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaNotifier connects to the brokers and ensures the topic exists.
func NewKafkaNotifier(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*KafkaNotifier, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	if _, err := admin.CreateTopic(ctx, 3, 1, nil, topic); err != nil {
		// Already-exists is fine; anything else is surfaced at first produce.
		logger.Warn("topic creation", "topic", topic, "error", err.Error())
	}

	return &KafkaNotifier{client: client, topic: topic, logger: logger}, nil
}

func (n *KafkaNotifier) NotifyStepTransition(ctx context.Context, event StepTransition) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal step transition: %w", err)
	}

	record := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(event.TransactionID),
		Value: payload,
	}

	results := n.client.ProduceSync(ctx, record)
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("produce step transition: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() {
	n.client.Close()
}
