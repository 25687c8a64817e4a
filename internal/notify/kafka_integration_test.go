//go:build integration

package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"dealflow/internal/notify"
	id "dealflow/pkg/domain"
	"dealflow/pkg/testutil/containers"
)

const testTopic = "dealflow.step-transitions.test"

type KafkaNotifierSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	notifier *notify.KafkaNotifier
}

func TestKafkaNotifierSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaNotifierSuite))
}

func (s *KafkaNotifierSuite) SetupSuite() {
	s.redpanda = containers.NewRedpandaContainer(s.T())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier, err := notify.NewKafkaNotifier(context.Background(),
		[]string{s.redpanda.Broker}, testTopic, logger)
	s.Require().NoError(err)
	s.notifier = notifier
}

func (s *KafkaNotifierSuite) TearDownSuite() {
	if s.notifier != nil {
		s.notifier.Close()
	}
}

func (s *KafkaNotifierSuite) TestPublishedEventRoundTrips() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	event := notify.StepTransition{
		TransactionID: id.NewTransactionID().String(),
		FromStep:      "Offer accepted",
		ToStep:        "Conditions",
		Outcome:       "completed",
		Note:          "financing confirmed",
		Email:         "client@example.com",
		OccurredAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	s.Require().NoError(s.notifier.NotifyStepTransition(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	// The topic is shared across the suite, so match on the record key.
	var match *kgo.Record
	for match == nil {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(fetches.Err())
		for _, record := range fetches.Records() {
			if string(record.Key) == event.TransactionID {
				match = record
				break
			}
		}
	}

	var got notify.StepTransition
	s.Require().NoError(json.Unmarshal(match.Value, &got))
	s.Equal(event, got)
}

func (s *KafkaNotifierSuite) TestEventsForOneTransactionShareAPartition() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	txID := id.NewTransactionID().String()
	for _, from := range []string{"Intake", "Offer accepted", "Conditions"} {
		err := s.notifier.NotifyStepTransition(ctx, notify.StepTransition{
			TransactionID: txID,
			FromStep:      from,
			Outcome:       "completed",
			OccurredAt:    time.Now().UTC(),
		})
		s.Require().NoError(err)
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	partitions := map[int32][]string{}
	seen := 0
	for seen < 3 {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(fetches.Err())
		for _, record := range fetches.Records() {
			if string(record.Key) != txID {
				continue
			}
			var got notify.StepTransition
			s.Require().NoError(json.Unmarshal(record.Value, &got))
			partitions[record.Partition] = append(partitions[record.Partition], got.FromStep)
			seen++
		}
	}

	s.Require().Len(partitions, 1, "one transaction, one partition")
	for _, steps := range partitions {
		s.Equal([]string{"Intake", "Offer accepted", "Conditions"}, steps)
	}
}
