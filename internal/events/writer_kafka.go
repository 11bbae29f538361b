package events

import (
	"context"
	"errors"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaWriter publishes events in structured cloudevents JSON mode, keyed by
// subject so that the events of one case stay in one partition.
type KafkaWriter struct {
	client *kgo.Client
}

func NewKafkaWriter(brokers []string, clientID string) (*KafkaWriter, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &KafkaWriter{client: client}, nil
}

func (k *KafkaWriter) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	record, err := newRecord(topic, e)
	if err != nil {
		return err
	}
	return k.client.ProduceSync(ctx, record).FirstErr()
}

func (k *KafkaWriter) Close(ctx context.Context) error {
	defer k.client.Close()
	return k.client.Flush(ctx)
}

func newRecord(topic string, e cloudevents.Event) (*kgo.Record, error) {
	value, err := e.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %s: %w", e.ID(), err)
	}

	return &kgo.Record{
		Topic: topic,
		Key:   []byte(e.Subject()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "content-type", Value: []byte(cloudevents.ApplicationCloudEventsJSON)},
			{Key: "ce_type", Value: []byte(e.Type())},
		},
	}, nil
}
