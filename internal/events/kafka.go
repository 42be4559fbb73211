package events

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/twmb/franz-go/pkg/kgo"
)

// ProducerClient is the subset of *kgo.Client the publisher needs.
type ProducerClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher produces avro-encoded events keyed by product id.
type KafkaPublisher struct {
	cl    ProducerClient
	codec *Codec
	topic string
}

// NewKafkaPublisher connects a franz-go client to brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no brokers configured")
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka client")
	}
	return NewKafkaPublisherWithClient(cl, topic)
}

// NewKafkaPublisherWithClient wraps an existing producer client.
func NewKafkaPublisherWithClient(cl ProducerClient, topic string) (*KafkaPublisher, error) {
	codec, err := NewCodec()
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{cl: cl, codec: codec, topic: topic}, nil
}

// Publish encodes e and waits for the broker acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := p.codec.Encode(e)
	if err != nil {
		return err
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.ProductID),
		Value: b,
	}
	if err := p.cl.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return errors.Wrapf(err, "produce %s event", e.Type)
	}
	return nil
}

// Close flushes and closes the underlying client.
func (p *KafkaPublisher) Close() {
	p.cl.Close()
}
