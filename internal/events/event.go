// Package events publishes cart mutations to Kafka as avro records.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/hamba/avro/v2"
)

// Type names the cart operation an Event describes.
type Type string

const (
	TypeAdd      Type = "add"
	TypeIncrease Type = "increase"
	TypeDecrease Type = "decrease"
	TypeRemove   Type = "remove"
)

// Event is a single effective cart mutation. Quantity is the line quantity
// after the mutation; 0 means the line was removed.
type Event struct {
	ID        string `avro:"id"`
	Type      Type   `avro:"type"`
	ProductID string `avro:"product_id"`
	Quantity  int    `avro:"quantity"`
	At        int64  `avro:"at"`
}

// New returns an Event stamped with a fresh id and the current time.
func New(typ Type, productID string, quantity int) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      typ,
		ProductID: productID,
		Quantity:  quantity,
		At:        time.Now().UnixMilli(),
	}
}

// SchemaTextV1 is the avro schema for Event.
const SchemaTextV1 = `{
  "type": "record",
  "name": "CartEventV1",
  "namespace": "storefront.cart",
  "fields": [
    {"name": "id", "type": "string"},
    {"name": "type", "type": "string"},
    {"name": "product_id", "type": "string"},
    {"name": "quantity", "type": "int"},
    {"name": "at", "type": "long"}
  ]
}`

// Codec encodes and decodes events with the V1 schema.
type Codec struct {
	schema avro.Schema
}

// NewCodec parses the V1 schema.
func NewCodec() (*Codec, error) {
	s, err := avro.Parse(SchemaTextV1)
	if err != nil {
		return nil, errors.Wrap(err, "parse cart event schema")
	}
	return &Codec{schema: s}, nil
}

func (c *Codec) Encode(e Event) ([]byte, error) {
	b, err := avro.Marshal(c.schema, e)
	if err != nil {
		return nil, errors.Wrap(err, "encode cart event")
	}
	return b, nil
}

func (c *Codec) Decode(data []byte) (Event, error) {
	var e Event
	if err := avro.Unmarshal(c.schema, data, &e); err != nil {
		return Event{}, errors.Wrap(err, "decode cart event")
	}
	return e, nil
}

// Publisher delivers cart events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// Nop discards events. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() {}
