// Package poison inspects the queue of messages the router gave up on.
package poison

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/redis/go-redis/v9"
)

const Topic = "poison_queue"

type Message struct {
	ID      string
	Handler string
	Topic   string
	Reason  string
}

// Queue reads the poison queue stream directly, so previewing it never
// acknowledges or reorders messages.
type Queue struct {
	rdb         *redis.Client
	publisher   message.Publisher
	unmarshaler redisstream.DefaultMarshallerUnmarshaller
}

func NewQueue(rdb *redis.Client, publisher message.Publisher) *Queue {
	if rdb == nil {
		panic("missing rdb")
	}
	if publisher == nil {
		panic("missing publisher")
	}

	return &Queue{
		rdb:       rdb,
		publisher: publisher,
	}
}

type entry struct {
	streamID string
	msg      *message.Message
}

func (q *Queue) Preview(ctx context.Context) ([]Message, error) {
	entries, err := q.entries(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Message, 0, len(entries))
	for _, e := range entries {
		result = append(result, Message{
			ID:      e.msg.UUID,
			Handler: e.msg.Metadata.Get(middleware.PoisonedHandlerKey),
			Topic:   e.msg.Metadata.Get(middleware.PoisonedTopicKey),
			Reason:  e.msg.Metadata.Get(middleware.ReasonForPoisonedKey),
		})
	}

	return result, nil
}

// Remove drops the message for good.
func (q *Queue) Remove(ctx context.Context, messageID string) error {
	e, err := q.find(ctx, messageID)
	if err != nil {
		return err
	}

	return q.delete(ctx, e)
}

// Requeue publishes the message back to the topic it was poisoned on and
// removes it from the queue.
func (q *Queue) Requeue(ctx context.Context, messageID string) error {
	e, err := q.find(ctx, messageID)
	if err != nil {
		return err
	}

	topic := e.msg.Metadata.Get(middleware.PoisonedTopicKey)
	if topic == "" {
		return fmt.Errorf("message %s has no original topic", messageID)
	}

	msg := message.NewMessage(e.msg.UUID, e.msg.Payload)
	for k, v := range e.msg.Metadata {
		switch k {
		case middleware.PoisonedTopicKey, middleware.PoisonedHandlerKey,
			middleware.PoisonedSubscriberKey, middleware.ReasonForPoisonedKey:
			continue
		}
		msg.Metadata.Set(k, v)
	}

	if err := q.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("could not requeue %s to %s: %w", messageID, topic, err)
	}

	return q.delete(ctx, e)
}

func (q *Queue) entries(ctx context.Context) ([]entry, error) {
	stream, err := q.rdb.XRange(ctx, Topic, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", Topic, err)
	}

	entries := make([]entry, 0, len(stream))
	for _, xMsg := range stream {
		msg, err := q.unmarshaler.Unmarshal(xMsg.Values)
		if err != nil {
			return nil, fmt.Errorf("could not unmarshal %s entry %s: %w", Topic, xMsg.ID, err)
		}
		entries = append(entries, entry{streamID: xMsg.ID, msg: msg})
	}

	return entries, nil
}

func (q *Queue) find(ctx context.Context, messageID string) (entry, error) {
	entries, err := q.entries(ctx)
	if err != nil {
		return entry{}, err
	}

	for _, e := range entries {
		if e.msg.UUID == messageID {
			return e, nil
		}
	}

	return entry{}, fmt.Errorf("message %s not found", messageID)
}

func (q *Queue) delete(ctx context.Context, e entry) error {
	if err := q.rdb.XDel(ctx, Topic, e.streamID).Err(); err != nil {
		return fmt.Errorf("could not remove %s from %s: %w", e.msg.UUID, Topic, err)
	}
	return nil
}
