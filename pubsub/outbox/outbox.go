// Package outbox stores events in Postgres in the same transaction as the
// data change, and forwards them to Redis once committed.
package outbox

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-sql/v2/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"

	"gallery/tracing"
)

const Topic = "events_to_forward"

func NewPostgresSubscriber(db *sqlx.DB, logger watermill.LoggerAdapter) (*sql.Subscriber, error) {
	sub, err := sql.NewSubscriber(db, sql.SubscriberConfig{
		SchemaAdapter:    sql.DefaultPostgreSQLSchema{},
		OffsetsAdapter:   sql.DefaultPostgreSQLOffsetsAdapter{},
		InitializeSchema: true,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("could not create postgres subscriber: %w", err)
	}

	return sub, nil
}

// InitializeSchema creates the outbox tables, so transactions can publish
// before the forwarder subscribes for the first time.
func InitializeSchema(db *sqlx.DB) error {
	logger := log.NewWatermill(log.FromContext(context.Background()))

	sub, err := NewPostgresSubscriber(db, logger)
	if err != nil {
		return err
	}
	defer sub.Close()

	if err := sub.SubscribeInitialize(Topic); err != nil {
		return fmt.Errorf("could not initialize outbox schema: %w", err)
	}

	return nil
}

// NewPublisherForDb returns a publisher writing to the outbox within tx.
// Messages become visible to the forwarder only after tx commits.
func NewPublisherForDb(ctx context.Context, tx *sqlx.Tx) (message.Publisher, error) {
	var publisher message.Publisher

	logger := log.NewWatermill(log.FromContext(ctx))

	sqlPublisher, err := sql.NewPublisher(
		tx,
		sql.PublisherConfig{
			SchemaAdapter: sql.DefaultPostgreSQLSchema{},
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("could not create outbox publisher: %w", err)
	}

	// decorators run before the message is wrapped in the forwarder envelope,
	// so its metadata survives forwarding
	publisher = forwarder.NewPublisher(sqlPublisher, forwarder.PublisherConfig{
		ForwarderTopic: Topic,
	})
	publisher = log.CorrelationPublisherDecorator{Publisher: publisher}
	publisher = tracing.PublisherDecorator{Publisher: publisher}

	return publisher, nil
}

func NewForwarder(
	postgresSubscriber message.Subscriber,
	redisPublisher message.Publisher,
	logger watermill.LoggerAdapter,
) (*forwarder.Forwarder, error) {
	fwd, err := forwarder.NewForwarder(postgresSubscriber, redisPublisher, logger, forwarder.Config{
		ForwarderTopic: Topic,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create forwarder: %w", err)
	}

	return fwd, nil
}
