package pubsub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"

	"gallery/entity"
	"gallery/pubsub/bus"
)

type DataLake interface {
	StoreEvent(ctx context.Context, dataLakeEvent entity.DataLakeEvent) error
}

func NewWatermillRouter(
	redisPublisher message.Publisher,
	redisSubscriber message.Subscriber,
	eventProcessorConfig cqrs.EventProcessorConfig,
	eventHandlers []cqrs.EventHandler,
	dataLake DataLake,
	watermillLogger watermill.LoggerAdapter,
) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("could not create router: %w", err)
	}

	if err := useMiddlewares(router, redisPublisher, watermillLogger); err != nil {
		return nil, err
	}

	if len(eventHandlers) > 0 {
		eventProcessor, err := cqrs.NewEventProcessorWithConfig(router, eventProcessorConfig)
		if err != nil {
			return nil, fmt.Errorf("could not create event processor: %w", err)
		}

		if err := eventProcessor.AddHandlers(eventHandlers...); err != nil {
			return nil, fmt.Errorf("could not add handlers to event processor: %w", err)
		}
	}

	router.AddNoPublisherHandler(
		"events_splitter",
		bus.EventsTopic,
		redisSubscriber,
		func(msg *message.Message) error {
			eventName := bus.Marshaler.NameFromMessage(msg)
			if eventName == "" {
				return fmt.Errorf("could not get event name from message")
			}

			return redisPublisher.Publish(bus.EventTopic(eventName), msg)
		},
	)

	router.AddNoPublisherHandler(
		"store_to_data_lake",
		bus.EventsTopic,
		redisSubscriber,
		func(msg *message.Message) error {
			eventName := bus.Marshaler.NameFromMessage(msg)
			if eventName == "" {
				return fmt.Errorf("could not get event name from message")
			}

			// only the header is needed, the payload is stored as is
			var header struct {
				Header entity.EventHeader `json:"header"`
			}
			if err := bus.Marshaler.Unmarshal(msg, &header); err != nil {
				return fmt.Errorf("could not unmarshal event: %w", err)
			}

			return dataLake.StoreEvent(
				msg.Context(),
				entity.DataLakeEvent{
					ID:          header.Header.ID,
					PublishedAt: header.Header.PublishedAt,
					Name:        eventName,
					Payload:     msg.Payload,
				},
			)
		},
	)

	return router, nil
}
