package event

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"gallery/pubsub/bus"
)

type SpreadsheetsAPI interface {
	AppendRow(ctx context.Context, spreadsheetName string, row []string) error
}

type Handler struct {
	spreadsheetsService SpreadsheetsAPI
}

func NewHandler(spreadsheetsService SpreadsheetsAPI) Handler {
	if spreadsheetsService == nil {
		panic("missing spreadsheetsService")
	}

	return Handler{
		spreadsheetsService: spreadsheetsService,
	}
}

// Handlers lists every event handler of the sales sheet.
func (h Handler) Handlers() []cqrs.EventHandler {
	return []cqrs.EventHandler{
		h.AppendSoldTicketHandler(),
		h.AppendCancelledTicketHandler(),
		h.AppendAdjustedTicketHandler(),
	}
}

// NewProcessorConfig subscribes every handler to the per-event topic with its own consumer group.
func NewProcessorConfig(rdb *redis.Client, watermillLogger watermill.LoggerAdapter) cqrs.EventProcessorConfig {
	return cqrs.EventProcessorConfig{
		SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
			return redisstream.NewSubscriber(redisstream.SubscriberConfig{
				Client:        rdb,
				ConsumerGroup: "svc-gallery." + params.HandlerName,
			}, watermillLogger)
		},
		GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
			return bus.EventTopic(params.EventName), nil
		},
		Marshaler: bus.Marshaler,
		Logger:    watermillLogger,
	}
}
