package bus

import (
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
)

// EventsTopic receives every event. From there events are stored in the data
// lake and split into per-event topics.
const EventsTopic = "events"

var Marshaler = cqrs.JSONMarshaler{
	GenerateName: cqrs.StructName,
}

func NewEventBus(pub message.Publisher) (*cqrs.EventBus, error) {
	return cqrs.NewEventBusWithConfig(pub, cqrs.EventBusConfig{
		GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
			return EventsTopic, nil
		},
		Marshaler: Marshaler,
	})
}

// EventTopic is the topic a single kind of event is split into.
func EventTopic(eventName string) string {
	return EventsTopic + "." + eventName
}
