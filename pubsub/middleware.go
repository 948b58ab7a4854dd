package pubsub

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/lithammer/shortuuid/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"gallery/metrics"
	"gallery/pubsub/poison"
)

// useMiddlewares moves messages still failing after all retries to the
// poison queue, so a single broken event does not block its handler.
func useMiddlewares(router *message.Router, publisher message.Publisher, watermillLogger watermill.LoggerAdapter) error {
	poisonQueue, err := middleware.PoisonQueue(publisher, poison.Topic)
	if err != nil {
		return fmt.Errorf("could not create poison queue middleware: %w", err)
	}

	router.AddMiddleware(poisonQueue, middleware.Recoverer)

	router.AddMiddleware(middleware.Retry{
		MaxRetries:      10,
		InitialInterval: time.Millisecond * 100,
		MaxInterval:     time.Second,
		Multiplier:      2,
		Logger:          watermillLogger,
	}.Middleware)

	router.AddMiddleware(
		correlationIDMiddleware,
		tracingMiddleware,
		loggingMiddleware,
		metricsMiddleware,
	)

	return nil
}

// correlationIDMiddleware restores the correlation ID of the HTTP request the message originates from.
func correlationIDMiddleware(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		correlationID := msg.Metadata.Get("correlation_id")
		if correlationID == "" {
			correlationID = shortuuid.New()
		}

		ctx := log.ContextWithCorrelationID(msg.Context(), correlationID)
		ctx = log.ToContext(ctx, logrus.WithFields(logrus.Fields{"correlation_id": correlationID}))
		msg.SetContext(ctx)

		return next(msg)
	}
}

func tracingMiddleware(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		ctx := otel.GetTextMapPropagator().Extract(msg.Context(), propagation.MapCarrier(msg.Metadata))
		topic := message.SubscribeTopicFromCtx(msg.Context())
		handler := message.HandlerNameFromCtx(msg.Context())

		ctx, span := otel.Tracer("").Start(
			ctx,
			"message handling: "+topic+"/"+handler,
			trace.WithAttributes(
				attribute.String("topic", topic),
				attribute.String("handler", handler),
			),
		)
		defer span.End()
		msg.SetContext(ctx)

		msgs, err := next(msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return msgs, err
	}
}

func loggingMiddleware(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		traceID := trace.SpanFromContext(msg.Context()).SpanContext().TraceID().String()
		logger := log.FromContext(msg.Context()).WithFields(logrus.Fields{
			"message_id": msg.UUID,
			"handler":    message.HandlerNameFromCtx(msg.Context()),
			"trace_id":   traceID,
		})

		logger.WithField("payload", string(msg.Payload)).Debug("Handling a message")

		msgs, err := next(msg)
		if err != nil {
			logger.WithError(err).Error("Error while handling a message")
		}

		return msgs, err
	}
}

func metricsMiddleware(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) (msgs []*message.Message, err error) {
		start := time.Now()
		labels := prometheus.Labels{
			"topic":   message.SubscribeTopicFromCtx(msg.Context()),
			"handler": message.HandlerNameFromCtx(msg.Context()),
		}

		defer func() {
			if err != nil {
				metrics.MessagesProcessingFailed.With(labels).Inc()
			}
			metrics.MessagesProcessed.With(labels).Inc()
			metrics.MessagesProcessingDuration.With(labels).Observe(time.Since(start).Seconds())
		}()

		return next(msg)
	}
}
