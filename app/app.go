package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"gallery/booking"
	dbLib "gallery/db"
	"gallery/http"
	"gallery/pubsub"
	"gallery/pubsub/event"
	"gallery/pubsub/outbox"
)

type Settings struct {
	HTTPAddr        string
	JWTSecret       string
	LockTimeout     time.Duration
	ConflictRetries uint64
}

type App struct {
	db              *sqlx.DB
	watermillRouter *message.Router
	forwarder       *forwarder.Forwarder
	httpServer      *http.Server
	traceProvider   *tracesdk.TracerProvider
}

// New wires the application. spreadsheetsService is optional, without it
// the sales sheet handlers are not registered.
func New(
	settings Settings,
	db *sqlx.DB,
	redisClient *redis.Client,
	spreadsheetsService event.SpreadsheetsAPI,
	clock func() time.Time,
	traceProvider *tracesdk.TracerProvider,
) (App, error) {
	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))

	redisPublisher, err := pubsub.NewRedisPublisher(redisClient, watermillLogger)
	if err != nil {
		return App{}, err
	}

	// no consumer group, so both the splitter and the data lake see every event
	redisSubscriber, err := pubsub.NewRedisSubscriber(redisClient, "", watermillLogger)
	if err != nil {
		return App{}, err
	}

	postgresSubscriber, err := outbox.NewPostgresSubscriber(db, watermillLogger)
	if err != nil {
		return App{}, err
	}

	fwd, err := outbox.NewForwarder(postgresSubscriber, redisPublisher, watermillLogger)
	if err != nil {
		return App{}, err
	}

	var eventHandlers []cqrs.EventHandler
	if spreadsheetsService != nil {
		eventHandlers = event.NewHandler(spreadsheetsService).Handlers()
	}

	watermillRouter, err := pubsub.NewWatermillRouter(
		redisPublisher,
		redisSubscriber,
		event.NewProcessorConfig(redisClient, watermillLogger),
		eventHandlers,
		dbLib.NewDataLake(db),
		watermillLogger,
	)
	if err != nil {
		return App{}, fmt.Errorf("failed to create watermill router: %w", err)
	}

	manager := booking.NewManager(dbLib.NewRepository(db, settings.LockTimeout), clock)

	httpServer := http.NewServer(
		settings.HTTPAddr,
		manager,
		settings.JWTSecret,
		settings.ConflictRetries,
	)

	return App{
		db:              db,
		watermillRouter: watermillRouter,
		forwarder:       fwd,
		httpServer:      httpServer,
		traceProvider:   traceProvider,
	}, nil
}

func (a App) Run(ctx context.Context) error {
	if err := dbLib.InitializeDatabaseSchema(a.db); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return a.traceProvider.Shutdown(context.Background())
	})

	g.Go(func() error {
		return a.watermillRouter.Run(ctx)
	})

	g.Go(func() error {
		return a.forwarder.Run(ctx)
	})

	g.Go(func() error {
		// the app is not healthy before events can flow
		<-a.watermillRouter.Running()
		<-a.forwarder.Running()

		return a.httpServer.Run(ctx)
	})

	return g.Wait()
}
