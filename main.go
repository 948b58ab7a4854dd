package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/clients"
	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gallery/app"
	"gallery/config"
	"gallery/db"
	"gallery/gateway"
	"gallery/pubsub"
	"gallery/pubsub/event"
	"gallery/tracing"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	level, _ := cfg.Level()
	log.Init(level)

	loc, _ := cfg.Location()

	traceProvider, err := tracing.ConfigureTraceProvider(cfg.JaegerEndpoint)
	if err != nil {
		panic(err)
	}

	// gateway calls carry the trace of the handled event
	http.DefaultTransport = otelhttp.NewTransport(http.DefaultTransport)

	var spreadsheetsService event.SpreadsheetsAPI
	if cfg.GatewayAddr != "" {
		apiClients, err := clients.NewClients(cfg.GatewayAddr, func(ctx context.Context, req *http.Request) error {
			req.Header.Set("Correlation-ID", log.CorrelationIDFromContext(ctx))
			return nil
		})
		if err != nil {
			panic(err)
		}
		spreadsheetsService = gateway.NewSpreadsheetsClient(apiClients)
	}

	dbConn, err := db.Open(cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	defer dbConn.Close()

	redisClient := pubsub.NewRedisClient(cfg.RedisAddr)
	defer redisClient.Close()

	application, err := app.New(
		app.Settings{
			HTTPAddr:        cfg.HTTPAddr,
			JWTSecret:       cfg.JWTSecret,
			LockTimeout:     cfg.LockTimeout,
			ConflictRetries: cfg.BookingRetries,
		},
		dbConn,
		redisClient,
		spreadsheetsService,
		func() time.Time { return time.Now().In(loc) },
		traceProvider,
	)
	if err != nil {
		panic(err)
	}

	if err := application.Run(ctx); err != nil {
		panic(err)
	}
}
