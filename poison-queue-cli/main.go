package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"gallery/pubsub"
	"gallery/pubsub/poison"
)

func newQueue(c *cli.Context) (*poison.Queue, func() error, error) {
	rdb := pubsub.NewRedisClient(c.String("redis-addr"))

	publisher, err := pubsub.NewRedisPublisher(rdb, log.NewWatermill(log.FromContext(c.Context)))
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}

	return poison.NewQueue(rdb, publisher), rdb.Close, nil
}

func withQueue(action func(ctx context.Context, q *poison.Queue, c *cli.Context) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		q, closeFn, err := newQueue(c)
		if err != nil {
			return err
		}
		defer closeFn()

		return action(c.Context, q, c)
	}
}

func main() {
	log.Init(logrus.WarnLevel)

	app := &cli.App{
		Name:  "poison-queue-cli",
		Usage: "Manage the poison queue of the gallery service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "redis-addr",
				EnvVars: []string{"REDIS_ADDR"},
				Value:   "localhost:6379",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "preview",
				Usage: "preview messages",
				Action: withQueue(func(ctx context.Context, q *poison.Queue, c *cli.Context) error {
					messages, err := q.Preview(ctx)
					if err != nil {
						return err
					}

					for _, m := range messages {
						fmt.Printf("%v\t%v\t%v\t%v\n", m.ID, m.Topic, m.Handler, m.Reason)
					}

					return nil
				}),
			},
			{
				Name:      "remove",
				ArgsUsage: "<message_id>",
				Usage:     "remove message",
				Action: withQueue(func(ctx context.Context, q *poison.Queue, c *cli.Context) error {
					return q.Remove(ctx, c.Args().First())
				}),
			},
			{
				Name:      "requeue",
				ArgsUsage: "<message_id>",
				Usage:     "publish message back to its original topic",
				Action: withQueue(func(ctx context.Context, q *poison.Queue, c *cli.Context) error {
					return q.Requeue(ctx, c.Args().First())
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("poison-queue-cli failed")
	}
}
