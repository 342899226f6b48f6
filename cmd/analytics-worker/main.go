package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/angelmondragon/storefront-settlement/internal/analytics"
	"github.com/angelmondragon/storefront-settlement/internal/boot"
	"github.com/angelmondragon/storefront-settlement/pkg/bigquery"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-settlement/pkg/pubsub"
	"github.com/angelmondragon/storefront-settlement/pkg/redis"
)

func main() {
	cfg, logg := boot.Load("analytics-worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	boot.Must(ctx, logg, "redis", err)
	defer boot.Close(ctx, logg, "redis", redisClient)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg, pubsub.Subscription(cfg.PubSub.AnalyticsSubscription))
	boot.Must(ctx, logg, "pubsub", err)
	defer boot.Close(ctx, logg, "pubsub", pubsubClient)

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		boot.Must(ctx, logg, "analytics subscription", errors.New("subscription not configured"))
	}

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	boot.Must(ctx, logg, "bigquery", err)
	defer boot.Close(ctx, logg, "bigquery", bqClient)

	table := bqClient.SettlementTable()
	boot.Must(ctx, logg, "bigquery settlement table", bqClient.EnsureTable(ctx, bigquery.TableSpec{
		Name:           table,
		Schema:         analytics.SettlementSchema,
		PartitionField: analytics.SettlementPartitionField,
	}))

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	boot.Must(ctx, logg, "idempotency manager", err)

	consumer, err := analytics.NewConsumer(bqClient, table, manager, subscription, logg)
	boot.Must(ctx, logg, "analytics consumer", err)

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"table":       table,
	})
	logg.Info(ctx, "analytics worker ready")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics worker failed", err)
		os.Exit(1)
	}
}
